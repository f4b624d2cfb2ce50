package deriv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"decter-engine/internal/market"
	"decter-engine/internal/state"
)

// ErrNotConnected is returned when a request is made before Connect.
var ErrNotConnected = errors.New("deriv: not connected")

// APIError is an error reported by the Deriv API itself.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("deriv api error %s: %s", e.Code, e.Message)
}

// Config holds connection settings for the Deriv websocket API.
type Config struct {
	Endpoint string
	AppID    string
	APIToken string
	Currency string
}

// Client speaks the Deriv websocket API: tick history for analysis,
// accumulator purchases, and contract monitoring. One write pump guards
// the connection; responses are matched to requests by req_id.
type Client struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	nextID  int
	pending map[int]chan json.RawMessage
	streams map[int]chan json.RawMessage

	balMu       sync.Mutex
	lastBalance float64

	outcomes  chan state.TradeOutcome
	closed    chan struct{}
	closeOnce sync.Once
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	return &Client{
		cfg:      cfg,
		logger:   logger.With().Str("component", "DerivClient").Logger(),
		pending:  make(map[int]chan json.RawMessage),
		streams:  make(map[int]chan json.RawMessage),
		outcomes: make(chan state.TradeOutcome, 16),
		closed:   make(chan struct{}),
	}
}

// Connect dials the endpoint and authorizes with the API token.
func (c *Client) Connect(ctx context.Context) error {
	url := fmt.Sprintf("%s?app_id=%s", c.cfg.Endpoint, c.cfg.AppID)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.Endpoint, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop()

	if c.cfg.APIToken != "" {
		var resp struct {
			Authorize struct {
				LoginID string  `json:"loginid"`
				Balance float64 `json:"balance"`
			} `json:"authorize"`
		}
		if err := c.call(ctx, map[string]interface{}{"authorize": c.cfg.APIToken}, &resp); err != nil {
			conn.Close()
			return fmt.Errorf("authorize: %w", err)
		}
		c.balMu.Lock()
		c.lastBalance = resp.Authorize.Balance
		c.balMu.Unlock()
		c.logger.Info().
			Str("login_id", resp.Authorize.LoginID).
			Float64("balance", resp.Authorize.Balance).
			Msg("Deriv session authorized")
	}
	return nil
}

// Outcomes delivers settled contracts to the engine.
func (c *Client) Outcomes() <-chan state.TradeOutcome {
	return c.outcomes
}

// FetchSeries returns recent tick history. Synthetic indices carry no
// traded volume, so the sample count stands in as the liquidity figure.
func (c *Client) FetchSeries(ctx context.Context, instrumentID string, lookback int) (*market.PriceSeries, error) {
	if lookback <= 0 {
		lookback = 1800
	}
	req := map[string]interface{}{
		"ticks_history": instrumentID,
		"count":         lookback,
		"end":           "latest",
		"style":         "ticks",
	}
	var resp struct {
		History struct {
			Prices []float64 `json:"prices"`
			Times  []int64   `json:"times"`
		} `json:"history"`
	}
	if err := c.call(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("ticks_history %s: %w", instrumentID, err)
	}

	return &market.PriceSeries{
		InstrumentID: instrumentID,
		Prices:       resp.History.Prices,
		Volume:       float64(len(resp.History.Prices)),
		FetchedAt:    time.Now().UTC(),
	}, nil
}

// Balance fetches the current account balance.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	var resp struct {
		Balance struct {
			Balance float64 `json:"balance"`
		} `json:"balance"`
	}
	if err := c.call(ctx, map[string]interface{}{"balance": 1}, &resp); err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	c.balMu.Lock()
	c.lastBalance = resp.Balance.Balance
	c.balMu.Unlock()
	return resp.Balance.Balance, nil
}

// PlaceTrade buys an accumulator contract and monitors it in the
// background; the settled outcome arrives on Outcomes.
func (c *Client) PlaceTrade(ctx context.Context, instrumentID string, stake, growthRate, takeProfit float64) error {
	req := map[string]interface{}{
		"buy":   1,
		"price": stake,
		"parameters": map[string]interface{}{
			"contract_type": "ACCU",
			"symbol":        instrumentID,
			"amount":        stake,
			"basis":         "stake",
			"currency":      c.cfg.Currency,
			"growth_rate":   growthRate,
			"limit_order": map[string]interface{}{
				"take_profit": round2(stake * takeProfit),
			},
		},
	}
	var resp struct {
		Buy struct {
			ContractID int64   `json:"contract_id"`
			BuyPrice   float64 `json:"buy_price"`
		} `json:"buy"`
	}
	if err := c.call(ctx, req, &resp); err != nil {
		return fmt.Errorf("buy %s: %w", instrumentID, err)
	}

	c.logger.Info().
		Int64("contract_id", resp.Buy.ContractID).
		Str("instrument", instrumentID).
		Float64("stake", stake).
		Float64("growth_rate", growthRate).
		Msg("Accumulator contract opened")

	go c.monitorContract(resp.Buy.ContractID, instrumentID, stake)
	return nil
}

// monitorContract subscribes to contract updates until the contract is sold,
// then emits the outcome.
func (c *Client) monitorContract(contractID int64, instrumentID string, stake float64) {
	req := map[string]interface{}{
		"proposal_open_contract": 1,
		"contract_id":            contractID,
		"subscribe":              1,
	}
	updates, reqID, err := c.subscribe(req)
	if err != nil {
		c.logger.Error().Err(err).Int64("contract_id", contractID).Msg("Failed to monitor contract")
		return
	}
	defer c.unsubscribe(reqID)

	for {
		select {
		case <-c.closed:
			return
		case raw, ok := <-updates:
			if !ok {
				return
			}
			var resp struct {
				ProposalOpenContract struct {
					IsSold int     `json:"is_sold"`
					Profit float64 `json:"profit"`
				} `json:"proposal_open_contract"`
			}
			if err := json.Unmarshal(raw, &resp); err != nil {
				c.logger.Warn().Err(err).Msg("Bad contract update")
				continue
			}
			if resp.ProposalOpenContract.IsSold == 0 {
				continue
			}

			profit := resp.ProposalOpenContract.Profit
			balance, err := c.Balance(context.Background())
			if err != nil {
				// The contract already settled; derive the balance from
				// the last known figure instead of reporting zero.
				c.balMu.Lock()
				balance = c.lastBalance + profit
				c.lastBalance = balance
				c.balMu.Unlock()
				c.logger.Warn().Err(err).
					Float64("balance", balance).
					Msg("Balance refresh failed after settlement, carrying last known balance")
			}

			outcome := state.TradeOutcome{
				ContractID:   fmt.Sprintf("%d", contractID),
				InstrumentID: instrumentID,
				Stake:        stake,
				ProfitLoss:   profit,
				Win:          profit > 0,
				BalanceAfter: balance,
				ClosedAt:     time.Now().UTC(),
			}
			select {
			case c.outcomes <- outcome:
			case <-c.closed:
			}
			return
		}
	}
}

// call sends a request and decodes the single response into out.
func (c *Client) call(ctx context.Context, req map[string]interface{}, out interface{}) error {
	ch, reqID, err := c.send(req, false)
	if err != nil {
		return err
	}
	defer c.drop(reqID)

	select {
	case raw := <-ch:
		if err := apiError(raw); err != nil {
			return err
		}
		if out != nil {
			return json.Unmarshal(raw, out)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return ErrNotConnected
	}
}

// subscribe sends a streaming request; updates arrive on the returned channel.
func (c *Client) subscribe(req map[string]interface{}) (<-chan json.RawMessage, int, error) {
	ch, reqID, err := c.send(req, true)
	return ch, reqID, err
}

func (c *Client) send(req map[string]interface{}, stream bool) (chan json.RawMessage, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, 0, ErrNotConnected
	}

	c.nextID++
	reqID := c.nextID
	req["req_id"] = reqID

	ch := make(chan json.RawMessage, 8)
	if stream {
		c.streams[reqID] = ch
	} else {
		c.pending[reqID] = ch
	}

	if err := c.conn.WriteJSON(req); err != nil {
		delete(c.pending, reqID)
		delete(c.streams, reqID)
		return nil, 0, fmt.Errorf("write: %w", err)
	}
	return ch, reqID, nil
}

func (c *Client) drop(reqID int) {
	c.mu.Lock()
	delete(c.pending, reqID)
	c.mu.Unlock()
}

func (c *Client) unsubscribe(reqID int) {
	c.mu.Lock()
	delete(c.streams, reqID)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.logger.Error().Err(err).Msg("Deriv connection lost")
			}
			return
		}

		var envelope struct {
			ReqID   int `json:"req_id"`
			EchoReq struct {
				ReqID int `json:"req_id"`
			} `json:"echo_req"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			c.logger.Warn().Err(err).Msg("Undecodable message from Deriv")
			continue
		}
		reqID := envelope.ReqID
		if reqID == 0 {
			reqID = envelope.EchoReq.ReqID
		}

		c.mu.Lock()
		if ch, ok := c.streams[reqID]; ok {
			c.mu.Unlock()
			select {
			case ch <- raw:
			default:
				c.logger.Warn().Int("req_id", reqID).Msg("Dropping update, stream consumer is slow")
			}
			continue
		}
		ch, ok := c.pending[reqID]
		if ok {
			delete(c.pending, reqID)
		}
		c.mu.Unlock()

		if ok {
			ch <- raw
		}
	}
}

// Close shuts the connection; in-flight calls fail with ErrNotConnected.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()
	})
}

// apiError extracts an error object from a Deriv response, if present.
func apiError(raw json.RawMessage) error {
	var resp struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return &APIError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return nil
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
