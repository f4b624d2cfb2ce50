package deriv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// fakeDerivServer answers the minimal protocol the client speaks: balance,
// buy, and a single settled proposal_open_contract update.
type fakeDerivServer struct {
	upgrader    websocket.Upgrader
	failBalance atomic.Bool
	balance     float64
	profit      float64
}

func (s *fakeDerivServer) handler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var req map[string]interface{}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		reqID := req["req_id"]

		switch {
		case req["balance"] != nil:
			if s.failBalance.Load() {
				conn.WriteJSON(map[string]interface{}{
					"req_id": reqID,
					"error":  map[string]interface{}{"code": "RateLimit", "message": "too many requests"},
				})
				continue
			}
			conn.WriteJSON(map[string]interface{}{
				"req_id":  reqID,
				"balance": map[string]interface{}{"balance": s.balance},
			})
		case req["buy"] != nil:
			conn.WriteJSON(map[string]interface{}{
				"req_id": reqID,
				"buy":    map[string]interface{}{"contract_id": 7, "buy_price": req["price"]},
			})
		case req["proposal_open_contract"] != nil:
			conn.WriteJSON(map[string]interface{}{
				"req_id": reqID,
				"proposal_open_contract": map[string]interface{}{
					"is_sold": 1,
					"profit":  s.profit,
				},
			})
		default:
			conn.WriteJSON(map[string]interface{}{"req_id": reqID})
		}
	}
}

func newConnectedClient(t *testing.T, srv *fakeDerivServer) (*Client, func()) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(srv.handler))
	c := NewClient(Config{
		Endpoint: "ws" + strings.TrimPrefix(ts.URL, "http"),
		AppID:    "1",
		Currency: "USD",
	}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		ts.Close()
		t.Fatalf("Connect: %v", err)
	}
	return c, func() {
		c.Close()
		ts.Close()
	}
}

func TestBalanceRoundTrip(t *testing.T) {
	srv := &fakeDerivServer{balance: 1000}
	c, shutdown := newConnectedClient(t, srv)
	defer shutdown()

	b, err := c.Balance(context.Background())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if b != 1000 {
		t.Errorf("balance = %f, want 1000", b)
	}
}

func TestSettlementCarriesLastBalanceWhenRefreshFails(t *testing.T) {
	srv := &fakeDerivServer{balance: 1000, profit: 2.5}
	c, shutdown := newConnectedClient(t, srv)
	defer shutdown()

	if _, err := c.Balance(context.Background()); err != nil {
		t.Fatalf("Balance: %v", err)
	}
	srv.failBalance.Store(true)

	if err := c.PlaceTrade(context.Background(), "R_10", 2.0, 0.02, 0.05); err != nil {
		t.Fatalf("PlaceTrade: %v", err)
	}

	select {
	case o := <-c.Outcomes():
		if o.ContractID != "7" || o.InstrumentID != "R_10" {
			t.Errorf("outcome = %+v", o)
		}
		if o.ProfitLoss != 2.5 || !o.Win {
			t.Errorf("pnl = %f win = %v, want 2.5 win", o.ProfitLoss, o.Win)
		}
		if o.BalanceAfter != 1002.5 {
			t.Errorf("BalanceAfter = %f, want last known 1000 + profit 2.5", o.BalanceAfter)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("outcome never arrived")
	}
}
