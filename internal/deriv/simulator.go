package deriv

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"decter-engine/internal/market"
	"decter-engine/internal/state"
)

// Simulator stands in for the live API when mock mode is on. Ticks follow a
// per-instrument random walk and contracts settle after a short delay with
// odds close to an accumulator's real profile.
type Simulator struct {
	logger zerolog.Logger

	mu       sync.Mutex
	rng      *rand.Rand
	balance  float64
	nextID   int64
	sigma    map[string]float64
	settleIn time.Duration

	outcomes chan state.TradeOutcome
}

func NewSimulator(startBalance float64, logger zerolog.Logger) *Simulator {
	return &Simulator{
		logger:  logger.With().Str("component", "DerivSimulator").Logger(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		balance: startBalance,
		sigma: map[string]float64{
			"R_10":    0.0010,
			"R_25":    0.0025,
			"R_50":    0.0050,
			"R_75":    0.0075,
			"R_100":   0.0100,
			"1HZ100V": 0.0100,
		},
		settleIn: 2 * time.Second,
		outcomes: make(chan state.TradeOutcome, 16),
	}
}

func (s *Simulator) Outcomes() <-chan state.TradeOutcome {
	return s.outcomes
}

func (s *Simulator) Balance(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, nil
}

func (s *Simulator) FetchSeries(ctx context.Context, instrumentID string, lookback int) (*market.PriceSeries, error) {
	s.mu.Lock()
	sigma, ok := s.sigma[instrumentID]
	if !ok {
		sigma = 0.005
	}
	prices := make([]float64, lookback)
	p := 100.0 + s.rng.Float64()*900
	for i := range prices {
		p *= 1 + s.rng.NormFloat64()*sigma
		prices[i] = p
	}
	s.mu.Unlock()

	return &market.PriceSeries{
		InstrumentID: instrumentID,
		Prices:       prices,
		Volume:       float64(lookback),
		FetchedAt:    time.Now().UTC(),
	}, nil
}

func (s *Simulator) PlaceTrade(ctx context.Context, instrumentID string, stake, growthRate, takeProfit float64) error {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	// Accumulators win small amounts often and lose the stake rarely.
	win := s.rng.Float64() < 0.90
	pnl := stake * takeProfit
	if !win {
		pnl = -stake
	}
	s.balance += pnl
	balance := s.balance
	delay := s.settleIn
	s.mu.Unlock()

	s.logger.Debug().
		Int64("contract_id", id).
		Str("instrument", instrumentID).
		Float64("stake", stake).
		Msg("Simulated contract opened")

	go func() {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
		s.outcomes <- state.TradeOutcome{
			ContractID:   fmt.Sprintf("sim-%d", id),
			InstrumentID: instrumentID,
			Stake:        stake,
			ProfitLoss:   pnl,
			Win:          win,
			BalanceAfter: balance,
			ClosedAt:     time.Now().UTC(),
		}
	}()
	return nil
}

func (s *Simulator) Close() {}
