package guard

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"decter-engine/internal/state"
)

// Config holds the emergency guardrail settings.
type Config struct {
	// DrawLimit multiplies the expected per-trade profit to form the
	// catastrophic single-trade loss threshold.
	DrawLimit float64
}

// Guard is a latch that halts trading when a single trade loses far more
// than the configured parameters should allow. Once tripped it stays
// tripped until an operator resumes it.
type Guard struct {
	cfg    Config
	logger zerolog.Logger

	mu        sync.RWMutex
	tripped   bool
	reason    string
	trippedAt time.Time

	onTrip   func(reason string)
	onResume func()
}

func New(cfg Config, logger zerolog.Logger) *Guard {
	if cfg.DrawLimit <= 0 {
		cfg.DrawLimit = 10
	}
	return &Guard{
		cfg:    cfg,
		logger: logger.With().Str("component", "EmergencyGuard").Logger(),
	}
}

// OnTrip registers a callback fired once per trip, outside the lock.
func (g *Guard) OnTrip(fn func(reason string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onTrip = fn
}

// OnResume registers a callback fired when the guard is cleared.
func (g *Guard) OnResume(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onResume = fn
}

// Threshold returns the loss, in account currency, beyond which a single
// trade is considered catastrophic for the given parameters.
func (g *Guard) Threshold(p state.ActiveParams) float64 {
	return g.cfg.DrawLimit * p.TakeProfit * p.Stake
}

// Check inspects a settled trade and trips the guard when the loss exceeds
// the threshold. Returns true when the guard tripped on this trade.
func (g *Guard) Check(o state.TradeOutcome, p state.ActiveParams) bool {
	if o.Win || o.ProfitLoss >= 0 {
		return false
	}
	loss := -o.ProfitLoss
	threshold := g.Threshold(p)
	if threshold <= 0 || loss <= threshold {
		return false
	}

	reason := fmt.Sprintf("trade %s lost %.2f, beyond the %.2f single-trade limit",
		o.ContractID, loss, threshold)
	g.Trip(reason)
	return true
}

// Trip latches the guard. Repeated trips keep the first reason.
func (g *Guard) Trip(reason string) {
	g.mu.Lock()
	if g.tripped {
		g.mu.Unlock()
		return
	}
	g.tripped = true
	g.reason = reason
	g.trippedAt = time.Now().UTC()
	fn := g.onTrip
	g.mu.Unlock()

	g.logger.Error().Str("reason", reason).Msg("EMERGENCY GUARD TRIPPED, trading halted")
	if fn != nil {
		fn(reason)
	}
}

// Resume clears the latch after operator review.
func (g *Guard) Resume() {
	g.mu.Lock()
	if !g.tripped {
		g.mu.Unlock()
		return
	}
	g.tripped = false
	g.reason = ""
	fn := g.onResume
	g.mu.Unlock()

	g.logger.Info().Msg("Emergency guard cleared, trading may resume")
	if fn != nil {
		fn()
	}
}

// Tripped reports the latch state and the reason it tripped.
func (g *Guard) Tripped() (bool, string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tripped, g.reason
}

// TrippedAt returns when the guard last tripped, zero if never.
func (g *Guard) TrippedAt() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.trippedAt
}
