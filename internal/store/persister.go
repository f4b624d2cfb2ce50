package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"decter-engine/internal/state"
)

// Persister wraps a Store with bounded retries. When every attempt fails it
// raises a degraded flag instead of blocking the engine; trading continues
// and the next successful save clears the flag.
type Persister struct {
	store  Store
	logger zerolog.Logger

	attempts int
	backoff  time.Duration

	mu       sync.RWMutex
	degraded bool

	onDegraded func(err error)
	onRestored func()
}

func NewPersister(s Store, logger zerolog.Logger) *Persister {
	return &Persister{
		store:    s,
		logger:   logger.With().Str("component", "Persister").Logger(),
		attempts: 3,
		backoff:  200 * time.Millisecond,
	}
}

// OnDegraded registers a callback fired when persistence starts failing.
func (p *Persister) OnDegraded(fn func(err error)) { p.onDegraded = fn }

// OnRestored registers a callback fired when persistence recovers.
func (p *Persister) OnRestored(fn func()) { p.onRestored = fn }

// Degraded reports whether the last save round failed entirely.
func (p *Persister) Degraded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.degraded
}

// Load reads the saved snapshot from the underlying store.
func (p *Persister) Load(ctx context.Context) (*state.EngineState, error) {
	return p.store.Load(ctx)
}

// Save writes the snapshot with retries. The returned error is the last
// attempt's error; the degraded flag tracks the overall outcome.
func (p *Persister) Save(ctx context.Context, st *state.EngineState) error {
	var err error
	for i := 0; i < p.attempts; i++ {
		if err = p.store.Save(ctx, st); err == nil {
			p.markHealthy()
			return nil
		}
		if i < p.attempts-1 {
			select {
			case <-time.After(p.backoff * time.Duration(i+1)):
			case <-ctx.Done():
				p.markDegraded(ctx.Err())
				return ctx.Err()
			}
		}
	}
	p.markDegraded(err)
	return err
}

// AppendTrade logs the trade, best effort. Audit rows are not retried; a
// missed row is tolerable, a blocked engine loop is not.
func (p *Persister) AppendTrade(ctx context.Context, o state.TradeOutcome) {
	if err := p.store.AppendTrade(ctx, o); err != nil {
		p.logger.Warn().Err(err).Str("contract", o.ContractID).Msg("Failed to record trade")
	}
}

// AppendModeSwitch logs the transition, best effort.
func (p *Persister) AppendModeSwitch(ctx context.Context, rec ModeSwitchRecord) {
	if err := p.store.AppendModeSwitch(ctx, rec); err != nil {
		p.logger.Warn().Err(err).Str("record", rec.ID).Msg("Failed to record mode switch")
	}
}

func (p *Persister) markDegraded(err error) {
	p.mu.Lock()
	was := p.degraded
	p.degraded = true
	p.mu.Unlock()

	if !was {
		p.logger.Error().Err(err).Msg("State persistence degraded, running from memory")
		if p.onDegraded != nil {
			p.onDegraded(err)
		}
	}
}

func (p *Persister) markHealthy() {
	p.mu.Lock()
	was := p.degraded
	p.degraded = false
	p.mu.Unlock()

	if was {
		p.logger.Info().Msg("State persistence restored")
		if p.onRestored != nil {
			p.onRestored()
		}
	}
}
