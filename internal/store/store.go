package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"decter-engine/internal/state"
)

// ErrNotFound is returned when no engine state has been saved yet.
var ErrNotFound = errors.New("no saved state")

// ModeSwitchRecord is one entry in the append-only mode transition log.
type ModeSwitchRecord struct {
	ID             string     `json:"id"`
	FromMode       state.Mode `json:"from_mode"`
	ToMode         state.Mode `json:"to_mode"`
	FromInstrument string     `json:"from_instrument"`
	ToInstrument   string     `json:"to_instrument"`
	LossStreak     int        `json:"loss_streak"`
	CumulativeLoss float64    `json:"cumulative_loss"`
	Volatility     float64    `json:"volatility"`
	Decision       string     `json:"decision"`
	SwitchedAt     time.Time  `json:"switched_at"`
}

// Store is the durable home of engine state and audit history. All writes
// come from the single engine loop; reads may come from anywhere.
type Store interface {
	Load(ctx context.Context) (*state.EngineState, error)
	Save(ctx context.Context, s *state.EngineState) error
	AppendModeSwitch(ctx context.Context, rec ModeSwitchRecord) error
	AppendTrade(ctx context.Context, o state.TradeOutcome) error
	RecentTrades(ctx context.Context, limit int) ([]state.TradeOutcome, error)
	ModeSwitches(ctx context.Context, limit int) ([]ModeSwitchRecord, error)
	Close()
}

// MemoryStore keeps everything in process memory. It backs tests and runs
// where no database is configured; state does not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	snapshot *state.EngineState
	trades   []state.TradeOutcome
	switches []ModeSwitchRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (*state.EngineState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot == nil {
		return nil, ErrNotFound
	}
	return m.snapshot.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, s *state.EngineState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = s.Clone()
	return nil
}

func (m *MemoryStore) AppendModeSwitch(ctx context.Context, rec ModeSwitchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.switches = append(m.switches, rec)
	return nil
}

func (m *MemoryStore) AppendTrade(ctx context.Context, o state.TradeOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, o)
	return nil
}

func (m *MemoryStore) RecentTrades(ctx context.Context, limit int) ([]state.TradeOutcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lastN(m.trades, limit), nil
}

func (m *MemoryStore) ModeSwitches(ctx context.Context, limit int) ([]ModeSwitchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lastN(m.switches, limit), nil
}

func (m *MemoryStore) Close() {}

// lastN returns the newest entries first.
func lastN[T any](items []T, limit int) []T {
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	out := make([]T, 0, limit)
	for i := len(items) - 1; i >= len(items)-limit; i-- {
		out = append(out, items[i])
	}
	return out
}
