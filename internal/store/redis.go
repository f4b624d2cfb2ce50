package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	statusKey = "decter:engine:status"
	statusTTL = 30 * time.Second
)

// StatusMirror keeps the latest engine status snapshot in Redis so external
// dashboards can read it without touching the engine. When Redis is down it
// degrades to an in-memory copy and keeps serving local reads.
type StatusMirror struct {
	client *redis.Client
	logger zerolog.Logger

	mu       sync.RWMutex
	fallback []byte
}

// RedisOptions mirrors the subset of client options the engine uses.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

func NewStatusMirror(ctx context.Context, opts RedisOptions, logger zerolog.Logger) *StatusMirror {
	m := &StatusMirror{
		logger: logger.With().Str("component", "StatusMirror").Logger(),
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		m.logger.Warn().Err(err).Msg("Redis unavailable, status mirror runs in memory only")
		client.Close()
		return m
	}

	m.client = client
	m.logger.Info().Str("address", opts.Address).Msg("Redis status mirror connected")
	return m
}

// NewMemoryMirror returns a mirror that never touches Redis.
func NewMemoryMirror(logger zerolog.Logger) *StatusMirror {
	return &StatusMirror{
		logger: logger.With().Str("component", "StatusMirror").Logger(),
	}
}

// Publish stores the status snapshot. Redis failures are logged, not fatal;
// the in-memory copy always updates.
func (m *StatusMirror) Publish(ctx context.Context, status interface{}) error {
	raw, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	m.mu.Lock()
	m.fallback = raw
	m.mu.Unlock()

	if m.client == nil {
		return nil
	}
	if err := m.client.Set(ctx, statusKey, raw, statusTTL).Err(); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to mirror status to Redis")
		return nil
	}
	return nil
}

// Get reads the latest snapshot, preferring Redis.
func (m *StatusMirror) Get(ctx context.Context, dst interface{}) error {
	if m.client != nil {
		raw, err := m.client.Get(ctx, statusKey).Bytes()
		if err == nil {
			return json.Unmarshal(raw, dst)
		}
		if err != redis.Nil {
			m.logger.Warn().Err(err).Msg("Redis status read failed, using memory copy")
		}
	}

	m.mu.RLock()
	raw := m.fallback
	m.mu.RUnlock()
	if raw == nil {
		return ErrNotFound
	}
	return json.Unmarshal(raw, dst)
}

func (m *StatusMirror) Close() {
	if m.client != nil {
		m.client.Close()
	}
}
