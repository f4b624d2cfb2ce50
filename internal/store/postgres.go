package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"decter-engine/internal/state"
)

// migrations run in order on startup; each statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS engine_state (
		id INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		snapshot JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS mode_switches (
		id UUID PRIMARY KEY,
		from_mode TEXT NOT NULL,
		to_mode TEXT NOT NULL,
		from_instrument TEXT NOT NULL DEFAULT '',
		to_instrument TEXT NOT NULL DEFAULT '',
		loss_streak INT NOT NULL DEFAULT 0,
		cumulative_loss DOUBLE PRECISION NOT NULL DEFAULT 0,
		volatility DOUBLE PRECISION NOT NULL DEFAULT 0,
		decision TEXT NOT NULL DEFAULT '',
		switched_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_mode_switches_switched_at ON mode_switches(switched_at DESC)`,
	`CREATE TABLE IF NOT EXISTS trades (
		contract_id TEXT PRIMARY KEY,
		instrument_id TEXT NOT NULL,
		stake DOUBLE PRECISION NOT NULL,
		profit_loss DOUBLE PRECISION NOT NULL,
		win BOOLEAN NOT NULL,
		balance_after DOUBLE PRECISION NOT NULL,
		mode TEXT NOT NULL,
		closed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON trades(closed_at DESC)`,
}

// PostgresStore persists engine state and audit history in PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPostgresStore(ctx context.Context, dsn string, logger zerolog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{
		pool:   pool,
		logger: logger.With().Str("component", "PostgresStore").Logger(),
	}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s.logger.Info().Msg("Database connected and migrated")
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (*state.EngineState, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT snapshot FROM engine_state WHERE id = 1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load engine state: %w", err)
	}

	var st state.EngineState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode engine state: %w", err)
	}
	return &st, nil
}

func (s *PostgresStore) Save(ctx context.Context, st *state.EngineState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode engine state: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO engine_state (id, snapshot, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET snapshot = $1, updated_at = now()`, raw)
	if err != nil {
		return fmt.Errorf("save engine state: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendModeSwitch(ctx context.Context, rec ModeSwitchRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO mode_switches
			(id, from_mode, to_mode, from_instrument, to_instrument,
			 loss_streak, cumulative_loss, volatility, decision, switched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.FromMode, rec.ToMode, rec.FromInstrument, rec.ToInstrument,
		rec.LossStreak, rec.CumulativeLoss, rec.Volatility, rec.Decision, rec.SwitchedAt)
	if err != nil {
		return fmt.Errorf("append mode switch: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendTrade(ctx context.Context, o state.TradeOutcome) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trades
			(contract_id, instrument_id, stake, profit_loss, win, balance_after, mode, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (contract_id) DO NOTHING`,
		o.ContractID, o.InstrumentID, o.Stake, o.ProfitLoss, o.Win, o.BalanceAfter, o.Mode, o.ClosedAt)
	if err != nil {
		return fmt.Errorf("append trade: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentTrades(ctx context.Context, limit int) ([]state.TradeOutcome, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT contract_id, instrument_id, stake, profit_loss, win, balance_after, mode, closed_at
		FROM trades ORDER BY closed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []state.TradeOutcome
	for rows.Next() {
		var o state.TradeOutcome
		if err := rows.Scan(&o.ContractID, &o.InstrumentID, &o.Stake, &o.ProfitLoss,
			&o.Win, &o.BalanceAfter, &o.Mode, &o.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ModeSwitches(ctx context.Context, limit int) ([]ModeSwitchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, from_mode, to_mode, from_instrument, to_instrument,
		       loss_streak, cumulative_loss, volatility, decision, switched_at
		FROM mode_switches ORDER BY switched_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query mode switches: %w", err)
	}
	defer rows.Close()

	var out []ModeSwitchRecord
	for rows.Next() {
		var rec ModeSwitchRecord
		if err := rows.Scan(&rec.ID, &rec.FromMode, &rec.ToMode, &rec.FromInstrument,
			&rec.ToInstrument, &rec.LossStreak, &rec.CumulativeLoss, &rec.Volatility,
			&rec.Decision, &rec.SwitchedAt); err != nil {
			return nil, fmt.Errorf("scan mode switch: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
