package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS verdict_history (
	run_id      TEXT PRIMARY KEY,
	ticker      TEXT NOT NULL,
	prev_run_id TEXT,
	verdict     TEXT NOT NULL,
	score       DOUBLE PRECISION NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	computed_at TIMESTAMPTZ NOT NULL,
	payload     JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS verdict_history_ticker_idx
	ON verdict_history (ticker, computed_at DESC);
`

// PostgresHistory persists the verdict chain so deltas survive restarts.
// The full verdict rides in a JSONB payload; the indexed columns exist for
// ad-hoc queries.
type PostgresHistory struct {
	db *sqlx.DB
}

// NewPostgresHistory connects and verifies the link.
func NewPostgresHistory(ctx context.Context, dsn string) (*PostgresHistory, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect history db: %w", err)
	}
	return &PostgresHistory{db: db}, nil
}

// NewPostgresHistoryFromDB wraps an existing connection, for tests.
func NewPostgresHistoryFromDB(db *sqlx.DB) *PostgresHistory {
	return &PostgresHistory{db: db}
}

// EnsureSchema creates the history table if it does not exist.
func (h *PostgresHistory) EnsureSchema(ctx context.Context) error {
	if _, err := h.db.ExecContext(ctx, historySchema); err != nil {
		return fmt.Errorf("ensure history schema: %w", err)
	}
	return nil
}

func (h *PostgresHistory) Latest(ctx context.Context, ticker string) (*CompositeVerdict, error) {
	var payload []byte
	err := h.db.GetContext(ctx, &payload,
		`SELECT payload FROM verdict_history WHERE ticker = $1 ORDER BY computed_at DESC LIMIT 1`,
		ticker)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest verdict: %w", err)
	}

	var v CompositeVerdict
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("decode verdict payload: %w", err)
	}
	return &v, nil
}

func (h *PostgresHistory) Save(ctx context.Context, v *CompositeVerdict) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode verdict payload: %w", err)
	}

	_, err = h.db.ExecContext(ctx,
		`INSERT INTO verdict_history
			(run_id, ticker, prev_run_id, verdict, score, confidence, computed_at, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		v.RunID, v.Ticker, nullable(v.PrevRunID), v.Verdict, v.Score,
		v.AggregateConfidence, v.ComputedAt, payload)
	if err != nil {
		return fmt.Errorf("save verdict: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (h *PostgresHistory) Close() error { return h.db.Close() }

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
