package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"burnscope/internal/model"
)

// Store provides Postgres persistence for burn events, cursors, and
// subscribers.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS burn_events (
			signature  TEXT PRIMARY KEY,
			ts         BIGINT NOT NULL,
			amount     NUMERIC NOT NULL,
			price_usd  NUMERIC,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS burn_events_ts_idx ON burn_events (ts)`,
		`CREATE TABLE IF NOT EXISTS ingest_cursors (
			topic          TEXT PRIMARY KEY,
			last_signature TEXT NOT NULL DEFAULT '',
			last_ts        BIGINT NOT NULL DEFAULT 0,
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS subscribers (
			topic      TEXT NOT NULL,
			chat_id    BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (topic, chat_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// RecordBurn inserts the event if absent, keyed by signature. Reports
// whether a row was actually written.
func (s *Store) RecordBurn(ctx context.Context, ev model.BurnEvent) (bool, error) {
	var priceArg *string
	if ev.PriceUSD != nil {
		price := ev.PriceUSD.String()
		priceArg = &price
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO burn_events (signature, ts, amount, price_usd)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (signature) DO NOTHING
	`, ev.Signature, ev.Timestamp, ev.Amount.String(), priceArg)
	if err != nil {
		return false, fmt.Errorf("record burn: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RollingSums computes token and USD sums per trailing window.
func (s *Store) RollingSums(ctx context.Context, now time.Time, windows []time.Duration) (map[time.Duration]model.WindowTotals, error) {
	totals := make(map[time.Duration]model.WindowTotals, len(windows))
	for _, window := range windows {
		cutoff := now.Add(-window).Unix()

		var amountText, usdText string
		row := s.pool.QueryRow(ctx, `
			SELECT COALESCE(SUM(amount), 0)::text,
			       COALESCE(SUM(amount * COALESCE(price_usd, 0)), 0)::text
			FROM burn_events
			WHERE ts >= $1
		`, cutoff)
		if err := row.Scan(&amountText, &usdText); err != nil {
			return nil, fmt.Errorf("rolling sums: %w", err)
		}

		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			return nil, fmt.Errorf("parse amount sum: %w", err)
		}
		usd, err := decimal.NewFromString(usdText)
		if err != nil {
			return nil, fmt.Errorf("parse usd sum: %w", err)
		}
		totals[window] = model.WindowTotals{Amount: amount, USD: usd}
	}
	return totals, nil
}

// Load returns the cursor for a topic.
func (s *Store) Load(ctx context.Context, topic string) (model.Cursor, bool, error) {
	if topic == "" {
		return model.Cursor{}, false, fmt.Errorf("topic is required")
	}
	var cursor model.Cursor
	row := s.pool.QueryRow(ctx, `SELECT last_signature, last_ts FROM ingest_cursors WHERE topic = $1`, topic)
	if err := row.Scan(&cursor.LastSignature, &cursor.LastTimestamp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Cursor{}, false, nil
		}
		return model.Cursor{}, false, err
	}
	return cursor, true, nil
}

// Save upserts the cursor for a topic.
func (s *Store) Save(ctx context.Context, topic string, cursor model.Cursor) error {
	if topic == "" {
		return fmt.Errorf("topic is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingest_cursors (topic, last_signature, last_ts, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (topic) DO UPDATE
		SET last_signature = EXCLUDED.last_signature, last_ts = EXCLUDED.last_ts, updated_at = now()
	`, topic, cursor.LastSignature, cursor.LastTimestamp)
	return err
}

// Subscribers lists chat ids subscribed to a topic.
func (s *Store) Subscribers(ctx context.Context, topic string) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT chat_id FROM subscribers WHERE topic = $1 ORDER BY chat_id`, topic)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var chatID int64
		if err := rows.Scan(&chatID); err != nil {
			return nil, err
		}
		out = append(out, chatID)
	}
	return out, rows.Err()
}

// Add subscribes a chat to a topic. Re-subscribing is a no-op.
func (s *Store) Add(ctx context.Context, topic string, chatID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscribers (topic, chat_id)
		VALUES ($1, $2)
		ON CONFLICT (topic, chat_id) DO NOTHING
	`, topic, chatID)
	return err
}

// Remove unsubscribes a chat from a topic.
func (s *Store) Remove(ctx context.Context, topic string, chatID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM subscribers WHERE topic = $1 AND chat_id = $2`, topic, chatID)
	return err
}
