package storage

import (
	"context"
	"time"

	"burnscope/internal/model"
)

// EventStore owns durable burn-event storage and aggregate computation.
type EventStore interface {
	// RecordBurn inserts the event if its signature is unseen and reports
	// whether it was newly inserted. Safe to call any number of times for
	// the same signature; totals never double-count.
	RecordBurn(ctx context.Context, ev model.BurnEvent) (bool, error)

	// RollingSums computes token and USD sums over each trailing window,
	// from events with timestamp >= now - window.
	RollingSums(ctx context.Context, now time.Time, windows []time.Duration) (map[time.Duration]model.WindowTotals, error)
}

// CursorStore persists ingestion progress per topic.
type CursorStore interface {
	Load(ctx context.Context, topic string) (model.Cursor, bool, error)
	Save(ctx context.Context, topic string, cursor model.Cursor) error
}

// SubscriberStore owns the chat subscriptions for each topic.
type SubscriberStore interface {
	Subscribers(ctx context.Context, topic string) ([]int64, error)
	Add(ctx context.Context, topic string, chatID int64) error
	Remove(ctx context.Context, topic string, chatID int64) error
}
