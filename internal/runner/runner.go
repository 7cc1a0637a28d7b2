package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"burnscope/internal/indexer"
	"burnscope/internal/model"
	"burnscope/internal/notify"
	"burnscope/internal/storage"
)

// EventSource produces burn events, either by polling past a cursor or
// from pre-formed transaction batches.
type EventSource interface {
	FetchNew(ctx context.Context, cursor model.Cursor) ([]model.BurnEvent, model.Cursor, error)
	FromBatch(ctx context.Context, txs []indexer.Transaction) []model.BurnEvent
}

// Config holds runtime settings for one ingestion topic.
type Config struct {
	Topic   string
	Windows []time.Duration
}

// Runner executes ingestion cycles for a single topic. Cycles are
// serialized behind a mutex: the cursor has exactly one writer at a time.
type Runner struct {
	cfg        Config
	source     EventSource
	events     storage.EventStore
	cursors    storage.CursorStore
	subs       storage.SubscriberStore
	dispatcher *notify.Dispatcher
	logger     *zap.Logger

	mu sync.Mutex
}

// New builds a Runner with its dependencies.
func New(cfg Config, source EventSource, events storage.EventStore, cursors storage.CursorStore, subs storage.SubscriberStore, dispatcher *notify.Dispatcher, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Topic == "" {
		cfg.Topic = "burn"
	}
	if len(cfg.Windows) == 0 {
		cfg.Windows = model.DefaultWindows
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		events:     events,
		cursors:    cursors,
		subs:       subs,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RunOnce executes one ingestion cycle: load cursor, fetch, record,
// aggregate, dispatch, and only then commit the cursor. If anything fails
// before the commit, the next cycle re-fetches from the committed
// position; replays are absorbed by the store's idempotent insert and are
// never re-dispatched.
func (r *Runner) RunOnce(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cursor, _, err := r.cursors.Load(ctx, r.cfg.Topic)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}

	events, next, err := r.source.FetchNew(ctx, cursor)
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}

	fresh := make([]model.BurnEvent, 0, len(events))
	for _, ev := range events {
		inserted, err := r.events.RecordBurn(ctx, ev)
		if err != nil {
			return fmt.Errorf("record burn %s: %w", ev.Signature, err)
		}
		if !inserted {
			r.logger.Debug("duplicate burn skipped", zap.String("signature", ev.Signature))
			continue
		}
		fresh = append(fresh, ev)
	}

	if len(fresh) > 0 {
		if err := r.dispatch(ctx, fresh); err != nil {
			return err
		}
	}

	if next != cursor {
		if err := r.cursors.Save(ctx, r.cfg.Topic, next); err != nil {
			return fmt.Errorf("commit cursor: %w", err)
		}
	}

	r.logger.Info("cycle complete",
		zap.String("topic", r.cfg.Topic),
		zap.Int("fetched", len(events)),
		zap.Int("new", len(fresh)),
		zap.String("cursor", next.LastSignature),
	)
	return nil
}

// RunLoop runs cycles on a fixed interval until ctx is cancelled. Cycle
// failures are operational, not fatal: they are logged and the loop keeps
// going.
func (r *Runner) RunLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := r.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.logger.Error("cycle failed", zap.String("topic", r.cfg.Topic), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessBatch ingests pre-formed transactions delivered by push and
// dispatches the ones not seen before. The cursor is untouched: push
// delivery has no paging position, and the next poll re-covers the same
// ground idempotently. Returns the number of newly recorded events.
func (r *Runner) ProcessBatch(ctx context.Context, txs []indexer.Transaction) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := r.source.FromBatch(ctx, txs)

	fresh := make([]model.BurnEvent, 0, len(events))
	for _, ev := range events {
		inserted, err := r.events.RecordBurn(ctx, ev)
		if err != nil {
			return len(fresh), fmt.Errorf("record burn %s: %w", ev.Signature, err)
		}
		if inserted {
			fresh = append(fresh, ev)
		}
	}

	if len(fresh) > 0 {
		if err := r.dispatch(ctx, fresh); err != nil {
			return len(fresh), err
		}
	}
	return len(fresh), nil
}

func (r *Runner) dispatch(ctx context.Context, fresh []model.BurnEvent) error {
	totals, err := r.events.RollingSums(ctx, time.Now(), r.cfg.Windows)
	if err != nil {
		return fmt.Errorf("rolling sums: %w", err)
	}

	subscribers, err := r.subs.Subscribers(ctx, r.cfg.Topic)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}
	if len(subscribers) == 0 {
		r.logger.Info("no subscribers", zap.String("topic", r.cfg.Topic))
		return nil
	}

	for _, ev := range fresh {
		sent := r.dispatcher.Notify(ctx, ev, totals, subscribers)
		r.logger.Info("alert dispatched",
			zap.String("signature", ev.Signature),
			zap.Int("sent", sent),
			zap.Int("subscribers", len(subscribers)),
		)
	}
	return nil
}
