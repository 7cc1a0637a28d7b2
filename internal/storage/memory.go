package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"burnscope/internal/model"
)

// MemoryStore keeps events, cursors, and subscribers in memory. It backs
// tests and runs without a database.
type MemoryStore struct {
	mu      sync.Mutex
	events  map[string]model.BurnEvent
	cursors map[string]model.Cursor
	subs    map[string]map[int64]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:  make(map[string]model.BurnEvent),
		cursors: make(map[string]model.Cursor),
		subs:    make(map[string]map[int64]struct{}),
	}
}

func (s *MemoryStore) RecordBurn(ctx context.Context, ev model.BurnEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[ev.Signature]; exists {
		return false, nil
	}
	s.events[ev.Signature] = ev
	return true, nil
}

func (s *MemoryStore) RollingSums(ctx context.Context, now time.Time, windows []time.Duration) (map[time.Duration]model.WindowTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals := make(map[time.Duration]model.WindowTotals, len(windows))
	for _, window := range windows {
		cutoff := now.Add(-window).Unix()
		amount := decimal.Zero
		usd := decimal.Zero
		for _, ev := range s.events {
			if ev.Timestamp < cutoff {
				continue
			}
			amount = amount.Add(ev.Amount)
			usd = usd.Add(ev.USDValue())
		}
		totals[window] = model.WindowTotals{Amount: amount, USD: usd}
	}
	return totals, nil
}

func (s *MemoryStore) Load(ctx context.Context, topic string) (model.Cursor, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cursor, ok := s.cursors[topic]
	return cursor, ok, nil
}

func (s *MemoryStore) Save(ctx context.Context, topic string, cursor model.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[topic] = cursor
	return nil
}

func (s *MemoryStore) Subscribers(ctx context.Context, topic string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := s.subs[topic]
	out := make([]int64, 0, len(members))
	for chatID := range members {
		out = append(out, chatID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *MemoryStore) Add(ctx context.Context, topic string, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs[topic] == nil {
		s.subs[topic] = make(map[int64]struct{})
	}
	s.subs[topic][chatID] = struct{}{}
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, topic string, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subs[topic], chatID)
	return nil
}
