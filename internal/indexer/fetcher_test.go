package indexer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"burnscope/internal/model"
)

const testWatch = "Vault111111111111111111111111111111111111111"

func burnTx(sig string, ts int64, amount string) Transaction {
	return Transaction{
		Signature: sig,
		Timestamp: ts,
		TokenTransfers: []TokenTransfer{
			{ToTokenAccount: testWatch, TokenAmount: json.Number(amount)},
		},
	}
}

func otherTx(sig string, ts int64) Transaction {
	return Transaction{
		Signature: sig,
		Timestamp: ts,
		TokenTransfers: []TokenTransfer{
			{ToUserAccount: "somebody-else", TokenAmount: json.Number("9")},
		},
	}
}

// fakeHistory serves canned pages keyed by the before token and can fail
// a configured number of times first.
type fakeHistory struct {
	pages     map[string][]Transaction
	failures  int
	failWith  error
	calls     int
	pageCalls []string
}

func (f *fakeHistory) Transactions(ctx context.Context, addr string, limit int, before string) ([]Transaction, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, f.failWith
	}
	f.pageCalls = append(f.pageCalls, before)
	return f.pages[before], nil
}

func newTestFetcher(history HistorySource) *Fetcher {
	return NewFetcher(FetchConfig{
		WatchAddress: testWatch,
		PageLimit:    2,
		MaxPages:     5,
		OverlapPages: 1,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
		MaxBackoff:   5 * time.Millisecond,
	}, history, nil, nil)
}

func TestFetchNewStopsAtCursorWithOverlap(t *testing.T) {
	// Page layout, newest first: [E, D] [C, B] [A]. Cursor sits at C, so
	// D and E are new; the scan continues one page past the barrier.
	history := &fakeHistory{pages: map[string][]Transaction{
		"":  {burnTx("E", 500, "5"), burnTx("D", 400, "4")},
		"D": {burnTx("C", 300, "3"), burnTx("B", 200, "2")},
		"B": {burnTx("A", 100, "1")},
	}}

	fetcher := newTestFetcher(history)
	events, next, err := fetcher.FetchNew(context.Background(), model.Cursor{LastSignature: "C", LastTimestamp: 300})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Overlap re-reads already-recorded transactions; the store absorbs
	// them. What matters: D and E are present, order is chronological.
	sigs := make([]string, 0, len(events))
	for _, ev := range events {
		sigs = append(sigs, ev.Signature)
	}
	want := []string{"A", "B", "C", "D", "E"}
	if len(sigs) != len(want) {
		t.Fatalf("events mismatch: got %v, want %v", sigs, want)
	}
	for i := range want {
		if sigs[i] != want[i] {
			t.Fatalf("order mismatch at %d: got %v, want %v", i, sigs, want)
		}
	}

	if next.LastSignature != "E" || next.LastTimestamp != 500 {
		t.Fatalf("cursor mismatch: %+v", next)
	}
}

func TestFetchNewOverlapBounded(t *testing.T) {
	history := &fakeHistory{pages: map[string][]Transaction{
		"":  {burnTx("E", 500, "5"), burnTx("D", 400, "4")},
		"D": {burnTx("C", 300, "3"), burnTx("B", 200, "2")},
		"B": {burnTx("A", 100, "1"), burnTx("Z", 50, "1")},
		"Z": {burnTx("Y", 25, "1")},
	}}

	fetcher := newTestFetcher(history)
	_, _, err := fetcher.FetchNew(context.Background(), model.Cursor{LastSignature: "E"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Barrier hits on the first page; one overlap page follows, then stop.
	if len(history.pageCalls) != 2 {
		t.Fatalf("expected 2 pages scanned, got %d (%v)", len(history.pageCalls), history.pageCalls)
	}
}

func TestFetchNewSumsTransfersPerTransaction(t *testing.T) {
	tx := Transaction{
		Signature: "multi",
		Timestamp: 100,
		TokenTransfers: []TokenTransfer{
			{ToTokenAccount: testWatch, TokenAmount: json.Number("1.5")},
			{ToUserAccount: testWatch, Amount: json.Number("2500000"), Decimals: json.Number("6")},
			{ToUserAccount: "somebody-else", TokenAmount: json.Number("99")},
		},
	}
	history := &fakeHistory{pages: map[string][]Transaction{"": {tx}}}

	fetcher := newTestFetcher(history)
	events, _, err := fetcher.FetchNew(context.Background(), model.Cursor{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if !events[0].Amount.Equal(decimal.RequireFromString("4")) {
		t.Fatalf("amount mismatch: got %s, want 4", events[0].Amount)
	}
}

func TestFetchNewTimestampBarrier(t *testing.T) {
	history := &fakeHistory{pages: map[string][]Transaction{
		"":  {burnTx("E", 500, "5"), burnTx("D", 400, "4")},
		"D": {burnTx("C", 300, "3")},
	}}

	fetcher := newTestFetcher(history)
	events, _, err := fetcher.FetchNew(context.Background(), model.Cursor{LastTimestamp: 400})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, ev := range events {
		if ev.Signature == "E" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected event past timestamp barrier, got %+v", events)
	}
}

func TestFetchNewRetriesRateLimitThenSucceeds(t *testing.T) {
	history := &fakeHistory{
		pages:    map[string][]Transaction{"": {burnTx("A", 100, "1")}},
		failures: 3,
		failWith: &RetryAfterError{Status: 429},
	}

	fetcher := newTestFetcher(history)
	events, _, err := fetcher.FetchNew(context.Background(), model.Cursor{})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if len(events) != 1 || events[0].Signature != "A" {
		t.Fatalf("events mismatch: %+v", events)
	}
	if history.calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", history.calls)
	}
}

func TestFetchNewAuthFailsFast(t *testing.T) {
	history := &fakeHistory{
		pages:    map[string][]Transaction{"": {burnTx("A", 100, "1")}},
		failures: 1,
		failWith: ErrAuth,
	}

	fetcher := newTestFetcher(history)
	_, next, err := fetcher.FetchNew(context.Background(), model.Cursor{LastSignature: "X", LastTimestamp: 9})
	if err == nil {
		t.Fatalf("expected auth error")
	}
	if history.calls != 1 {
		t.Fatalf("auth errors must not be retried: %d attempts", history.calls)
	}
	if next.LastSignature != "X" {
		t.Fatalf("cursor must be untouched on failure: %+v", next)
	}
}

func TestFetchNewEmptyHistory(t *testing.T) {
	history := &fakeHistory{pages: map[string][]Transaction{}}

	fetcher := newTestFetcher(history)
	events, next, err := fetcher.FetchNew(context.Background(), model.Cursor{LastSignature: "X"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
	if next.LastSignature != "X" {
		t.Fatalf("cursor should be unchanged: %+v", next)
	}
}

func TestFetchNewIgnoresNonMatchingTransfers(t *testing.T) {
	history := &fakeHistory{pages: map[string][]Transaction{
		"": {otherTx("N", 200), burnTx("A", 100, "1")},
	}}

	fetcher := newTestFetcher(history)
	events, next, err := fetcher.FetchNew(context.Background(), model.Cursor{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Signature != "A" {
		t.Fatalf("events mismatch: %+v", events)
	}
	// The cursor still advances to the newest observed transaction, even
	// though it produced no event.
	if next.LastSignature != "N" {
		t.Fatalf("cursor mismatch: %+v", next)
	}
}
