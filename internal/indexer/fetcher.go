package indexer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"burnscope/internal/model"
)

// HistorySource pages an address transaction-history API, newest first.
type HistorySource interface {
	Transactions(ctx context.Context, addr string, limit int, before string) ([]Transaction, error)
}

// PriceSource resolves an approximate USD price for the watched token.
// Both lookups report ok=false instead of failing.
type PriceSource interface {
	Spot(ctx context.Context) (decimal.Decimal, bool)
	At(ctx context.Context, at time.Time) (decimal.Decimal, bool)
}

// FetchConfig holds runtime settings for the fetcher.
type FetchConfig struct {
	WatchAddress string
	Mint         string
	PageLimit    int
	MaxPages     int
	OverlapPages int
	MaxRetries   int
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
}

// Fetcher turns new transaction-history entries into burn events.
type Fetcher struct {
	cfg     FetchConfig
	history HistorySource
	prices  PriceSource
	logger  *zap.Logger
}

// NewFetcher builds a Fetcher with its dependencies.
func NewFetcher(cfg FetchConfig, history HistorySource, prices PriceSource, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.OverlapPages < 0 {
		cfg.OverlapPages = 0
	}
	return &Fetcher{cfg: cfg, history: history, prices: prices, logger: logger}
}

// FetchNew returns burn events observed past the cursor in chronological
// order, plus the candidate next cursor. The caller must not commit the
// cursor until the events have been durably recorded.
//
// The scan deliberately continues OverlapPages past the cursor barrier so
// transactions the upstream indexed late are not skipped; the duplicates
// this re-reads are absorbed by the store's idempotent insert.
func (f *Fetcher) FetchNew(ctx context.Context, cursor model.Cursor) ([]model.BurnEvent, model.Cursor, error) {
	if f.history == nil {
		return nil, cursor, fmt.Errorf("history source is nil")
	}
	if f.cfg.WatchAddress == "" {
		return nil, cursor, fmt.Errorf("watch address is required")
	}

	next := cursor
	collected := make(map[string]*model.BurnEvent)
	before := ""
	barrierSeen := false
	overlapLeft := f.cfg.OverlapPages

	for page := 0; page < f.cfg.MaxPages; page++ {
		select {
		case <-ctx.Done():
			return nil, cursor, ctx.Err()
		default:
		}

		txs, err := f.pageWithRetry(ctx, before)
		if err != nil {
			return nil, cursor, fmt.Errorf("fetch history page: %w", err)
		}
		if len(txs) == 0 {
			break
		}

		if page == 0 && txs[0].Signature != "" {
			next = model.Cursor{LastSignature: txs[0].Signature, LastTimestamp: txs[0].Time()}
		}

		for _, tx := range txs {
			if tx.Signature == "" {
				continue
			}
			if f.atBarrier(cursor, tx) {
				barrierSeen = true
			}
			f.collect(collected, tx)
		}

		if barrierSeen {
			if overlapLeft <= 0 {
				break
			}
			overlapLeft--
		}

		before = txs[len(txs)-1].Signature
		if len(txs) < f.cfg.PageLimit {
			break
		}
	}

	if len(collected) == 0 {
		return nil, next, nil
	}

	events := make([]model.BurnEvent, 0, len(collected))
	for _, ev := range collected {
		events = append(events, *ev)
	}
	sortEvents(events)
	f.attachPrices(ctx, events)

	return events, next, nil
}

// FromBatch extracts burn events from pre-formed transactions delivered by
// push. No paging position is involved, so the cursor is not touched.
func (f *Fetcher) FromBatch(ctx context.Context, txs []Transaction) []model.BurnEvent {
	collected := make(map[string]*model.BurnEvent)
	for _, tx := range txs {
		if tx.Signature == "" {
			continue
		}
		f.collect(collected, tx)
	}
	if len(collected) == 0 {
		return nil
	}

	events := make([]model.BurnEvent, 0, len(collected))
	for _, ev := range collected {
		events = append(events, *ev)
	}
	sortEvents(events)
	f.attachPrices(ctx, events)
	return events
}

// collect sums the transaction's qualifying transfers into one candidate
// event keyed by signature.
func (f *Fetcher) collect(dst map[string]*model.BurnEvent, tx Transaction) {
	amount := decimal.Zero
	for _, transfer := range tx.Transfers() {
		if !transfer.Qualifies(f.cfg.WatchAddress, f.cfg.Mint) {
			continue
		}
		amount = amount.Add(ExtractAmount(transfer))
	}
	if amount.Sign() <= 0 {
		return
	}

	if existing, ok := dst[tx.Signature]; ok {
		existing.Amount = existing.Amount.Add(amount)
		return
	}
	dst[tx.Signature] = &model.BurnEvent{
		Signature: tx.Signature,
		Timestamp: tx.Time(),
		Amount:    amount,
	}
}

func (f *Fetcher) atBarrier(cursor model.Cursor, tx Transaction) bool {
	if cursor.LastSignature != "" {
		return tx.Signature == cursor.LastSignature
	}
	return cursor.LastTimestamp > 0 && tx.Time() <= cursor.LastTimestamp
}

func (f *Fetcher) pageWithRetry(ctx context.Context, before string) ([]Transaction, error) {
	var txs []Transaction
	err := withRetry(ctx, f.cfg.MaxRetries, f.cfg.RetryBackoff, f.cfg.MaxBackoff, func(ctx context.Context) error {
		var err error
		txs, err = f.history.Transactions(ctx, f.cfg.WatchAddress, f.cfg.PageLimit, before)
		if err != nil {
			f.logger.Warn("history page fetch failed", zap.Error(err), zap.String("before", before))
		}
		return err
	})
	return txs, err
}

// attachPrices enriches events with a USD price. Fresh events share one
// spot lookup; older ones (replays after downtime) get a time-windowed
// lookup at their own timestamp. Failed lookups leave the price nil and
// the alert simply omits the USD figure.
func (f *Fetcher) attachPrices(ctx context.Context, events []model.BurnEvent) {
	if f.prices == nil {
		return
	}

	var spot decimal.Decimal
	var spotOK, spotTried bool
	now := time.Now()

	for i := range events {
		if now.Sub(events[i].Time()) > time.Hour {
			if p, ok := f.prices.At(ctx, events[i].Time()); ok {
				price := p
				events[i].PriceUSD = &price
			}
			continue
		}
		if !spotTried {
			spotTried = true
			spot, spotOK = f.prices.Spot(ctx)
		}
		if spotOK {
			price := spot
			events[i].PriceUSD = &price
		}
	}
}

func sortEvents(events []model.BurnEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		return events[i].Signature < events[j].Signature
	})
}
