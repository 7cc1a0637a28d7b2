package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"burnscope/internal/bot"
	"burnscope/internal/indexer"
	"burnscope/internal/model"
	"burnscope/internal/notify"
	"burnscope/internal/runner"
	"burnscope/internal/storage"
)

const testWatch = "Vault111111111111111111111111111111111111111"

type emptyHistory struct{}

func (emptyHistory) Transactions(ctx context.Context, addr string, limit int, before string) ([]indexer.Transaction, error) {
	return nil, nil
}

type nopSender struct{}

func (nopSender) Send(ctx context.Context, chatID int64, text string) error { return nil }

func newTestServer(t *testing.T) (*Server, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()

	fetcher := indexer.NewFetcher(indexer.FetchConfig{
		WatchAddress: testWatch,
		RetryBackoff: time.Millisecond,
	}, emptyHistory{}, nil, nil)
	dispatcher := notify.NewDispatcher(nopSender{}, "RNDR", "https://solscan.io", nil)
	run := runner.New(runner.Config{Topic: "burn"}, fetcher, store, store, store, dispatcher, zap.NewNop())
	commands := bot.NewHandler("burn", "RNDR", store, store, nil)

	srv := New(Config{Addr: ":0", CronSecret: "hunter2"}, run, commands, nopSender{}, zap.NewNop())
	return srv, store
}

func TestCronSecretGuard(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		target string
		want   int
	}{
		{"/cron/burn", http.StatusUnauthorized},
		{"/cron/burn?secret=wrong", http.StatusUnauthorized},
		{"/cron/burn?secret=hunter2", http.StatusOK},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.target, nil)
		rec := httptest.NewRecorder()
		srv.echo.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: got %d, want %d", tc.target, rec.Code, tc.want)
		}
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: got %d", rec.Code)
	}
}

func TestPushWebhookRecordsBatch(t *testing.T) {
	srv, store := newTestServer(t)

	body := `[{"signature":"push-1","timestamp":1700000000,` +
		`"tokenTransfers":[{"toTokenAccount":"` + testWatch + `","tokenAmount":"1.5"}]}]`
	req := httptest.NewRequest(http.MethodPost, "/webhook/transactions?secret=hunter2", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("push webhook: got %d: %s", rec.Code, rec.Body.String())
	}

	var result map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result["new_events"] != 1 {
		t.Fatalf("new_events mismatch: %v", result)
	}

	// The event landed in the store.
	inserted, err := store.RecordBurn(context.Background(),
		model.BurnEvent{Signature: "push-1", Timestamp: 1700000000, Amount: decimal.RequireFromString("1.5")})
	if err != nil || inserted {
		t.Fatalf("event missing from store: inserted=%v err=%v", inserted, err)
	}

	// Replaying the same batch records nothing new.
	req = httptest.NewRequest(http.MethodPost, "/webhook/transactions?secret=hunter2", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode replay response: %v", err)
	}
	if result["new_events"] != 0 {
		t.Fatalf("replayed batch must record nothing: %v", result)
	}
}

func TestTelegramWebhookSubscribes(t *testing.T) {
	srv, store := newTestServer(t)

	body := `{"update_id":1,"message":{"message_id":1,"text":"/subscribe","chat":{"id":42}}}`
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("telegram webhook: got %d", rec.Code)
	}
	subs, _ := store.Subscribers(context.Background(), "burn")
	if len(subs) != 1 || subs[0] != 42 {
		t.Fatalf("subscriber not stored: %v", subs)
	}
}
