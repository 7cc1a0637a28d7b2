package price

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSpot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"render-token":{"usd":7.42}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "render-token", nil)
	got, ok := client.Spot(context.Background())
	if !ok {
		t.Fatalf("expected a price")
	}
	if !got.Equal(decimal.RequireFromString("7.42")) {
		t.Fatalf("price mismatch: got %s, want 7.42", got)
	}
}

func TestSpotFailuresReturnNoPrice(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"rate limited", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}},
		{"empty payload", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{}`)
		}},
		{"zero price", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"render-token":{"usd":0}}`)
		}},
		{"garbage", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `nope`)
		}},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(tc.handler)
		client := NewClient(srv.URL, "render-token", nil)
		if _, ok := client.Spot(context.Background()); ok {
			t.Fatalf("%s: expected no price", tc.name)
		}
		srv.Close()
	}
}

func TestAtPicksClosestSample(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/render-token/market_chart/range" {
			http.NotFound(w, r)
			return
		}
		// Samples at -20min, -1min, +10min relative to the target.
		fmt.Fprintf(w, `{"prices":[[%d,6.00],[%d,7.00],[%d,8.00]]}`,
			at.Add(-20*time.Minute).UnixMilli(),
			at.Add(-time.Minute).UnixMilli(),
			at.Add(10*time.Minute).UnixMilli(),
		)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "render-token", nil)
	got, ok := client.At(context.Background(), at)
	if !ok {
		t.Fatalf("expected a price")
	}
	if !got.Equal(decimal.RequireFromString("7.00")) {
		t.Fatalf("price mismatch: got %s, want 7.00", got)
	}
}

func TestAtEmptySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"prices":[]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "render-token", nil)
	if _, ok := client.At(context.Background(), time.Now()); ok {
		t.Fatalf("expected no price for empty series")
	}
}
