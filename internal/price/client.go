package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Client reads a CoinGecko-style price API. Price is an enrichment, not a
// correctness-critical field: every failure path reports ok=false instead
// of returning an error.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokenID    string
	window     time.Duration
	logger     *zap.Logger
}

// NewClient creates a price client for one token id.
func NewClient(baseURL, tokenID string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokenID:    tokenID,
		window:     30 * time.Minute,
		logger:     logger,
	}
}

// Spot returns the current USD price.
func (c *Client) Spot(ctx context.Context) (decimal.Decimal, bool) {
	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, url.QueryEscape(c.tokenID))

	var payload map[string]map[string]json.Number
	if !c.getJSON(ctx, endpoint, &payload) {
		return decimal.Zero, false
	}

	quote, ok := payload[c.tokenID]
	if !ok {
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(quote["usd"].String())
	if err != nil || value.Sign() <= 0 {
		return decimal.Zero, false
	}
	return value, true
}

// At returns the sample closest to at within the client's window, using
// the time-ranged market chart endpoint.
func (c *Client) At(ctx context.Context, at time.Time) (decimal.Decimal, bool) {
	from := at.Add(-c.window).Unix()
	to := at.Add(c.window).Unix()
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart/range?vs_currency=usd&from=%d&to=%d",
		c.baseURL, url.PathEscape(c.tokenID), from, to)

	var payload struct {
		Prices [][2]json.Number `json:"prices"`
	}
	if !c.getJSON(ctx, endpoint, &payload) {
		return decimal.Zero, false
	}
	if len(payload.Prices) == 0 {
		return decimal.Zero, false
	}

	target := at.UnixMilli()
	best := decimal.Zero
	var bestDistance int64 = -1
	for _, sample := range payload.Prices {
		ms, err := sample[0].Int64()
		if err != nil {
			continue
		}
		value, err := decimal.NewFromString(sample[1].String())
		if err != nil || value.Sign() <= 0 {
			continue
		}
		distance := target - ms
		if distance < 0 {
			distance = -distance
		}
		if bestDistance < 0 || distance < bestDistance {
			best = value
			bestDistance = distance
		}
	}
	if bestDistance < 0 {
		return decimal.Zero, false
	}
	return best, true
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("price request failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("price request rejected", zap.Int("status", resp.StatusCode))
		return false
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		c.logger.Debug("price payload decode failed", zap.Error(err))
		return false
	}
	return true
}
