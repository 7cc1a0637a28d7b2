package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrAuth indicates the history API rejected our credentials. Not
// retryable: this is a configuration problem, not a transient one.
var ErrAuth = errors.New("history api: authentication rejected")

// RetryAfterError is a transient upstream failure (rate limit or server
// error), optionally carrying the server's retry hint.
type RetryAfterError struct {
	Status int
	After  time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("history api: transient status %d", e.Status)
}

// Transaction is one entry from the address transaction-history API.
// Transfer lists can be nested differently depending on provider version.
type Transaction struct {
	Signature      string          `json:"signature"`
	Timestamp      int64           `json:"timestamp"`
	BlockTime      int64           `json:"blockTime,omitempty"`
	TokenTransfers []TokenTransfer `json:"tokenTransfers,omitempty"`
	Events         struct {
		TokenTransfers []TokenTransfer `json:"tokenTransfers,omitempty"`
	} `json:"events,omitempty"`
}

// Time returns the transaction's unix timestamp, whichever field carried it.
func (t Transaction) Time() int64 {
	if t.Timestamp != 0 {
		return t.Timestamp
	}
	return t.BlockTime
}

// Transfers returns the transaction's transfer records regardless of
// where the provider nested them.
func (t Transaction) Transfers() []TokenTransfer {
	if len(t.TokenTransfers) > 0 {
		return t.TokenTransfers
	}
	return t.Events.TokenTransfers
}

// Client reads an address transaction-history REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a history client for the given base URL and API key.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// Transactions fetches one page of history for addr, newest first.
// before, when non-empty, is the continuation token (a signature).
func (c *Client) Transactions(ctx context.Context, addr string, limit int, before string) ([]Transaction, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("history api key is required: %w", ErrAuth)
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if before != "" {
		query.Set("before", before)
	}
	endpoint := fmt.Sprintf("%s/v0/addresses/%s/transactions?%s", c.baseURL, url.PathEscape(addr), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, ErrAuth)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &RetryAfterError{Status: resp.StatusCode, After: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("history api: unexpected status %d", resp.StatusCode)
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()

	var txs []Transaction
	if err := decoder.Decode(&txs); err != nil {
		return nil, fmt.Errorf("decode history page: %w", err)
	}
	return txs, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(header, 64)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
