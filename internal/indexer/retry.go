package indexer

import (
	"context"
	"errors"
	"time"
)

// withRetry retries fn with exponential backoff for transient upstream
// failures. A server-provided Retry-After hint overrides the computed
// delay; both are capped at maxDelay. Non-retryable errors (auth,
// malformed payloads) return immediately.
func withRetry(ctx context.Context, maxRetries int, baseDelay, maxDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 10 * time.Second
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		var transient *RetryAfterError
		if !errors.As(err, &transient) || attempt >= maxRetries {
			return err
		}

		wait := delay
		if transient.After > 0 {
			wait = transient.After
		}
		if wait > maxDelay {
			wait = maxDelay
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
