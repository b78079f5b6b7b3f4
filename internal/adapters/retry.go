package adapters

import (
	"context"
	"time"
)

// retryAttempts and the backoff bounds implement's "Transport-level
// retries... three attempts, 2–30 s", delegated once here and used by
// every adapter's outbound call so the sync core sees only the final
// outcome.
const retryAttempts = 3

// retryMinDelay/retryMaxDelay are vars rather than consts so tests can
// shrink them instead of waiting out real backoff delays.
var (
	retryMinDelay = 2 * time.Second
	retryMaxDelay = 30 * time.Second
)

// WithRetry runs fn up to retryAttempts times with bounded exponential
// backoff between attempts, returning the first success or the last
// error. It does not retry a context cancellation.
func WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := retryMinDelay

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt == retryAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}

	return lastErr
}
