package ai

import (
	"context"
	"log/slog"
	"time"

	"github.com/arturoeanton/go-diff-auditor/internal/port"
)

// retryBase is the first backoff delay; each attempt doubles it (2s, 4s, ...).
const retryBase = 2 * time.Second

// retryWithBackoff runs fn up to maxRetries+1 times. Only transient provider
// errors are retried; permanent errors and context cancellation end the loop
// immediately.
func retryWithBackoff(ctx context.Context, maxRetries int, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !port.IsTransient(lastErr) {
			return lastErr
		}
		if attempt < maxRetries {
			backoff := retryBase << uint(attempt)
			slog.Warn("provider call failed, retrying",
				"attempt", attempt+1, "backoff", backoff, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
