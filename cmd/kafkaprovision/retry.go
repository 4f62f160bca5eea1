package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/kafkaprovision/kafka"
)

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 4 * time.Second
)

// withRetry executes fn up to retries+1 times with exponential backoff.
// Only failures kafka.IsRetryable accepts are retried. Context cancellation
// stops retries.
func withRetry(ctx context.Context, desc string, retries int, fn func() error) error {
	backoff := initialBackoff

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !kafka.IsRetryable(lastErr) {
			return lastErr
		}

		if attempt == retries {
			break
		}

		slog.Warn("retrying after transient error",
			"operation", desc,
			"attempt", attempt+1,
			"max_attempts", retries+1,
			"backoff", backoff,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w (last error: %w)", desc, ctx.Err(), lastErr)
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	if retries == 0 {
		return lastErr
	}
	return fmt.Errorf("%s: %d attempts exhausted: %w", desc, retries+1, lastErr)
}
