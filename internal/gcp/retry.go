package gcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Backoff controls Retry. The delay doubles after every failed attempt.
type Backoff struct {
	Attempts int
	Initial  time.Duration
}

// UploadBackoff is used for every object upload.
var UploadBackoff = Backoff{Attempts: 4, Initial: time.Second}

// Retry runs op until it succeeds, the attempts run out, or ctx ends.
func Retry(ctx context.Context, b Backoff, name string, op func(context.Context) error) error {
	delay := b.Initial
	var lastErr error

	for i := 0; i < b.Attempts; i++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == b.Attempts-1 {
			break
		}
		slog.Warn(
			"Operation failed, will retry.",
			"operation", name,
			"attempt", i+1,
			"maxRetries", b.Attempts,
			"backoff", delay.String(),
			"error", err,
		)

		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "operation", name, "error", ctx.Err())
			return ctx.Err()
		}
	}
	slog.Error("Operation failed after all retries.", "operation", name, "error", lastErr)
	return fmt.Errorf("%s failed after all retries: %w", name, lastErr)
}
