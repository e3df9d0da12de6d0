package workers

import (
	"context"
	"fmt"
	"time"

	"stayscout/internal/logger"
)

// Retry executes fn with exponential back-off.
type Retry struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *logger.Logger
}

// Do runs fn until it succeeds, attempts are exhausted, or ctx is done.
func (r *Retry) Do(ctx context.Context, name string, fn func() error) error {
	var lastErr error
	delay := r.BaseDelay

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < r.MaxAttempts {
			r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
				name, attempt, r.MaxAttempts, lastErr, delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, r.MaxAttempts, lastErr)
}
