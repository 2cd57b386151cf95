package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raulk/clock"

	"github.com/vietddude/steemstream/internal/indexing/metrics"
)

// ErrRetryExhausted is returned once a strategy gives up on a transient error.
var ErrRetryExhausted = errors.New("retry budget exhausted")

// Retry calls fn until it succeeds, returns a non-transient error, or the
// strategy gives up. Waits use clk so tests can drive them with a mock clock.
func Retry(ctx context.Context, clk clock.Clock, strategy RetryStrategy, scope string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if category := strategy.Classify(err); category != CategoryTransient {
			return err
		}
		if !strategy.ShouldRetry(err, attempt) {
			return fmt.Errorf("%w: %s after %d attempts: %w", ErrRetryExhausted, scope, attempt+1, err)
		}

		delay := strategy.GetDelay(attempt)
		metrics.RetriesTotal.WithLabelValues(scope).Inc()
		slog.Warn("Retrying after transient error",
			"scope", scope,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		timer := clk.Timer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
