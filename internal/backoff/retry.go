package backoff

import (
	"context"

	"github.com/haasonsaas/toolhub/pkg/models"
)

// Options configures a retry loop.
type Options struct {
	// MaxRetries is the number of retries after the first attempt, so a
	// call runs at most MaxRetries+1 times. Zero means no retries.
	MaxRetries int

	// Policy shapes the delay between attempts; the zero value means
	// DefaultPolicy.
	Policy Policy

	// OnRetry fires before each retry with the error that caused it and
	// the attempt number (1-indexed) that failed.
	OnRetry func(err error, attempt int)
}

// WithRetry executes fn with exponential backoff. Errors whose classified
// kind is non-retryable are returned immediately after the first attempt;
// retryable errors run up to MaxRetries more times. Context cancellation
// aborts the loop between attempts and during sleeps.
func WithRetry[T any](ctx context.Context, opts Options, fn func(attempt int) (T, error)) (T, error) {
	var zero T
	policy := opts.Policy
	if policy.BaseDelay == 0 && policy.MaxDelay == 0 {
		policy = DefaultPolicy()
	}

	attempts := opts.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		value, err := fn(attempt)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if !models.ClassifyError(err).Retryable() {
			return zero, err
		}
		if attempt == attempts {
			break
		}
		if opts.OnRetry != nil {
			opts.OnRetry(err, attempt)
		}
		if err := SleepWithContext(ctx, policy.Delay(attempt)); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}
