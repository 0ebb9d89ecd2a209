package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/c360studio/webmill/fetch"
)

// RetryConfig holds retry configuration for fetch attempts.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts per URL.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the maximum backoff duration.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns sensible retry defaults for page fetches.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       1 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        15 * time.Second,
	}
}

// shouldRetry reports whether another attempt may help. Remote failures
// surface to the caller on first occurrence; only the local fail-fast page
// cap is waited out, since a slot frees as soon as another tab closes.
func shouldRetry(err error) bool {
	return errors.Is(err, fetch.ErrConcurrencyLimit)
}

// Retry runs fn up to cfg.MaxAttempts times with jittered exponential
// backoff, stopping early on success, a non-retryable error, or context
// cancellation.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	backoff := cfg.BackoffBase
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == attempts || !shouldRetry(err) {
			break
		}

		// Full jitter keeps concurrent retries from synchronizing.
		delay := time.Duration(rand.Int63n(int64(backoff) + 1))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
	return zero, lastErr
}
