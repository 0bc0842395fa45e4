package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Config bounds a retry loop. MaxRetries counts additional attempts after
// the first failure; BaseDelay is doubled on each subsequent retry with
// ±30% jitter.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
}

func DefaultConfig() Config {
	return Config{MaxRetries: 2, BaseDelay: 2 * time.Second}
}

// Do runs fn, retrying transient failures with exponential backoff.
// retryable decides whether an error is worth another attempt; a nil
// retryable retries everything except context cancellation.
func Do(ctx context.Context, cfg Config, retryable func(error) bool, fn func(ctx context.Context) error) error {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}

	err := fn(ctx)
	if err == nil {
		return nil
	}
	if !shouldRetry(err, retryable) {
		return err
	}

	lastErr := err
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(backoffDelay(cfg.BaseDelay, attempt)):
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !shouldRetry(err, retryable) {
			return err
		}
		lastErr = err
	}

	return lastErr
}

func shouldRetry(err error, retryable func(error) bool) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if retryable == nil {
		return true
	}
	return retryable(err)
}

// backoffDelay computes baseDelay * 2^(attempt-1) with ±30% jitter.
func backoffDelay(baseDelay time.Duration, attempt int) time.Duration {
	delay := baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}
