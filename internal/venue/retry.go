package venue

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig represents retry configuration.
type RetryConfig struct {
	MaxAttempts int
	BaseWait    time.Duration
}

// DefaultRetryConfig returns the default retry policy: three attempts, with
// a wait of attempt × BaseWait between them (1s, then 2s).
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		BaseWait:    time.Second,
	}
}

// RetryableFunc represents a function that can be retried.
type RetryableFunc func(ctx context.Context) error

// WithRetry wraps a function with the retry policy. The final attempt's
// error is returned wrapped ("max retries exceeded: %w"), so errors.Is and
// errors.As still see it; non-retryable errors short-circuit unwrapped.
func WithRetry(ctx context.Context, fn RetryableFunc, config *RetryConfig) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var err error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt == config.MaxAttempts {
			return fmt.Errorf("max retries exceeded: %w", err)
		}

		wait := time.Duration(attempt) * config.BaseWait
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

// RetryWithResult wraps a function returning a result with the retry policy.
func RetryWithResult[T any](ctx context.Context, fn func(context.Context) (T, error), config *RetryConfig) (T, error) {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if !IsRetryable(err) {
			return result, err
		}
		if attempt == config.MaxAttempts {
			return result, fmt.Errorf("max retries exceeded: %w", err)
		}

		wait := time.Duration(attempt) * config.BaseWait
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(wait):
		}
	}
	return result, err
}
