// Package retry provides retry logic with configurable backoff for
// transient platform and network failures.
package retry

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Fernandogf021207/Scr4per-sub000/pkg/errors"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/logger"
)

// Config controls retry behavior for a single operation.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Backoff determines the delay between attempts.
	Backoff BackoffStrategy

	// RetryIf decides whether an error is worth retrying. Defaults to
	// retrying typed errors whose class is retryable.
	RetryIf func(error) bool

	// OnRetry is called before each retry with the attempt number and
	// the error that triggered it.
	OnRetry func(attempt int, err error)

	Logger logger.Logger
}

// DefaultConfig returns a config suitable for platform fetches.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		Backoff:     NewErrorTypeBackoff(),
		RetryIf:     defaultRetryIf,
	}
}

func defaultRetryIf(err error) bool {
	return apperrors.IsRetryable(apperrors.TypeOf(err))
}

// Do runs fn until it succeeds, the attempts are exhausted, or the
// context is cancelled.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult runs fn until it succeeds and returns its result.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Backoff == nil {
		cfg.Backoff = NewExponentialBackoff(time.Second, 30*time.Second)
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = defaultRetryIf
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if eb, ok := cfg.Backoff.(*ErrorTypeBackoff); ok {
				eb.SetLastError(lastErr)
			}
			delay := cfg.Backoff.NextDelay(attempt - 1)

			if cfg.Logger != nil {
				cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
					"attempt": attempt,
					"delay":   delay.String(),
					"error":   lastErr.Error(),
				})
			}
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, lastErr)
			}

			if err := Wait(ctx, delay); err != nil {
				return zero, err
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !cfg.RetryIf(err) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
	}

	return zero, fmt.Errorf("all %d attempts failed: %w", cfg.MaxAttempts, lastErr)
}

// Retrier bundles a reusable retry config.
type Retrier struct {
	cfg Config
}

// NewRetrier returns a Retrier with the given config, applying defaults
// for unset fields.
func NewRetrier(cfg Config) *Retrier {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff == nil {
		cfg.Backoff = NewErrorTypeBackoff()
	}
	return &Retrier{cfg: cfg}
}

func (r *Retrier) Do(ctx context.Context, fn func() error) error {
	return Do(ctx, r.cfg, fn)
}
