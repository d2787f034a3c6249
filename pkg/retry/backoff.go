package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	apperrors "github.com/Fernandogf021207/Scr4per-sub000/pkg/errors"
)

// BackoffStrategy determines the delay between retry attempts.
type BackoffStrategy interface {
	// NextDelay returns the delay before the given attempt (1-based).
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff doubles the delay on each attempt up to MaxDelay,
// optionally spreading retries with jitter.
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// NewExponentialBackoff returns an exponential strategy with jitter enabled.
func NewExponentialBackoff(initial, max time.Duration) *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialDelay: initial,
		MaxDelay:     max,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	multiplier := b.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	delay := float64(b.InitialDelay) * math.Pow(multiplier, float64(attempt-1))
	if delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}

	if b.Jitter {
		// Spread between 50% and 100% of the computed delay.
		delay = delay/2 + rand.Float64()*delay/2
	}

	return time.Duration(delay)
}

// LinearBackoff grows the delay by a fixed increment per attempt.
type LinearBackoff struct {
	InitialDelay time.Duration
	Increment    time.Duration
	MaxDelay     time.Duration
}

func NewLinearBackoff(initial, increment, max time.Duration) *LinearBackoff {
	return &LinearBackoff{
		InitialDelay: initial,
		Increment:    increment,
		MaxDelay:     max,
	}
}

func (b *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := b.InitialDelay + time.Duration(attempt-1)*b.Increment
	if delay > b.MaxDelay {
		delay = b.MaxDelay
	}
	return delay
}

// ConstantBackoff waits the same delay between every attempt.
type ConstantBackoff struct {
	Delay time.Duration
}

func NewConstantBackoff(delay time.Duration) *ConstantBackoff {
	return &ConstantBackoff{Delay: delay}
}

func (b *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return b.Delay
}

// ErrorTypeBackoff picks a strategy based on the classified error type,
// so rate limits back off harder than transient network blips.
type ErrorTypeBackoff struct {
	Default    BackoffStrategy
	Strategies map[apperrors.ErrorType]BackoffStrategy

	lastErrType apperrors.ErrorType
}

// NewErrorTypeBackoff returns a backoff tuned per error class for
// scraping traffic.
func NewErrorTypeBackoff() *ErrorTypeBackoff {
	return &ErrorTypeBackoff{
		Default: NewExponentialBackoff(time.Second, 30*time.Second),
		Strategies: map[apperrors.ErrorType]BackoffStrategy{
			apperrors.ErrorTypeRateLimit:   NewExponentialBackoff(30*time.Second, 5*time.Minute),
			apperrors.ErrorTypeNetwork:     NewExponentialBackoff(time.Second, 30*time.Second),
			apperrors.ErrorTypeServerError: NewLinearBackoff(5*time.Second, 5*time.Second, 30*time.Second),
		},
	}
}

// SetLastError records the most recent error so NextDelay can pick the
// matching strategy.
func (b *ErrorTypeBackoff) SetLastError(err error) {
	b.lastErrType = apperrors.TypeOf(err)
}

func (b *ErrorTypeBackoff) NextDelay(attempt int) time.Duration {
	if strategy, ok := b.Strategies[b.lastErrType]; ok {
		return strategy.NextDelay(attempt)
	}
	return b.Default.NextDelay(attempt)
}

// Wait sleeps for the given delay, returning early if the context is
// cancelled.
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
