package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Fernandogf021207/Scr4per-sub000/pkg/errors"
)

func immediateConfig(maxAttempts int) Config {
	return Config{
		MaxAttempts: maxAttempts,
		Backoff:     NewConstantBackoff(0),
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), immediateConfig(3), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), immediateConfig(3), func() error {
		calls++
		if calls < 3 {
			return apperrors.New(apperrors.ErrorTypeNetwork, "connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), immediateConfig(5), func() error {
		calls++
		return apperrors.New(apperrors.ErrorTypeAuth, "session expired")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, apperrors.ErrorTypeAuth, apperrors.TypeOf(err))
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), immediateConfig(3), func() error {
		calls++
		return apperrors.New(apperrors.ErrorTypeRateLimit, "slow down")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
}

func TestDoWithResultReturnsValue(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), immediateConfig(3), func() (string, error) {
		calls++
		if calls < 2 {
			return "", apperrors.New(apperrors.ErrorTypeNetwork, "timeout")
		}
		return "payload", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "payload", got)
	assert.Equal(t, 2, calls)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := Config{
		MaxAttempts: 5,
		Backoff:     NewConstantBackoff(time.Second),
	}

	calls := 0
	errCh := make(chan error, 1)
	go func() {
		errCh <- Do(ctx, cfg, func() error {
			calls++
			return apperrors.New(apperrors.ErrorTypeNetwork, "unreachable")
		})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
	assert.Equal(t, 1, calls)
}

func TestOnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := Config{
		MaxAttempts: 3,
		Backoff:     NewConstantBackoff(0),
		OnRetry: func(attempt int, err error) {
			attempts = append(attempts, attempt)
		},
	}

	_ = Do(context.Background(), cfg, func() error {
		return apperrors.New(apperrors.ErrorTypeNetwork, "flaky")
	})

	assert.Equal(t, []int{2, 3}, attempts)
}

func TestCustomRetryIf(t *testing.T) {
	sentinel := errors.New("do not retry")
	calls := 0
	cfg := Config{
		MaxAttempts: 4,
		Backoff:     NewConstantBackoff(0),
		RetryIf: func(err error) bool {
			return !errors.Is(err, sentinel)
		},
	}

	err := Do(context.Background(), cfg, func() error {
		calls++
		return sentinel
	})

	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestExponentialBackoffCapsAtMax(t *testing.T) {
	b := &ExponentialBackoff{
		InitialDelay: time.Second,
		MaxDelay:     4 * time.Second,
		Multiplier:   2.0,
	}

	assert.Equal(t, time.Second, b.NextDelay(1))
	assert.Equal(t, 2*time.Second, b.NextDelay(2))
	assert.Equal(t, 4*time.Second, b.NextDelay(3))
	assert.Equal(t, 4*time.Second, b.NextDelay(10))
}

func TestLinearBackoffIncrements(t *testing.T) {
	b := NewLinearBackoff(time.Second, time.Second, 3*time.Second)

	assert.Equal(t, time.Second, b.NextDelay(1))
	assert.Equal(t, 2*time.Second, b.NextDelay(2))
	assert.Equal(t, 3*time.Second, b.NextDelay(3))
	assert.Equal(t, 3*time.Second, b.NextDelay(4))
}

func TestErrorTypeBackoffSelectsStrategy(t *testing.T) {
	b := NewErrorTypeBackoff()

	b.SetLastError(apperrors.New(apperrors.ErrorTypeRateLimit, "429"))
	rateLimitDelay := b.NextDelay(1)

	b.SetLastError(apperrors.New(apperrors.ErrorTypeNetwork, "reset"))
	networkDelay := b.NextDelay(1)

	assert.Greater(t, rateLimitDelay, networkDelay)
}

func TestWaitReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Wait(ctx, 5*time.Second)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
