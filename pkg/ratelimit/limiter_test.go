package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllowsUpToCapacity(t *testing.T) {
	tb := NewTokenBucket(3, time.Minute)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
}

func TestTokenBucketRefillsAfterPeriod(t *testing.T) {
	tb := NewTokenBucket(1, 50*time.Millisecond)

	require.True(t, tb.Allow())
	require.False(t, tb.Allow())

	time.Sleep(60 * time.Millisecond)
	assert.True(t, tb.Allow())
}

func TestTokenBucketReset(t *testing.T) {
	tb := NewTokenBucket(2, time.Minute)

	tb.Allow()
	tb.Allow()
	require.False(t, tb.Allow())

	tb.Reset()
	assert.True(t, tb.Allow())
}

func TestTokenBucketWaitHonorsContext(t *testing.T) {
	tb := NewTokenBucket(1, time.Minute)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPerPlatformIsolatesPlatforms(t *testing.T) {
	reg := NewPerPlatform(func() Limiter {
		return NewTokenBucket(1, time.Minute)
	})

	require.True(t, reg.For("instagram").Allow())
	require.False(t, reg.For("instagram").Allow())

	// Exhausting one platform leaves the other untouched.
	assert.True(t, reg.For("facebook").Allow())
}

func TestPerPlatformReturnsSameLimiter(t *testing.T) {
	reg := NewPerPlatform(func() Limiter {
		return NewTokenBucket(5, time.Minute)
	})

	assert.Same(t, reg.For("x"), reg.For("x"))
}

func TestPerPlatformResetRestoresAll(t *testing.T) {
	reg := NewPerPlatform(func() Limiter {
		return NewTokenBucket(1, time.Minute)
	})

	reg.For("instagram").Allow()
	reg.For("facebook").Allow()

	reg.Reset()

	assert.True(t, reg.For("instagram").Allow())
	assert.True(t, reg.For("facebook").Allow())
}
