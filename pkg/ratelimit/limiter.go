// Package ratelimit provides rate limiting for outbound platform
// traffic, with independent limiters per platform.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting.
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit.
	Allow() bool
	// Wait blocks until the rate limit allows another request or the
	// context is cancelled.
	Wait(ctx context.Context) error
	// Reset resets the rate limiter state.
	Reset()
}

// TokenBucket implements a token bucket rate limiter.
type TokenBucket struct {
	capacity     int
	tokens       int
	refillPeriod time.Duration
	lastRefill   time.Time
	mu           sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter.
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		lastRefill:   time.Now(),
	}
}

// Allow checks if a request can proceed.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

// Wait blocks until a token is available or the context is cancelled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for !tb.Allow() {
		tb.mu.Lock()
		timeUntilRefill := tb.refillPeriod - time.Since(tb.lastRefill)
		tb.mu.Unlock()

		if timeUntilRefill <= 0 {
			timeUntilRefill = 100 * time.Millisecond
		}

		timer := time.NewTimer(timeUntilRefill)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return nil
}

// Reset resets the token bucket to full capacity.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}

// refill adds tokens based on elapsed time.
func (tb *TokenBucket) refill() {
	now := time.Now()
	if now.Sub(tb.lastRefill) >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
	}
}

// PerPlatform holds one limiter per platform so a rate limit hit on one
// platform does not throttle the others.
type PerPlatform struct {
	newLimiter func() Limiter
	limiters   map[string]Limiter
	mu         sync.Mutex
}

// NewPerPlatform creates a registry that lazily builds a limiter per
// platform using the given constructor.
func NewPerPlatform(newLimiter func() Limiter) *PerPlatform {
	return &PerPlatform{
		newLimiter: newLimiter,
		limiters:   make(map[string]Limiter),
	}
}

// NewPerPlatformTokenBucket creates a per-platform registry of token
// buckets sized for the given requests-per-minute budget.
func NewPerPlatformTokenBucket(requestsPerMinute, burstSize int) *PerPlatform {
	if burstSize <= 0 {
		burstSize = requestsPerMinute
	}
	refill := time.Minute / time.Duration(max(requestsPerMinute/max(burstSize, 1), 1))
	return NewPerPlatform(func() Limiter {
		return NewTokenBucket(burstSize, refill)
	})
}

// For returns the limiter for the given platform, creating it on first
// use.
func (p *PerPlatform) For(platform string) Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[platform]
	if !ok {
		l = p.newLimiter()
		p.limiters[platform] = l
	}
	return l
}

// Wait blocks until the platform's limiter admits a request.
func (p *PerPlatform) Wait(ctx context.Context, platform string) error {
	return p.For(platform).Wait(ctx)
}

// Reset resets every platform limiter.
func (p *PerPlatform) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, l := range p.limiters {
		l.Reset()
	}
}
