package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenLimiter hands out a fixed number of tokens per refill period.
type TokenLimiter struct {
	sync.Mutex
	capacity     int
	remaining    int
	refillPeriod time.Duration
	lastRefill   time.Time
}

func NewTokenLimiter(tokensPerMinute int) *TokenLimiter {
	return NewTokenLimiterWithPeriod(tokensPerMinute, time.Minute)
}

func NewTokenLimiterWithPeriod(capacity int, period time.Duration) *TokenLimiter {
	return &TokenLimiter{
		capacity:     capacity,
		remaining:    capacity,
		refillPeriod: period,
		lastRefill:   time.Now(),
	}
}

// Allow takes tokens if they are available right now.
func (l *TokenLimiter) Allow(tokens int) bool {
	l.refill()

	l.Lock()
	defer l.Unlock()
	if l.remaining < tokens {
		return false
	}
	l.remaining -= tokens
	return true
}

// Wait blocks until tokens are available or ctx ends.
func (l *TokenLimiter) Wait(ctx context.Context, tokens int) error {
	for {
		if l.Allow(tokens) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (l *TokenLimiter) refill() {
	l.Lock()
	defer l.Unlock()

	now := time.Now()
	if now.Sub(l.lastRefill) >= l.refillPeriod {
		l.remaining = l.capacity
		l.lastRefill = now
	}
}

func (l *TokenLimiter) GetRemaining() int {
	l.Lock()
	defer l.Unlock()
	return l.remaining
}
