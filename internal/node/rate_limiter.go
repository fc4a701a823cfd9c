// rate_limiter.go - Token bucket limiting outbound node RPC traffic.

package node

import (
	"context"
	"sync"
	"time"
)

// requestLimiter is a token bucket: tokens refill at refillRate per
// refillPeriod up to maxTokens, and each RPC consumes one.
type requestLimiter struct {
	mu           sync.Mutex
	tokens       int
	maxTokens    int
	refillRate   int
	lastRefill   time.Time
	refillPeriod time.Duration
}

func newRequestLimiter(maxTokens, refillRate int, refillPeriod time.Duration) *requestLimiter {
	return &requestLimiter{
		tokens:       maxTokens,
		maxTokens:    maxTokens,
		refillRate:   refillRate,
		lastRefill:   time.Now(),
		refillPeriod: refillPeriod,
	}
}

func (rl *requestLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	refillCount := int(now.Sub(rl.lastRefill) / rl.refillPeriod)
	if refillCount > 0 {
		rl.tokens += refillCount * rl.refillRate
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = now
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// wait blocks until a token is available or the context is cancelled.
func (rl *requestLimiter) wait(ctx context.Context) error {
	for {
		if rl.allow() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rl.refillPeriod / 4):
		}
	}
}
