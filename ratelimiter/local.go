package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// refillInterval is the window both buckets replenish over.
const refillInterval = time.Minute

// ErrExceedsCapacity is returned when a request needs more tokens than a full
// bucket holds, so no amount of waiting can satisfy it.
var ErrExceedsCapacity = errors.New("request exceeds rate limit capacity")

// RateLimiter limits generation calls by estimated prompt tokens and by request
// count, each per minute. A nil bucket means that dimension is unlimited.
type RateLimiter struct {
	TokensBucket   *TokenBucket
	RequestsBucket *TokenBucket

	mu sync.Mutex
}

// Ensure RateLimiter implements Limiter.
var _ Limiter = (*RateLimiter)(nil)

// RateLimits mirrors the imageloop.RateLimits type to avoid circular imports.
type RateLimits struct {
	TokensPerMinute   int
	RequestsPerMinute int
	TokensPerDay      int
}

// New creates a limiter allowing tokensPerMinute estimated tokens and
// requestsPerMinute calls. A limit of zero or less disables that dimension.
func New(tokensPerMinute, requestsPerMinute int) *RateLimiter {
	return NewFromLimits(RateLimits{
		TokensPerMinute:   tokensPerMinute,
		RequestsPerMinute: requestsPerMinute,
	})
}

// NewFromLimits creates a RateLimiter from a RateLimits configuration.
// TokensPerDay is not enforced.
func NewFromLimits(limits RateLimits) *RateLimiter {
	rl := &RateLimiter{}
	if limits.TokensPerMinute > 0 {
		rl.TokensBucket = NewTokenBucket(limits.TokensPerMinute, limits.TokensPerMinute, refillInterval)
	}
	if limits.RequestsPerMinute > 0 {
		rl.RequestsBucket = NewTokenBucket(limits.RequestsPerMinute, limits.RequestsPerMinute, refillInterval)
	}
	return rl
}

// HasCapacity checks if tokens are available WITHOUT consuming them.
func (rl *RateLimiter) HasCapacity(numTokens int) bool {
	return rl.TokensBucket.HasCapacity(numTokens) && rl.RequestsBucket.HasCapacity(1)
}

// TryConsume takes numTokens and one request if both are available, and
// nothing otherwise.
func (rl *RateLimiter) TryConsume(numTokens int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.HasCapacity(numTokens) {
		return false
	}
	return rl.TokensBucket.Consume(numTokens) && rl.RequestsBucket.Consume(1)
}

// Wait returns how long a caller needs to wait before numTokens can be consumed.
func (rl *RateLimiter) Wait(tokens int) time.Duration {
	return rl.TimeUntilAvailable(tokens)
}

// TimeUntilAvailable returns how long until the specified tokens would be available.
// This does not modify state - use for informational purposes.
func (rl *RateLimiter) TimeUntilAvailable(tokens int) time.Duration {
	return max(rl.TokensBucket.TimeUntilAvailable(tokens), rl.RequestsBucket.TimeUntilAvailable(1))
}

// WaitAndConsume waits until tokens are available (up to maxWait), then consumes them.
// If maxWait is 0, there is no limit on how long to wait.
// Returns an error if the context is cancelled, maxWait is exceeded, or tokens
// is more than the limiter allows per minute.
func (rl *RateLimiter) WaitAndConsume(ctx context.Context, tokens int, maxWait time.Duration) error {
	if limit := rl.TokensBucket.Capacity(); limit >= 0 && tokens > limit {
		return fmt.Errorf("%w: %d tokens (limit %d per minute)", ErrExceedsCapacity, tokens, limit)
	}

	var deadline time.Time
	if maxWait > 0 {
		deadline = time.Now().Add(maxWait)
	}

	for {
		if rl.TryConsume(tokens) {
			return nil
		}

		waitDuration := max(rl.TimeUntilAvailable(tokens), time.Millisecond)
		if !deadline.IsZero() && time.Now().Add(waitDuration).After(deadline) {
			return fmt.Errorf("rate limit wait time %v exceeds max wait %v", waitDuration, maxWait)
		}

		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TokenBucket implements a token bucket that refills linearly over its interval.
// A nil *TokenBucket never runs out.
type TokenBucket struct {
	mu             sync.Mutex
	capacity       int
	remaining      int
	refillInterval time.Duration
	lastRefill     time.Time

	now func() time.Time
}

// NewTokenBucket creates a new token bucket.
func NewTokenBucket(capacity int, initialTokens int, refillInterval time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:       capacity,
		remaining:      initialTokens,
		refillInterval: refillInterval,
		lastRefill:     time.Now(),
		now:            time.Now,
	}
}

// Capacity returns the bucket size, or -1 for a nil (unlimited) bucket.
func (tb *TokenBucket) Capacity() int {
	if tb == nil {
		return -1
	}
	return tb.capacity
}

// HasCapacity checks if tokens are available WITHOUT consuming them.
func (tb *TokenBucket) HasCapacity(tokens int) bool {
	if tb == nil {
		return true
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tokens <= tb.available(tb.now())
}

// TryConsume atomically checks and consumes tokens. Same as Consume.
func (tb *TokenBucket) TryConsume(tokens int) bool {
	return tb.Consume(tokens)
}

// Consume takes tokens from the bucket if enough are available.
func (tb *TokenBucket) Consume(tokens int) bool {
	if tb == nil {
		return true
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	tb.remaining = tb.available(now)
	tb.lastRefill = now

	if tokens <= tb.remaining {
		tb.remaining -= tokens
		return true
	}
	return false
}

// TimeUntilAvailable returns how long until tokens would be available (read-only).
func (tb *TokenBucket) TimeUntilAvailable(tokens int) time.Duration {
	if tb == nil {
		return 0
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()

	available := tb.available(tb.now())
	if tokens <= available {
		return 0
	}

	tokensNeeded := tokens - available
	tokenRefillRate := float64(tb.capacity) / float64(tb.refillInterval)
	waitDuration := time.Duration(float64(tokensNeeded) / tokenRefillRate)

	// Add a small buffer (10% extra time)
	return waitDuration + (waitDuration / 10)
}

// available returns the tokens in the bucket at now, including the partial
// refill since lastRefill. Callers hold tb.mu.
func (tb *TokenBucket) available(now time.Time) int {
	elapsed := now.Sub(tb.lastRefill)
	switch {
	case elapsed >= tb.refillInterval:
		return tb.capacity
	case elapsed > 0:
		replenished := int(float64(tb.capacity) * (float64(elapsed) / float64(tb.refillInterval)))
		return min(tb.capacity, tb.remaining+replenished)
	default:
		return tb.remaining
	}
}
