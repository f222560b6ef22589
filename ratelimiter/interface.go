package ratelimiter

import (
	"context"
	"time"
)

// Limiter guards one model's token and request budget.
// Implementations can be local (in-memory) or shared between processes.
type Limiter interface {
	// HasCapacity reports whether tokens could be consumed now, without consuming them.
	HasCapacity(tokens int) bool

	// TryConsume atomically checks capacity and consumes tokens plus one request.
	// Returns false, consuming nothing, if either budget is short.
	TryConsume(tokens int) bool

	// TimeUntilAvailable returns how long until tokens would be available (read-only).
	TimeUntilAvailable(tokens int) time.Duration

	// WaitAndConsume waits until tokens are available, then consumes them.
	// Returns an error if ctx ends or maxWait (when non-zero) is exceeded.
	WaitAndConsume(ctx context.Context, tokens int, maxWait time.Duration) error
}
