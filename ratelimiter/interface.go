package ratelimiter

import (
	"context"
	"time"
)

// Limiter defines the interface for rate limiters.
// A unit is one generated image; every call also counts as one request.
type Limiter interface {
	// TryConsume atomically checks capacity and consumes units if available.
	// Returns true if units were consumed, false if insufficient capacity.
	TryConsume(units int) bool

	// TimeUntilAvailable returns how long until units would be available (read-only).
	TimeUntilAvailable(units int) time.Duration

	// WaitAndConsume waits until units are available, then consumes them.
	// Returns error if context is cancelled or maxWait is exceeded.
	WaitAndConsume(ctx context.Context, units int, maxWait time.Duration) error
}
