package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrWaitExceeded is returned when the required wait is longer than maxWait.
var ErrWaitExceeded = errors.New("rate limit wait exceeds max wait")

// RateLimiter limits images and requests per minute with two token buckets.
type RateLimiter struct {
	images   *rate.Limiter
	requests *rate.Limiter
}

// Ensure RateLimiter implements Limiter.
var _ Limiter = (*RateLimiter)(nil)

// New creates a limiter allowing imagesPerMinute images and requestsPerMinute
// calls. A value of zero or less disables that bucket. Both buckets start full.
func New(imagesPerMinute, requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		images:   perMinute(imagesPerMinute),
		requests: perMinute(requestsPerMinute),
	}
}

// RateLimits mirrors the imagegen.RateLimits type to avoid circular imports.
type RateLimits struct {
	RequestsPerMinute int
	ImagesPerMinute   int
}

// NewFromLimits creates a RateLimiter from a RateLimits configuration.
func NewFromLimits(limits RateLimits) *RateLimiter {
	return New(limits.ImagesPerMinute, limits.RequestsPerMinute)
}

func perMinute(n int) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(n)/60), n)
}

// TryConsume takes units images and one request, or nothing.
func (rl *RateLimiter) TryConsume(units int) bool {
	now := time.Now()

	img := rl.images.ReserveN(now, units)
	if !img.OK() || img.DelayFrom(now) > 0 {
		img.CancelAt(now)
		return false
	}

	req := rl.requests.ReserveN(now, 1)
	if !req.OK() || req.DelayFrom(now) > 0 {
		req.CancelAt(now)
		img.CancelAt(now)
		return false
	}
	return true
}

// TimeUntilAvailable returns how long until units images and one request fit.
// It returns rate.InfDuration when units exceed the bucket size.
func (rl *RateLimiter) TimeUntilAvailable(units int) time.Duration {
	return max(delay(rl.images, units), delay(rl.requests, 1))
}

func delay(l *rate.Limiter, n int) time.Duration {
	now := time.Now()
	r := l.ReserveN(now, n)
	if !r.OK() {
		return rate.InfDuration
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	return d
}

// WaitAndConsume waits until units are available (up to maxWait), then consumes them.
// If maxWait is 0, there is no limit on how long to wait.
func (rl *RateLimiter) WaitAndConsume(ctx context.Context, units int, maxWait time.Duration) error {
	if maxWait > 0 {
		if wait := rl.TimeUntilAvailable(units); wait > maxWait {
			return fmt.Errorf("%w: need %v, max %v", ErrWaitExceeded, wait, maxWait)
		}
	}

	if err := rl.images.WaitN(ctx, units); err != nil {
		return fmt.Errorf("waiting for image capacity: %w", err)
	}
	if err := rl.requests.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for request capacity: %w", err)
	}
	return nil
}
