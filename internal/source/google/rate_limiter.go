package google

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces Sheets API calls to stay under the per-user read quota.
// Turns are handed out on a moving schedule, so a burst of callers queues up
// instead of racing the quota.
type RateLimiter struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func NewRateLimiter(requestsPerSecond int) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &RateLimiter{step: time.Second / time.Duration(requestsPerSecond)}
}

// Wait blocks until the caller's turn comes up or ctx is done, whichever is
// first. The reserved turn is not returned on cancellation; the schedule only
// moves forward.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	turn := r.next
	if now := time.Now(); turn.Before(now) {
		turn = now
	}
	r.next = turn.Add(r.step)
	r.mu.Unlock()

	delay := time.Until(turn)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
