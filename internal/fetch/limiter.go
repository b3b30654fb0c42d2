// Package fetch provides rate-limited HTTP fetching with timeout and
// exponential backoff retry, shared by all external data clients.
package fetch

import (
	"context"
	"sync"
	"time"
)

// SlidingWindowLimiter admits at most max operations within any rolling
// window. Contending callers each recompute their own wait time; admission
// order under contention is not guaranteed, only the per-window count.
type SlidingWindowLimiter struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	admitted []time.Time
}

// NewSlidingWindow creates a limiter admitting max operations per window.
func NewSlidingWindow(max int, window time.Duration) *SlidingWindowLimiter {
	if max < 1 {
		max = 1
	}
	return &SlidingWindowLimiter{
		max:    max,
		window: window,
	}
}

// tryAcquire trims expired admissions, then either records now and admits, or
// returns the time to wait before the oldest admission leaves the window.
// Trim-check-record is atomic under the limiter mutex.
func (l *SlidingWindowLimiter) tryAcquire(now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	trim := 0
	for trim < len(l.admitted) && !l.admitted[trim].After(cutoff) {
		trim++
	}
	if trim > 0 {
		l.admitted = append(l.admitted[:0], l.admitted[trim:]...)
	}

	if len(l.admitted) < l.max {
		l.admitted = append(l.admitted, now)
		return true, 0
	}

	return false, l.window - now.Sub(l.admitted[0])
}

// AcquireSlot blocks until an admission slot is available or ctx is done.
func (l *SlidingWindowLimiter) AcquireSlot(ctx context.Context) error {
	for {
		ok, wait := l.tryAcquire(time.Now())
		if ok {
			return nil
		}
		if wait <= 0 {
			// Oldest admission expired between the check and now; retry.
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Execute acquires a slot and then invokes fn, returning its error unchanged.
func (l *SlidingWindowLimiter) Execute(ctx context.Context, fn func() error) error {
	if err := l.AcquireSlot(ctx); err != nil {
		return err
	}
	return fn()
}
