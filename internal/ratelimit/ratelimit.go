// Package ratelimit provides rolling-window request budgets keyed by name.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter admits at most a fixed number of events per key within a rolling
// window. Allow records the event when it is admitted.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

var _ Limiter = (*MemoryLimiter)(nil)

// MemoryLimiter keeps a timestamp log per key in process memory. Counters
// are not shared between instances and reset on restart.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	events map[string][]time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		events: make(map[string][]time.Time),
	}
}

// WithClock replaces the time source.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := prune(l.events[key], now.Add(-l.window))

	if len(kept) >= l.limit {
		l.events[key] = kept
		return false, nil
	}

	l.events[key] = append(kept, now)
	return true, nil
}

// Sweep drops keys with no events inside the window.
func (l *MemoryLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for key, ts := range l.events {
		kept := prune(ts, cutoff)
		if len(kept) == 0 {
			delete(l.events, key)
			continue
		}
		l.events[key] = kept
	}
}

// SweepLoop calls Sweep every interval until ctx is done.
func (l *MemoryLimiter) SweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// prune drops timestamps at or before cutoff. ts is in ascending order.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}
