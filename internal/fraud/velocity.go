package fraud

import (
	"context"
	"sync"
	"time"
)

// velocityTracker counts recent events per key in process-local memory.
// A periodic sweep drops entries older than the window, which makes the
// "1 minute" window approximate rather than a true sliding window: a
// burst split across a sweep boundary is undercounted. Counters are not
// shared across worker instances.
type velocityTracker struct {
	mu       sync.Mutex
	window   time.Duration
	counters map[string]*velocityCounter
}

type velocityCounter struct {
	count     int
	lastReset time.Time
}

func newVelocityTracker(window time.Duration) *velocityTracker {
	return &velocityTracker{
		window:   window,
		counters: make(map[string]*velocityCounter),
	}
}

// Bump increments the counter for key and returns the new count.
func (t *velocityTracker) Bump(key string, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.counters[key]
	if !ok {
		c = &velocityCounter{lastReset: now}
		t.counters[key] = c
	}
	c.count++
	return c.count
}

func (t *velocityTracker) sweep(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, c := range t.counters {
		if now.Sub(c.lastReset) >= t.window {
			delete(t.counters, key)
		}
	}
}

// Run sweeps stale counters once per window until ctx is cancelled.
func (t *velocityTracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t.sweep(now)
		}
	}
}
