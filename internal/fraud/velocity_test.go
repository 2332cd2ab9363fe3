package fraud

import (
	"testing"
	"time"
)

func TestVelocityTrackerBump(t *testing.T) {
	tr := newVelocityTracker(time.Minute)
	now := time.Now()

	for i := 1; i <= 6; i++ {
		if got := tr.Bump("user:a", now); got != i {
			t.Fatalf("bump %d: got count %d", i, got)
		}
	}

	if got := tr.Bump("user:b", now); got != 1 {
		t.Fatalf("independent key: got count %d, want 1", got)
	}
}

func TestVelocityTrackerSweep(t *testing.T) {
	tr := newVelocityTracker(time.Minute)
	start := time.Now()

	tr.Bump("user:a", start)
	tr.Bump("user:a", start)

	// Sweep before the window elapses keeps the counter.
	tr.sweep(start.Add(30 * time.Second))
	if got := tr.Bump("user:a", start); got != 3 {
		t.Fatalf("after early sweep: got count %d, want 3", got)
	}

	// Sweep after the window drops it; the next bump starts over.
	tr.sweep(start.Add(2 * time.Minute))
	if got := tr.Bump("user:a", start.Add(2*time.Minute)); got != 1 {
		t.Fatalf("after stale sweep: got count %d, want 1", got)
	}
}
