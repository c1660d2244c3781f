// api/ratelimit/ratelimit_test.go
package ratelimit

import (
	"testing"
	"time"
)

func TestDecisionBoundary(t *testing.T) {
	l := New(nil, 5, time.Minute)
	windowStart := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

	// Exactly capacity requests are admitted, the next one is not.
	for count := int64(1); count <= 5; count++ {
		d := l.decision(count, windowStart)
		if !d.Allowed {
			t.Errorf("request %d rejected, want admitted", count)
		}
		if want := 5 - int(count); d.Remaining != want {
			t.Errorf("request %d: Remaining = %d, want %d", count, d.Remaining, want)
		}
	}

	d := l.decision(6, windowStart)
	if d.Allowed {
		t.Error("request over capacity admitted, want rejected")
	}
	if d.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0 once exhausted", d.Remaining)
	}
	if d.Limit != 5 {
		t.Errorf("Limit = %d, want 5", d.Limit)
	}
}

func TestDecisionResetAt(t *testing.T) {
	l := New(nil, 100, time.Minute)
	windowStart := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

	d := l.decision(1, windowStart)
	if want := windowStart.Add(time.Minute); !d.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v", d.ResetAt, want)
	}
}

func TestWindowStampIsolation(t *testing.T) {
	// Consecutive windows truncate to different stamps, so their Redis keys
	// differ and a new window always starts from a fresh counter.
	l := New(nil, 1, time.Minute)
	a := time.Date(2025, 6, 1, 10, 30, 59, 0, time.UTC).Truncate(l.period)
	b := time.Date(2025, 6, 1, 10, 31, 0, 0, time.UTC).Truncate(l.period)

	if a.Unix() == b.Unix() {
		t.Fatalf("adjacent windows share a stamp: %v", a)
	}

	// A rejected client regains full capacity once the next window opens.
	if d := l.decision(2, a); d.Allowed {
		t.Error("count over capacity admitted in first window")
	}
	if d := l.decision(1, b); !d.Allowed {
		t.Error("first request of new window rejected")
	}
}
