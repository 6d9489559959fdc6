package ratelimit

import (
	"testing"
	"time"
)

func TestDayLimiter_AllowsUpToCap(t *testing.T) {
	l := NewDay(3)
	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("operation %d should be allowed", i+1)
		}
	}
	if l.Allow() {
		t.Fatal("4th operation should be denied")
	}
}

func TestDayLimiter_ResetsOnDateChange(t *testing.T) {
	now := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
	l := NewDay(1)
	l.SetClock(func() time.Time { return now })

	if !l.Allow() {
		t.Fatal("first operation should be allowed")
	}
	if l.Allow() {
		t.Fatal("cap reached, should be denied")
	}

	// Two minutes later it is a new calendar day.
	now = now.Add(2 * time.Minute)
	if !l.Allow() {
		t.Fatal("new day should reset the budget")
	}
}

func TestDayLimiter_Remaining(t *testing.T) {
	l := NewDay(2)
	if got := l.Remaining(); got != 2 {
		t.Fatalf("Remaining = %d, want 2", got)
	}
	l.Allow()
	if got := l.Remaining(); got != 1 {
		t.Fatalf("Remaining = %d, want 1", got)
	}
	l.Allow()
	l.Allow()
	if got := l.Remaining(); got != 0 {
		t.Fatalf("Remaining = %d, want 0", got)
	}
}
