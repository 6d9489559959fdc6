// Package ratelimit bounds the number of privileged operations accepted per
// UTC calendar day. The claim engine uses it as a circuit breaker on claim
// submissions so a correlated pool-wide event cannot drain capital faster
// than a bounded daily rate.
package ratelimit

import (
	"sync"
	"time"
)

// DayLimiter allows up to cap operations per UTC calendar day. The counter
// resets when the calendar date changes, not a fixed duration after the
// first operation.
type DayLimiter struct {
	mu  sync.Mutex
	cap int
	day string // "2006-01-02" of the current window
	n   int
	now func() time.Time
}

// NewDay creates a DayLimiter allowing cap operations per UTC day.
func NewDay(cap int) *DayLimiter {
	return &DayLimiter{cap: cap, now: time.Now}
}

// SetClock overrides the limiter's clock. Test hook.
func (l *DayLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

// Allow consumes one slot from today's budget and reports whether the
// operation is within the daily cap.
func (l *DayLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.now().UTC().Format("2006-01-02")
	if today != l.day {
		l.day = today
		l.n = 0
	}
	if l.n >= l.cap {
		return false
	}
	l.n++
	return true
}

// Remaining reports how many operations are left in today's budget.
func (l *DayLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.now().UTC().Format("2006-01-02")
	if today != l.day {
		return l.cap
	}
	if l.n >= l.cap {
		return 0
	}
	return l.cap - l.n
}
