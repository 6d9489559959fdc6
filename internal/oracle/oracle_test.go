package oracle

import (
	"errors"
	"testing"
	"time"
)

func TestRegimeOf(t *testing.T) {
	cases := []struct {
		bps  uint64
		want Regime
	}{
		{0, RegimeCalm},
		{1999, RegimeCalm},
		{2000, RegimeElevated},
		{4999, RegimeElevated},
		{5000, RegimeStress},
		{7499, RegimeStress},
		{7500, RegimeBlackSwan},
		{10000, RegimeBlackSwan},
	}
	for _, tc := range cases {
		if got := RegimeOf(tc.bps); got != tc.want {
			t.Errorf("RegimeOf(%d) = %s, want %s", tc.bps, got, tc.want)
		}
	}
}

func TestUpdate_LastValueWins(t *testing.T) {
	o := New(0, nil)

	if _, ok := o.Current(); ok {
		t.Fatal("no reading before first push")
	}
	if got := o.ValueBps(); got != 0 {
		t.Fatalf("ValueBps before push = %d, want 0", got)
	}

	if err := o.Update("agent-1", 3000, "coingecko"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := o.Update("agent-1", 8000, "coingecko"); err != nil {
		t.Fatalf("Update: %v", err)
	}

	r, ok := o.Current()
	if !ok || r.ValueBps != 8000 || r.Regime != RegimeBlackSwan {
		t.Fatalf("Current = %+v, ok=%v", r, ok)
	}
	if !o.BlackSwan() {
		t.Error("BlackSwan should report true at 8000 bps")
	}
}

func TestUpdate_RejectsOutOfRange(t *testing.T) {
	o := New(0, nil)
	if err := o.Update("agent-1", 10001, "manual"); !errors.Is(err, ErrInvalidReading) {
		t.Fatalf("err = %v, want ErrInvalidReading", err)
	}
}

func TestStale(t *testing.T) {
	o := New(10*time.Minute, nil)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	o.SetClock(func() time.Time { return now })

	if o.Stale() {
		t.Error("no reading is not stale")
	}
	o.Update("agent-1", 2500, "manual")
	if o.Stale() {
		t.Error("fresh reading reported stale")
	}

	now = now.Add(11 * time.Minute)
	if !o.Stale() {
		t.Error("11-minute-old reading should be stale")
	}
	// Stale readings are still served.
	if got := o.ValueBps(); got != 2500 {
		t.Errorf("ValueBps = %d, want 2500", got)
	}
}
