package trust

import (
	"errors"
	"testing"
	"time"
)

const owner = "0xowner"

func newTestLedger(t *testing.T) (*Ledger, *time.Time) {
	t.Helper()
	l := NewLedger(owner, nil)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return now })
	return l, &now
}

func TestUpdate_WeightedOverall(t *testing.T) {
	l, _ := newTestLedger(t)

	// 0.4*8000 + 0.4*9000 + 0.2*5000 = 7800
	if err := l.Update(owner, 1, 8000, 9000, 5000); err != nil {
		t.Fatalf("Update: %v", err)
	}
	rec, ok := l.Get(1)
	if !ok {
		t.Fatal("record not found")
	}
	if rec.Overall != 7800 {
		t.Errorf("Overall = %d, want 7800", rec.Overall)
	}
	if rec.UpdateCount != 1 {
		t.Errorf("UpdateCount = %d, want 1", rec.UpdateCount)
	}
}

func TestUpdate_RejectsOutOfRange(t *testing.T) {
	l, _ := newTestLedger(t)

	cases := []struct {
		name       string
		ca, cp, rt uint64
	}{
		{"claim accuracy", 10001, 0, 0},
		{"capital preservation", 0, 10001, 0},
		{"responsiveness", 0, 0, 10001},
	}
	for _, tc := range cases {
		if err := l.Update(owner, 1, tc.ca, tc.cp, tc.rt); !errors.Is(err, ErrInvalidScore) {
			t.Errorf("%s: err = %v, want ErrInvalidScore", tc.name, err)
		}
	}
	if _, ok := l.Get(1); ok {
		t.Error("rejected update must not create a record")
	}
}

func TestUpdate_RejectsUnauthorizedCaller(t *testing.T) {
	l, _ := newTestLedger(t)

	if err := l.Update("0xmallory", 1, 5000, 5000, 5000); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("err = %v, want ErrNotAuthorized", err)
	}

	// Allow-listed updaters may write.
	if err := l.AddUpdater(owner, "0xfeed"); err != nil {
		t.Fatalf("AddUpdater: %v", err)
	}
	if err := l.Update("0xfeed", 1, 5000, 5000, 5000); err != nil {
		t.Fatalf("Update by allow-listed updater: %v", err)
	}

	// Only the owner manages the allow-list.
	if err := l.AddUpdater("0xfeed", "0xother"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("AddUpdater by non-owner: err = %v, want ErrNotAuthorized", err)
	}

	if err := l.RemoveUpdater(owner, "0xfeed"); err != nil {
		t.Fatalf("RemoveUpdater: %v", err)
	}
	if err := l.Update("0xfeed", 1, 5000, 5000, 5000); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("removed updater: err = %v, want ErrNotAuthorized", err)
	}
}

func TestUpdate_HistoryRingBuffer(t *testing.T) {
	l, now := newTestLedger(t)

	for i := 0; i < 15; i++ {
		*now = now.Add(time.Hour)
		if err := l.Update(owner, 1, uint64(i*100), uint64(i*100), uint64(i*100)); err != nil {
			t.Fatalf("Update %d: %v", i, err)
		}
	}

	rec, _ := l.Get(1)
	if len(rec.History) != HistorySize {
		t.Fatalf("history length = %d, want %d", len(rec.History), HistorySize)
	}
	// Oldest 5 snapshots dropped; first retained is update #5 (overall 500).
	if rec.History[0].Overall != 500 {
		t.Errorf("oldest retained overall = %d, want 500", rec.History[0].Overall)
	}
	if rec.History[HistorySize-1].Overall != 1400 {
		t.Errorf("newest overall = %d, want 1400", rec.History[HistorySize-1].Overall)
	}
}

func TestDecay_CompoundsPerPeriod(t *testing.T) {
	l, now := newTestLedger(t)

	if err := l.Update(owner, 1, 10000, 10000, 10000); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// Two whole 30-day periods: 10000 * 0.95 * 0.95 = 9025.
	*now = now.Add(2*DecayPeriod + time.Hour)
	if err := l.Decay(1); err != nil {
		t.Fatalf("Decay: %v", err)
	}
	rec, _ := l.Get(1)
	if rec.Overall != 9025 {
		t.Errorf("Overall = %d, want 9025", rec.Overall)
	}
}

func TestDecay_IdempotentWithinPeriod(t *testing.T) {
	l, now := newTestLedger(t)

	if err := l.Update(owner, 1, 10000, 10000, 10000); err != nil {
		t.Fatalf("Update: %v", err)
	}

	*now = now.Add(DecayPeriod + time.Hour)
	if err := l.Decay(1); err != nil {
		t.Fatalf("Decay: %v", err)
	}
	first, _ := l.Get(1)

	// A second tick within the same period changes nothing: the decay clock
	// advanced by exactly one period, and less than another has elapsed.
	*now = now.Add(time.Hour)
	if err := l.Decay(1); err != nil {
		t.Fatalf("second Decay: %v", err)
	}
	second, _ := l.Get(1)

	if second.Overall != first.Overall {
		t.Errorf("Overall changed %d -> %d within one period", first.Overall, second.Overall)
	}
	if second.LastUpdated != first.LastUpdated {
		t.Errorf("LastUpdated changed %d -> %d without applying decay", first.LastUpdated, second.LastUpdated)
	}
}

func TestDecay_ZeroPeriodsIsNoOp(t *testing.T) {
	l, now := newTestLedger(t)

	if err := l.Update(owner, 1, 8000, 8000, 8000); err != nil {
		t.Fatalf("Update: %v", err)
	}
	before, _ := l.Get(1)

	*now = now.Add(29 * 24 * time.Hour)
	if err := l.Decay(1); err != nil {
		t.Fatalf("Decay: %v", err)
	}
	after, _ := l.Get(1)

	if after.Overall != before.Overall || after.LastUpdated != before.LastUpdated {
		t.Error("decay before a whole period elapsed must not change the record")
	}
}

func TestDecay_UnknownAgent(t *testing.T) {
	l, _ := newTestLedger(t)
	if err := l.Decay(99); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("err = %v, want ErrAgentNotFound", err)
	}
}

func TestMeetsThreshold(t *testing.T) {
	l, _ := newTestLedger(t)

	// Missing record scores zero.
	if l.MeetsThreshold(1, 1) {
		t.Error("missing record must fail any nonzero threshold")
	}
	if !l.MeetsThreshold(1, 0) {
		t.Error("zero threshold passes even without a record")
	}

	if err := l.Update(owner, 1, 6000, 6000, 6000); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !l.MeetsThreshold(1, 6000) {
		t.Error("6000 should meet a 6000 floor")
	}
	if l.MeetsThreshold(1, 6001) {
		t.Error("6000 should not meet a 6001 floor")
	}
}

func TestSeed_RestoresWithoutEvents(t *testing.T) {
	l, _ := newTestLedger(t)
	l.Seed([]Record{{AgentID: 7, Overall: 7200, UpdateCount: 3}})

	rec, ok := l.Get(7)
	if !ok || rec.Overall != 7200 || rec.UpdateCount != 3 {
		t.Fatalf("seeded record = %+v, ok=%v", rec, ok)
	}
}
