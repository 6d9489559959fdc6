package events

import (
	"errors"
	"testing"
)

type memSink struct {
	entries []Event
	fail    bool
}

func (s *memSink) Append(e Event) error {
	if s.fail {
		return errors.New("disk full")
	}
	s.entries = append(s.entries, e)
	return nil
}

func TestEmit_StampsAndPersists(t *testing.T) {
	sink := &memSink{}
	log := NewLog(nil, sink)

	e := log.Emit(Event{Type: Deposited, Actor: "0xlp", Amount: 500})
	if e.ID == "" {
		t.Error("emitted event must carry an ID")
	}
	if e.Timestamp == 0 {
		t.Error("emitted event must carry a timestamp")
	}
	if len(sink.entries) != 1 {
		t.Fatalf("sink holds %d entries, want 1", len(sink.entries))
	}
	if sink.entries[0].ID != e.ID {
		t.Error("sink entry must match the returned event")
	}
}

func TestEmit_SinkFailureDoesNotPropagate(t *testing.T) {
	log := NewLog(nil, &memSink{fail: true})
	e := log.Emit(Event{Type: ClaimPaid, ClaimID: 7, Amount: 2000})
	if e.ID == "" {
		t.Error("emit must succeed even when the journal write fails")
	}
}

func TestSubscribe_DeliversAndCancels(t *testing.T) {
	log := NewLog(nil, nil)
	ch, cancel := log.Subscribe(4)

	log.Emit(Event{Type: PolicyCreated, PolicyID: 3})
	got := <-ch
	if got.Type != PolicyCreated || got.PolicyID != 3 {
		t.Fatalf("got %+v", got)
	}

	cancel()
	if _, open := <-ch; open {
		t.Error("channel must close on cancel")
	}
	// Emitting after cancel must not panic or deliver.
	log.Emit(Event{Type: Withdrawn})

	// Cancel is safe to call twice.
	cancel()
}

func TestSubscribe_SlowConsumerSkipped(t *testing.T) {
	log := NewLog(nil, nil)
	ch, cancel := log.Subscribe(1)
	defer cancel()

	log.Emit(Event{Type: Deposited, Amount: 1})
	log.Emit(Event{Type: Deposited, Amount: 2}) // buffer full, dropped

	got := <-ch
	if got.Amount != 1 {
		t.Fatalf("amount = %d, want 1", got.Amount)
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected second delivery: %+v", e)
	default:
	}
}
