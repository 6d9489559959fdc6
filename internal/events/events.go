// Package events is the audit journal for the TailGuard core. Every state
// transition in the vault, trust ledger, and validation quorum emits exactly
// one event carrying the identifiers needed to reconstruct full lifecycle
// history from the journal alone.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Type identifies the kind of state transition an event records.
type Type string

const (
	Deposited           Type = "deposited"
	Withdrawn           Type = "withdrawn"
	PolicyCreated       Type = "policy_created"
	PolicyExpired       Type = "policy_expired"
	ClaimSubmitted      Type = "claim_submitted"
	ValidationRequested Type = "validation_requested"
	ValidationResolved  Type = "validation_resolved"
	ClaimPaid           Type = "claim_paid"
	ClaimRejected       Type = "claim_rejected"
	TrustScoreUpdated   Type = "trust_score_updated"
	TrustScoreDecayed   Type = "trust_score_decayed"
	VolatilityUpdated   Type = "volatility_updated"
)

// Event is a single journal entry. Identifier fields are zero when they do
// not apply to the event type.
type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Timestamp int64  `json:"timestamp"`

	AgentID   uint64 `json:"agent_id,omitempty"`
	PolicyID  uint64 `json:"policy_id,omitempty"`
	ClaimID   uint64 `json:"claim_id,omitempty"`
	RequestID uint64 `json:"request_id,omitempty"`

	Actor  string `json:"actor,omitempty"`  // address that triggered the transition
	Amount uint64 `json:"amount,omitempty"` // units moved or covered
	Detail string `json:"detail,omitempty"` // outcome, digest, or regime label
}

// Sink receives every emitted event, typically for durable storage. Append
// errors are logged, not propagated: a journal write failure must not undo
// the state transition it records.
type Sink interface {
	Append(Event) error
}

// Log fans emitted events out to the structured logger, an optional durable
// sink, and any live subscribers.
type Log struct {
	mu     sync.Mutex
	logger *zap.Logger
	sink   Sink
	subs   map[uint64]chan Event
	nextID uint64
	now    func() time.Time
}

// NewLog creates a Log writing through logger. sink may be nil.
func NewLog(logger *zap.Logger, sink Sink) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{
		logger: logger,
		sink:   sink,
		subs:   make(map[uint64]chan Event),
		now:    time.Now,
	}
}

// Emit stamps e with a fresh ID and timestamp, logs it, persists it, and
// delivers it to subscribers. Subscribers that cannot keep up are skipped
// rather than blocking the emitting operation.
func (l *Log) Emit(e Event) Event {
	e.ID = uuid.New().String()
	if e.Timestamp == 0 {
		e.Timestamp = l.now().Unix()
	}

	l.logger.Info("event",
		zap.String("event_id", e.ID),
		zap.String("type", string(e.Type)),
		zap.Uint64("agent_id", e.AgentID),
		zap.Uint64("policy_id", e.PolicyID),
		zap.Uint64("claim_id", e.ClaimID),
		zap.Uint64("request_id", e.RequestID),
		zap.String("actor", e.Actor),
		zap.Uint64("amount", e.Amount),
		zap.String("detail", e.Detail),
	)

	if l.sink != nil {
		if err := l.sink.Append(e); err != nil {
			l.logger.Error("journal append failed", zap.Error(err), zap.String("event_id", e.ID))
		}
	}

	l.mu.Lock()
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
		}
	}
	l.mu.Unlock()
	return e
}

// Subscribe returns a channel receiving future events and a cancel func.
// The channel is buffered; slow consumers miss events instead of blocking
// the core.
func (l *Log) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		if _, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(ch)
		}
		l.mu.Unlock()
	}
	return ch, cancel
}
