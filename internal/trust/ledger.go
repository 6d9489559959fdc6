// Package trust tracks a decaying reputation score per agent. Every
// privileged agent action in the vault is gated on MeetsThreshold; an agent
// with no record scores zero and fails every gate.
package trust

import (
	"errors"
	"sync"
	"time"

	"github.com/umbral-systems/tailguard/internal/events"
)

const (
	// MaxScore is the upper bound of every component and overall score, in
	// basis points.
	MaxScore = 10000

	// HistorySize is the number of (overall, timestamp) snapshots retained
	// per agent affected.
	HistorySize = 10

	// DecayPeriod is the interval after which one decay step applies.
	DecayPeriod = 30 * 24 * time.Hour

	// decayKeepBps is the fraction of the overall score retained per elapsed
	// decay period: 9500 bps = a 5% reduction, compounding.
	decayKeepBps = 9500

	// Fixed component weights, in basis points. Claim accuracy and capital
	// preservation dominate; responsiveness is the tiebreaker.
	weightClaimAccuracy       = 4000
	weightCapitalPreservation = 4000
	weightResponsiveness      = 2000
)

var (
	ErrInvalidScore  = errors.New("trust: score out of range")
	ErrNotAuthorized = errors.New("trust: caller not authorized")
	ErrAgentNotFound = errors.New("trust: agent has no record")
)

// Snapshot is one retained (overall, timestamp) pair.
type Snapshot struct {
	Overall   uint64 `json:"overall"`
	Timestamp int64  `json:"timestamp"`
}

// Record is the full trust state for one agent.
type Record struct {
	AgentID             uint64     `json:"agent_id"`
	ClaimAccuracy       uint64     `json:"claim_accuracy"`
	CapitalPreservation uint64     `json:"capital_preservation"`
	Responsiveness      uint64     `json:"responsiveness"`
	Overall             uint64     `json:"overall"`
	LastUpdated         int64      `json:"last_updated"`
	UpdateCount         uint64     `json:"update_count"`
	History             []Snapshot `json:"history"`
}

// Ledger is the trust score registry. Updates are restricted to an
// owner-managed allow-list of updater addresses; decay is a public tick.
//
// Decay is lazy: it is only materialized when Decay is called, so readers of
// Overall may see a value that is stale relative to wall-clock decay.
type Ledger struct {
	mu       sync.RWMutex
	owner    string
	updaters map[string]bool
	records  map[uint64]*Record
	log      *events.Log
	now      func() time.Time
}

// NewLedger creates a Ledger administered by owner. log may be nil.
func NewLedger(owner string, log *events.Log) *Ledger {
	return &Ledger{
		owner:    owner,
		updaters: make(map[string]bool),
		records:  make(map[uint64]*Record),
		log:      log,
		now:      time.Now,
	}
}

// SetClock overrides the ledger's clock. Test hook.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

// AddUpdater adds addr to the updater allow-list. Only the owner may call.
func (l *Ledger) AddUpdater(caller, addr string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.owner {
		return ErrNotAuthorized
	}
	l.updaters[addr] = true
	return nil
}

// RemoveUpdater removes addr from the updater allow-list. Only the owner may
// call.
func (l *Ledger) RemoveUpdater(caller, addr string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.owner {
		return ErrNotAuthorized
	}
	delete(l.updaters, addr)
	return nil
}

// Update sets the three component scores for agent and recomputes the
// weighted overall. All components must be within [0, MaxScore]. Only
// allow-listed updaters (or the owner) may call.
func (l *Ledger) Update(caller string, agent, claimAccuracy, capitalPreservation, responsiveness uint64) error {
	if claimAccuracy > MaxScore || capitalPreservation > MaxScore || responsiveness > MaxScore {
		return ErrInvalidScore
	}

	l.mu.Lock()
	if caller != l.owner && !l.updaters[caller] {
		l.mu.Unlock()
		return ErrNotAuthorized
	}

	rec, ok := l.records[agent]
	if !ok {
		rec = &Record{AgentID: agent}
		l.records[agent] = rec
	}

	rec.ClaimAccuracy = claimAccuracy
	rec.CapitalPreservation = capitalPreservation
	rec.Responsiveness = responsiveness
	rec.Overall = (claimAccuracy*weightClaimAccuracy +
		capitalPreservation*weightCapitalPreservation +
		responsiveness*weightResponsiveness) / MaxScore
	rec.LastUpdated = l.now().Unix()
	rec.UpdateCount++

	rec.History = append(rec.History, Snapshot{Overall: rec.Overall, Timestamp: rec.LastUpdated})
	if len(rec.History) > HistorySize {
		rec.History = rec.History[len(rec.History)-HistorySize:]
	}

	overall := rec.Overall
	l.mu.Unlock()

	if l.log != nil {
		l.log.Emit(events.Event{
			Type:    events.TrustScoreUpdated,
			AgentID: agent,
			Actor:   caller,
			Amount:  overall,
		})
	}
	return nil
}

// Decay applies every whole 30-day decay period elapsed since the record's
// last update, compounding a 5% reduction per period. Anyone may call.
// Fewer than one whole elapsed period is a strict no-op: the decay clock is
// only advanced by the periods actually applied, never silently reset.
func (l *Ledger) Decay(agent uint64) error {
	l.mu.Lock()
	rec, ok := l.records[agent]
	if !ok {
		l.mu.Unlock()
		return ErrAgentNotFound
	}

	elapsed := l.now().Unix() - rec.LastUpdated
	periods := elapsed / int64(DecayPeriod/time.Second)
	if periods <= 0 {
		l.mu.Unlock()
		return nil
	}

	for i := int64(0); i < periods; i++ {
		rec.Overall = rec.Overall * decayKeepBps / MaxScore
	}
	rec.LastUpdated += periods * int64(DecayPeriod/time.Second)

	overall := rec.Overall
	l.mu.Unlock()

	if l.log != nil {
		l.log.Emit(events.Event{
			Type:    events.TrustScoreDecayed,
			AgentID: agent,
			Amount:  overall,
		})
	}
	return nil
}

// MeetsThreshold reports whether agent's last-materialized overall score is
// at least minBps. A missing record counts as zero.
func (l *Ledger) MeetsThreshold(agent, minBps uint64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[agent]
	if !ok {
		return minBps == 0
	}
	return rec.Overall >= minBps
}

// Get returns a copy of agent's record.
func (l *Ledger) Get(agent uint64) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[agent]
	if !ok {
		return Record{}, false
	}
	out := *rec
	out.History = append([]Snapshot(nil), rec.History...)
	return out, true
}

// Agents returns the IDs of all agents with a record.
func (l *Ledger) Agents() []uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]uint64, 0, len(l.records))
	for id := range l.records {
		ids = append(ids, id)
	}
	return ids
}

// Seed installs previously persisted records without emitting events. Used
// when restoring state at boot.
func (l *Ledger) Seed(recs []Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range recs {
		rec := recs[i]
		l.records[rec.AgentID] = &rec
	}
}

// Export returns a copy of every record, for persistence.
func (l *Ledger) Export() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	recs := make([]Record, 0, len(l.records))
	for _, rec := range l.records {
		r := *rec
		r.History = append([]Snapshot(nil), rec.History...)
		recs = append(recs, r)
	}
	return recs
}
