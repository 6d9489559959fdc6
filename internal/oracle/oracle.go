// Package oracle holds the latest externally-supplied volatility reading,
// a VIX-proxy in basis points (0-10000). The core treats its production as
// an untrusted external input and uses the last value until it is
// overwritten; it never polls on its own schedule.
package oracle

import (
	"errors"
	"sync"
	"time"

	"github.com/umbral-systems/tailguard/internal/events"
)

// Regime buckets the VIX-proxy into operating modes.
//
//	0-2000 bps   calm       (annualized vol < 20%)
//	2000-5000    elevated   (20-50%)
//	5000-7500    stress     (50-75%)
//	7500-10000   black_swan (75%+)
type Regime string

const (
	RegimeCalm      Regime = "calm"
	RegimeElevated  Regime = "elevated"
	RegimeStress    Regime = "stress"
	RegimeBlackSwan Regime = "black_swan"
)

const (
	MaxBps             = 10000
	blackSwanThreshold = 7500
)

var ErrInvalidReading = errors.New("oracle: volatility out of range")

// Reading is one volatility measurement.
type Reading struct {
	ValueBps  uint64 `json:"value_bps"`
	Regime    Regime `json:"regime"`
	Source    string `json:"source"`
	UpdatedAt int64  `json:"updated_at"`
}

// RegimeOf classifies a VIX-proxy value.
func RegimeOf(bps uint64) Regime {
	switch {
	case bps < 2000:
		return RegimeCalm
	case bps < 5000:
		return RegimeElevated
	case bps < blackSwanThreshold:
		return RegimeStress
	default:
		return RegimeBlackSwan
	}
}

// Oracle caches the latest pushed reading.
type Oracle struct {
	mu      sync.RWMutex
	reading *Reading
	maxAge  time.Duration
	log     *events.Log
	now     func() time.Time
}

// New creates an Oracle. Readings older than maxAge are reported stale but
// still served. maxAge <= 0 disables the staleness flag.
func New(maxAge time.Duration, log *events.Log) *Oracle {
	return &Oracle{maxAge: maxAge, log: log, now: time.Now}
}

// SetClock overrides the oracle's clock. Test hook.
func (o *Oracle) SetClock(now func() time.Time) {
	o.mu.Lock()
	o.now = now
	o.mu.Unlock()
}

// Update stores a new reading pushed by actor.
func (o *Oracle) Update(actor string, bps uint64, source string) error {
	if bps > MaxBps {
		return ErrInvalidReading
	}

	o.mu.Lock()
	r := Reading{
		ValueBps:  bps,
		Regime:    RegimeOf(bps),
		Source:    source,
		UpdatedAt: o.now().Unix(),
	}
	o.reading = &r
	o.mu.Unlock()

	if o.log != nil {
		o.log.Emit(events.Event{
			Type:   events.VolatilityUpdated,
			Actor:  actor,
			Amount: bps,
			Detail: string(r.Regime),
		})
	}
	return nil
}

// Current returns the latest reading, or ok=false before the first push.
func (o *Oracle) Current() (Reading, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.reading == nil {
		return Reading{}, false
	}
	return *o.reading, true
}

// ValueBps returns the latest VIX-proxy, or zero before the first push.
func (o *Oracle) ValueBps() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.reading == nil {
		return 0
	}
	return o.reading.ValueBps
}

// BlackSwan reports whether the latest reading is in the black_swan regime.
func (o *Oracle) BlackSwan() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.reading != nil && o.reading.Regime == RegimeBlackSwan
}

// Stale reports whether the latest reading is older than the configured
// maximum age. A stale reading is still served.
func (o *Oracle) Stale() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.reading == nil || o.maxAge <= 0 {
		return false
	}
	return o.now().Sub(time.Unix(o.reading.UpdatedAt, 0)) > o.maxAge
}

// Seed installs a persisted reading without emitting an event.
func (o *Oracle) Seed(r Reading) {
	o.mu.Lock()
	o.reading = &r
	o.mu.Unlock()
}
