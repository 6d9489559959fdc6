// Package vault is the capital/policy/claim lifecycle engine: share-based
// LP accounting with a fenced reserve, coverage policies priced against a
// volatility signal, and quorum-validated, trust-gated claim payouts.
//
// One mutex guards pool, policy, and claim state together. Settlement
// touches all three and must not interleave with a concurrent withdrawal or
// purchase that would change totalAssets mid-computation, so the components
// share a single lock rather than locking individually.
package vault

import (
	"sync"
	"time"

	"github.com/umbral-systems/tailguard/internal/events"
	"github.com/umbral-systems/tailguard/internal/quorum"
	"github.com/umbral-systems/tailguard/internal/ratelimit"
)

// bpsDenom is the basis-point denominator used across ratios.
const bpsDenom = 10000

// SharePriceScale is the fixed-point scale of SharePrice: a price of
// 1_000_000 means one unit per share.
const SharePriceScale = 1_000_000

// Directory is the identity collaborator. The core never mutates identity
// state.
type Directory interface {
	IsAuthorized(agentID uint64) bool
	WalletOf(agentID uint64) (string, error)
}

// TrustGate is the reputation collaborator consulted before any privileged
// agent action.
type TrustGate interface {
	MeetsThreshold(agentID, minBps uint64) bool
}

// RiskFeed supplies the latest externally-produced volatility reading.
type RiskFeed interface {
	ValueBps() uint64
	BlackSwan() bool
}

// ValidationService opens and reports on quorum validation requests.
type ValidationService interface {
	RequestValidation(subjectAgent uint64, method quorum.Method, taskData string, requiredStake uint64, deadline time.Time) (uint64, error)
	StatusOf(id uint64) (quorum.Status, error)
}

// PayoutSink receives external fund transfers. Internal ledgers are fully
// updated before Transfer is called, so a malicious recipient re-entering
// the vault observes consistent state. Transfer mechanics are assumed
// reliable and outside the trust boundary.
type PayoutSink interface {
	Transfer(recipient string, amount uint64)
}

// Config carries the vault's economic parameters. Ratios and rates are in
// basis points.
type Config struct {
	ReserveRatioBps     uint64
	MaxExposureRatioBps uint64
	BaseRateBps         uint64 // premium per 30 days of coverage
	VolSurchargeBps     uint64
	MinTrustBps         uint64
	MinDuration         time.Duration
	MaxDuration         time.Duration
	ValidationStake     uint64
	ValidationWindow    time.Duration
	DailyClaimCap       int
	SuspendOnBlackSwan  bool
}

// DefaultConfig returns the production parameter set: 20% reserve, 80%
// exposure cap, 2%/30d base rate with a 6% volatility surcharge, a 6000 bps
// trust floor, and ten claims per day.
func DefaultConfig() Config {
	return Config{
		ReserveRatioBps:     2000,
		MaxExposureRatioBps: 8000,
		BaseRateBps:         200,
		VolSurchargeBps:     600,
		MinTrustBps:         6000,
		MinDuration:         24 * time.Hour,
		MaxDuration:         365 * 24 * time.Hour,
		ValidationStake:     100,
		ValidationWindow:    24 * time.Hour,
		DailyClaimCap:       10,
		SuspendOnBlackSwan:  true,
	}
}

// Position is one LP's share holding.
type Position struct {
	Owner       string `json:"owner"`
	Shares      uint64 `json:"shares"`
	DepositedAt int64  `json:"deposited_at"`
}

// PolicyStatus is the lifecycle state of a coverage policy.
type PolicyStatus string

const (
	PolicyActive    PolicyStatus = "active"
	PolicyClaimed   PolicyStatus = "claimed"
	PolicyExpired   PolicyStatus = "expired"
	PolicyCancelled PolicyStatus = "cancelled"
)

// Policy is one coverage policy. Immutable after claim settlement or expiry.
type Policy struct {
	ID                  uint64       `json:"id"`
	Holder              string       `json:"holder"`
	Coverage            uint64       `json:"coverage"`
	Premium             uint64       `json:"premium"`
	CreatedAt           int64        `json:"created_at"`
	Expiry              int64        `json:"expiry"`
	TriggerThresholdBps uint64       `json:"trigger_threshold_bps"`
	Status              PolicyStatus `json:"status"`
	AgentID             uint64       `json:"agent_id"` // underwriting agent
}

// ClaimStatus is the lifecycle state of a claim.
//
//	Submitted -> Validating -> {Approved -> Paid | Rejected}
type ClaimStatus string

const (
	ClaimSubmitted  ClaimStatus = "submitted"
	ClaimValidating ClaimStatus = "validating"
	ClaimApproved   ClaimStatus = "approved"
	ClaimRejected   ClaimStatus = "rejected"
	ClaimPaid       ClaimStatus = "paid"
)

// Claim maps one policy to one validation request. Terminal on Paid or
// Rejected.
type Claim struct {
	ID                  uint64      `json:"id"`
	PolicyID            uint64      `json:"policy_id"`
	Claimant            string      `json:"claimant"`
	RequestedAmount     uint64      `json:"requested_amount"`
	ValidationRequestID uint64      `json:"validation_request_id"`
	Status              ClaimStatus `json:"status"`
	EvidenceDigest      string      `json:"evidence_digest"`
	SubmittedAt         int64       `json:"submitted_at"`
}

// Stats is the pool read model.
type Stats struct {
	TotalAssets         uint64 `json:"total_assets"`
	TotalShares         uint64 `json:"total_shares"`
	TotalPolicyCoverage uint64 `json:"total_policy_coverage"`
	Reserve             uint64 `json:"reserve"`
	AvailableCapital    uint64 `json:"available_capital"`
	SharePrice          uint64 `json:"share_price"` // scaled by SharePriceScale
	PremiumsCollected   uint64 `json:"premiums_collected"`
	ClaimsPaid          uint64 `json:"claims_paid"`
	VolatilityBps       uint64 `json:"volatility_bps"`
}

// State is the complete persistent snapshot of the vault, used to restore
// the engine at boot.
type State struct {
	TotalAssets         uint64     `json:"total_assets"`
	TotalShares         uint64     `json:"total_shares"`
	TotalPolicyCoverage uint64     `json:"total_policy_coverage"`
	PremiumsCollected   uint64     `json:"premiums_collected"`
	ClaimsPaid          uint64     `json:"claims_paid"`
	NextPolicyID        uint64     `json:"next_policy_id"`
	NextClaimID         uint64     `json:"next_claim_id"`
	Positions           []Position `json:"positions"`
	Policies            []Policy   `json:"policies"`
	Claims              []Claim    `json:"claims"`
}

// Vault owns the pool, policy, and claim ledgers.
type Vault struct {
	mu  sync.Mutex
	cfg Config

	totalAssets       uint64
	totalShares       uint64
	totalCoverage     uint64
	premiumsCollected uint64
	claimsPaid        uint64

	positions    map[string]*Position
	policies     map[uint64]*Policy
	claims       map[uint64]*Claim
	nextPolicyID uint64
	nextClaimID  uint64

	limiter *ratelimit.DayLimiter

	dir       Directory
	gate      TrustGate
	risk      RiskFeed
	validator ValidationService
	payout    PayoutSink

	log *events.Log
	now func() time.Time
}

// New creates a Vault wired to its collaborators. payout and log may be nil.
func New(cfg Config, dir Directory, gate TrustGate, risk RiskFeed, validator ValidationService, payout PayoutSink, log *events.Log) *Vault {
	if cfg.DailyClaimCap < 1 {
		cfg.DailyClaimCap = 1
	}
	if payout == nil {
		payout = NewMemorySink()
	}
	return &Vault{
		cfg:          cfg,
		positions:    make(map[string]*Position),
		policies:     make(map[uint64]*Policy),
		claims:       make(map[uint64]*Claim),
		nextPolicyID: 1,
		nextClaimID:  1,
		limiter:      ratelimit.NewDay(cfg.DailyClaimCap),
		dir:          dir,
		gate:         gate,
		risk:         risk,
		validator:    validator,
		payout:       payout,
		log:          log,
		now:          time.Now,
	}
}

// SetClock overrides the vault's clock (and its claim limiter's). Test hook.
func (v *Vault) SetClock(now func() time.Time) {
	v.mu.Lock()
	v.now = now
	v.limiter.SetClock(now)
	v.mu.Unlock()
}

// reserve is the capital fraction fenced off from withdrawals and payouts,
// computed against current assets. Callers hold v.mu.
func (v *Vault) reserve() uint64 {
	return mulDiv(v.totalAssets, v.cfg.ReserveRatioBps, bpsDenom)
}

// availableCapital is what LPs may withdraw: assets net of reserve and all
// admitted coverage, clamped at zero. Callers hold v.mu.
func (v *Vault) availableCapital() uint64 {
	fenced := v.reserve() + v.totalCoverage
	if v.totalAssets <= fenced {
		return 0
	}
	return v.totalAssets - fenced
}

// Stats returns the pool read model. TotalPolicyCoverage counts policies
// past expiry but not yet swept, so the figure is conservative until
// ExpireSweep runs.
func (v *Vault) Stats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Stats{
		TotalAssets:         v.totalAssets,
		TotalShares:         v.totalShares,
		TotalPolicyCoverage: v.totalCoverage,
		Reserve:             v.reserve(),
		AvailableCapital:    v.availableCapital(),
		SharePrice:          v.sharePrice(),
		PremiumsCollected:   v.premiumsCollected,
		ClaimsPaid:          v.claimsPaid,
		VolatilityBps:       v.risk.ValueBps(),
	}
}

// Snapshot exports the full vault state for persistence.
func (v *Vault) Snapshot() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := State{
		TotalAssets:         v.totalAssets,
		TotalShares:         v.totalShares,
		TotalPolicyCoverage: v.totalCoverage,
		PremiumsCollected:   v.premiumsCollected,
		ClaimsPaid:          v.claimsPaid,
		NextPolicyID:        v.nextPolicyID,
		NextClaimID:         v.nextClaimID,
	}
	for _, p := range v.positions {
		st.Positions = append(st.Positions, *p)
	}
	for _, p := range v.policies {
		st.Policies = append(st.Policies, *p)
	}
	for _, c := range v.claims {
		st.Claims = append(st.Claims, *c)
	}
	return st
}

// Restore installs a persisted snapshot without emitting events. Used at
// boot before the vault accepts operations.
func (v *Vault) Restore(st State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.totalAssets = st.TotalAssets
	v.totalShares = st.TotalShares
	v.totalCoverage = st.TotalPolicyCoverage
	v.premiumsCollected = st.PremiumsCollected
	v.claimsPaid = st.ClaimsPaid
	if st.NextPolicyID > 0 {
		v.nextPolicyID = st.NextPolicyID
	}
	if st.NextClaimID > 0 {
		v.nextClaimID = st.NextClaimID
	}
	for i := range st.Positions {
		p := st.Positions[i]
		v.positions[p.Owner] = &p
	}
	for i := range st.Policies {
		p := st.Policies[i]
		v.policies[p.ID] = &p
	}
	for i := range st.Claims {
		c := st.Claims[i]
		v.claims[c.ID] = &c
	}
}

// MemorySink is a PayoutSink accruing recipient balances in memory. It
// stands in for the external token transfer surface, which is assumed
// reliable and out of scope.
type MemorySink struct {
	mu       sync.Mutex
	balances map[string]uint64
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{balances: make(map[string]uint64)}
}

// Transfer credits amount to recipient.
func (s *MemorySink) Transfer(recipient string, amount uint64) {
	s.mu.Lock()
	s.balances[recipient] += amount
	s.mu.Unlock()
}

// BalanceOf returns the cumulative amount transferred to recipient.
func (s *MemorySink) BalanceOf(recipient string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[recipient]
}
