package vault

import (
	"fmt"
	"time"

	"github.com/umbral-systems/tailguard/internal/events"
)

const premiumPeriod = 30 * 24 * time.Hour

// premium prices coverage deterministically from duration and the latest
// volatility reading:
//
//	base      = coverage * baseRate * duration/30d
//	surcharge = coverage * surchargeRate * vol/10000
//
// Integer floor division throughout. Callers hold v.mu.
func (v *Vault) premium(coverage uint64, duration time.Duration) uint64 {
	hours := uint64(duration / time.Hour)
	periodsBps := hours * bpsDenom / uint64(premiumPeriod/time.Hour)
	base := mulDiv(coverage, v.cfg.BaseRateBps*periodsBps, bpsDenom*bpsDenom)
	surcharge := mulDiv(coverage, v.cfg.VolSurchargeBps*v.risk.ValueBps(), bpsDenom*bpsDenom)
	return base + surcharge
}

// Quote prices a policy without admitting it.
func (v *Vault) Quote(coverage uint64, duration time.Duration) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.premium(coverage, duration)
}

// Purchase admits a new Active policy underwritten by agentID. The agent
// must be currently authorized and above the trust floor; coverage must fit
// the exposure budget. The premium is added to pool assets rather than
// segregated, strengthening the pool for all LPs.
func (v *Vault) Purchase(holder string, coverage uint64, duration time.Duration, triggerBps uint64, agentID uint64) (Policy, error) {
	if coverage == 0 {
		return Policy{}, ErrInvalidAmount
	}
	if duration < v.cfg.MinDuration || duration > v.cfg.MaxDuration {
		return Policy{}, ErrInvalidDuration
	}
	if triggerBps == 0 || triggerBps > bpsDenom {
		return Policy{}, ErrInvalidTrigger
	}
	if !v.dir.IsAuthorized(agentID) {
		return Policy{}, ErrAgentNotAuthorized
	}
	if !v.gate.MeetsThreshold(agentID, v.cfg.MinTrustBps) {
		return Policy{}, ErrInsufficientTrustScore
	}
	if v.cfg.SuspendOnBlackSwan && v.risk.BlackSwan() {
		return Policy{}, ErrMarketSuspended
	}

	v.mu.Lock()
	if err := v.admitExposure(coverage); err != nil {
		v.mu.Unlock()
		return Policy{}, err
	}

	prem := v.premium(coverage, duration)
	v.totalAssets += prem
	v.premiumsCollected += prem

	now := v.now()
	p := Policy{
		ID:                  v.nextPolicyID,
		Holder:              holder,
		Coverage:            coverage,
		Premium:             prem,
		CreatedAt:           now.Unix(),
		Expiry:              now.Add(duration).Unix(),
		TriggerThresholdBps: triggerBps,
		Status:              PolicyActive,
		AgentID:             agentID,
	}
	v.nextPolicyID++
	stored := p
	v.policies[p.ID] = &stored
	v.mu.Unlock()

	if v.log != nil {
		v.log.Emit(events.Event{
			Type:     events.PolicyCreated,
			PolicyID: p.ID,
			AgentID:  agentID,
			Actor:    holder,
			Amount:   coverage,
			Detail:   fmt.Sprintf("premium=%d", prem),
		})
	}
	return p, nil
}

// ExpireSweep transitions an Active policy past its expiry to Expired and
// releases its coverage. Expiry is a pure function of time, so anyone may
// sweep; until someone does, totalPolicyCoverage over-states live exposure,
// which is conservative (capital stays reserved, never lost).
func (v *Vault) ExpireSweep(policyID uint64) error {
	v.mu.Lock()
	p, ok := v.policies[policyID]
	if !ok {
		v.mu.Unlock()
		return ErrPolicyNotFound
	}
	if p.Status != PolicyActive {
		v.mu.Unlock()
		return ErrPolicyNotActive
	}
	if v.now().Unix() <= p.Expiry {
		v.mu.Unlock()
		return ErrNotExpired
	}
	p.Status = PolicyExpired
	v.releaseExposure(p.Coverage)
	coverage := p.Coverage
	v.mu.Unlock()

	if v.log != nil {
		v.log.Emit(events.Event{
			Type:     events.PolicyExpired,
			PolicyID: policyID,
			Amount:   coverage,
		})
	}
	return nil
}

// GetPolicy returns a copy of policy policyID.
func (v *Vault) GetPolicy(policyID uint64) (Policy, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.policies[policyID]
	if !ok {
		return Policy{}, false
	}
	return *p, true
}

// ExpirablePolicies returns IDs of Active policies past expiry. The sweep
// worker walks this list.
func (v *Vault) ExpirablePolicies() []uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.now().Unix()
	var ids []uint64
	for id, p := range v.policies {
		if p.Status == PolicyActive && now > p.Expiry {
			ids = append(ids, id)
		}
	}
	return ids
}
