package vault

import (
	"fmt"

	"github.com/umbral-systems/tailguard/internal/crypto"
	"github.com/umbral-systems/tailguard/internal/events"
	"github.com/umbral-systems/tailguard/internal/quorum"
)

// SubmitClaim opens a claim against policyID and requests independent
// validation from the quorum, tagged with the policy's underwriting agent
// and a digest of the submitted evidence. A per-day circuit breaker bounds
// the worst-case drain rate during a correlated, pool-wide event.
func (v *Vault) SubmitClaim(policyID uint64, claimant string, requestedAmount uint64, evidence []byte) (Claim, error) {
	if requestedAmount == 0 {
		return Claim{}, ErrInvalidAmount
	}

	v.mu.Lock()
	p, ok := v.policies[policyID]
	if !ok {
		v.mu.Unlock()
		return Claim{}, ErrPolicyNotFound
	}
	if claimant != p.Holder {
		v.mu.Unlock()
		return Claim{}, ErrNotPolicyHolder
	}
	if p.Status != PolicyActive {
		v.mu.Unlock()
		return Claim{}, ErrPolicyNotActive
	}
	now := v.now()
	if now.Unix() > p.Expiry {
		v.mu.Unlock()
		return Claim{}, ErrPolicyExpired
	}
	if requestedAmount > p.Coverage {
		v.mu.Unlock()
		return Claim{}, ErrCoverageExceeded
	}
	if !v.limiter.Allow() {
		v.mu.Unlock()
		return Claim{}, ErrClaimLimitReached
	}

	digest := crypto.Digest(evidence)
	reqID, err := v.validator.RequestValidation(
		p.AgentID, quorum.ReExecution, digest,
		v.cfg.ValidationStake, now.Add(v.cfg.ValidationWindow),
	)
	if err != nil {
		v.mu.Unlock()
		return Claim{}, fmt.Errorf("open validation request: %w", err)
	}

	c := Claim{
		ID:                  v.nextClaimID,
		PolicyID:            policyID,
		Claimant:            claimant,
		RequestedAmount:     requestedAmount,
		ValidationRequestID: reqID,
		Status:              ClaimValidating,
		EvidenceDigest:      digest,
		SubmittedAt:         now.Unix(),
	}
	v.nextClaimID++
	stored := c
	v.claims[c.ID] = &stored
	v.mu.Unlock()

	if v.log != nil {
		v.log.Emit(events.Event{
			Type:      events.ClaimSubmitted,
			ClaimID:   c.ID,
			PolicyID:  policyID,
			RequestID: reqID,
			AgentID:   p.AgentID,
			Actor:     claimant,
			Amount:    requestedAmount,
			Detail:    digest,
		})
	}
	return c, nil
}

// Settle drives a claim to its terminal state once its validation request
// has resolved.
//
// Approved requests pay out, but only while the underwriting agent still
// clears the trust floor at settlement time; trust may have decayed since
// purchase. Ledgers are fully updated before the external transfer (the
// classic check-effects-interactions ordering). Rejected and Expired
// requests mark the claim Rejected with no funds moved; an Expired request
// leaves the holder free to resubmit. Settling a terminal claim fails with
// ErrAlreadySettled.
func (v *Vault) Settle(claimID uint64) (Claim, error) {
	v.mu.Lock()
	c, ok := v.claims[claimID]
	if !ok {
		v.mu.Unlock()
		return Claim{}, ErrClaimNotFound
	}
	if c.Status == ClaimPaid || c.Status == ClaimRejected {
		v.mu.Unlock()
		return Claim{}, ErrAlreadySettled
	}

	status, err := v.validator.StatusOf(c.ValidationRequestID)
	if err != nil {
		v.mu.Unlock()
		return Claim{}, fmt.Errorf("validation status: %w", err)
	}

	switch status {
	case quorum.StatusPending, quorum.StatusInProgress:
		v.mu.Unlock()
		return Claim{}, ErrClaimNotValidated

	case quorum.StatusRejected, quorum.StatusExpired:
		c.Status = ClaimRejected
		out := *c
		v.mu.Unlock()
		if v.log != nil {
			v.log.Emit(events.Event{
				Type:      events.ClaimRejected,
				ClaimID:   out.ID,
				PolicyID:  out.PolicyID,
				RequestID: out.ValidationRequestID,
				Actor:     out.Claimant,
				Detail:    string(status),
			})
		}
		return out, nil
	}

	// Approved. The claim is validated regardless of what follows; a failed
	// trust gate leaves it Approved for a later retry, it does not reject.
	c.Status = ClaimApproved

	p, ok := v.policies[c.PolicyID]
	if !ok || p.Status != PolicyActive {
		v.mu.Unlock()
		return Claim{}, ErrPolicyNotActive
	}
	if !v.gate.MeetsThreshold(p.AgentID, v.cfg.MinTrustBps) {
		v.mu.Unlock()
		return Claim{}, ErrInsufficientTrustScore
	}

	v.releaseExposure(p.Coverage)
	if err := v.debit(c.RequestedAmount); err != nil {
		// Insolvent for this payout: revert the release so exposure stays
		// admitted, abort this operation only.
		v.totalCoverage += p.Coverage
		v.mu.Unlock()
		return Claim{}, err
	}
	p.Status = PolicyClaimed
	c.Status = ClaimPaid
	out := *c
	agentID := p.AgentID
	v.mu.Unlock()

	v.payout.Transfer(out.Claimant, out.RequestedAmount)

	if v.log != nil {
		v.log.Emit(events.Event{
			Type:      events.ClaimPaid,
			ClaimID:   out.ID,
			PolicyID:  out.PolicyID,
			RequestID: out.ValidationRequestID,
			AgentID:   agentID,
			Actor:     out.Claimant,
			Amount:    out.RequestedAmount,
		})
	}
	return out, nil
}

// GetClaim returns a copy of claim claimID.
func (v *Vault) GetClaim(claimID uint64) (Claim, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.claims[claimID]
	if !ok {
		return Claim{}, false
	}
	return *c, true
}

// ClaimsRemainingToday reports the unused portion of today's claim budget.
func (v *Vault) ClaimsRemainingToday() int {
	return v.limiter.Remaining()
}
