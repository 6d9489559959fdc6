package vault

import (
	"errors"
	"testing"
	"time"

	"github.com/umbral-systems/tailguard/internal/quorum"
)

// purchase sets up the standard funded pool and a live policy:
// 10000 deposited, coverage 2000 for 30 days, premium 76.
func purchase(t *testing.T, h *harness) Policy {
	t.Helper()
	if _, err := h.v.Deposit("0xlp", 10_000); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	p, err := h.v.Purchase("0xholder", 2_000, 30*24*time.Hour, 5000, 1)
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	return p
}

func TestClaimLifecycle_ApprovedAndPaid(t *testing.T) {
	h := newHarness(t)
	p := purchase(t, h)

	c, err := h.v.SubmitClaim(p.ID, "0xholder", 2_000, []byte("price feed proof"))
	if err != nil {
		t.Fatalf("SubmitClaim: %v", err)
	}
	if c.Status != ClaimValidating {
		t.Fatalf("status = %s, want validating", c.Status)
	}
	if c.ValidationRequestID == 0 {
		t.Fatal("claim must link a validation request")
	}

	// Settling before quorum resolves is a poll-again condition.
	if _, err := h.v.Settle(c.ID); !errors.Is(err, ErrClaimNotValidated) {
		t.Fatalf("premature settle: err = %v, want ErrClaimNotValidated", err)
	}

	// 2-of-3 validators approve; the request auto-resolves.
	h.approveClaim(t, c)

	settled, err := h.v.Settle(c.ID)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if settled.Status != ClaimPaid {
		t.Errorf("status = %s, want paid", settled.Status)
	}
	if got := h.sink.BalanceOf("0xholder"); got != 2_000 {
		t.Errorf("claimant received %d, want 2000", got)
	}

	st := h.v.Stats()
	if st.TotalPolicyCoverage != 0 {
		t.Errorf("coverage = %d, want 0 after settlement", st.TotalPolicyCoverage)
	}
	if st.TotalAssets != 10_076-2_000 {
		t.Errorf("assets = %d, want 8076", st.TotalAssets)
	}
	if got, _ := h.v.GetPolicy(p.ID); got.Status != PolicyClaimed {
		t.Errorf("policy status = %s, want claimed", got.Status)
	}
	checkInvariants(t, h.v)
}

func TestSettle_TerminalClaimFails(t *testing.T) {
	h := newHarness(t)
	p := purchase(t, h)
	c, _ := h.v.SubmitClaim(p.ID, "0xholder", 2_000, []byte("evidence"))
	h.approveClaim(t, c)

	if _, err := h.v.Settle(c.ID); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if _, err := h.v.Settle(c.ID); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("second settle: err = %v, want ErrAlreadySettled", err)
	}
	// Exactly one payout.
	if got := h.sink.BalanceOf("0xholder"); got != 2_000 {
		t.Errorf("claimant received %d, want 2000", got)
	}
}

func TestSubmitClaim_Validation(t *testing.T) {
	h := newHarness(t)
	p := purchase(t, h)

	cases := []struct {
		name     string
		policyID uint64
		claimant string
		amount   uint64
		want     error
	}{
		{"zero amount", p.ID, "0xholder", 0, ErrInvalidAmount},
		{"unknown policy", 99, "0xholder", 100, ErrPolicyNotFound},
		{"non-holder claimant", p.ID, "0xmallory", 100, ErrNotPolicyHolder},
		{"amount above coverage", p.ID, "0xholder", 2_001, ErrCoverageExceeded},
	}
	for _, tc := range cases {
		if _, err := h.v.SubmitClaim(tc.policyID, tc.claimant, tc.amount, nil); !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestSubmitClaim_PastExpiry(t *testing.T) {
	h := newHarness(t)
	p := purchase(t, h)

	h.advance(31 * 24 * time.Hour)
	if _, err := h.v.SubmitClaim(p.ID, "0xholder", 100, nil); !errors.Is(err, ErrPolicyExpired) {
		t.Fatalf("err = %v, want ErrPolicyExpired", err)
	}
}

func TestSubmitClaim_DailyCircuitBreaker(t *testing.T) {
	h := newHarness(t)
	h.v.Deposit("0xlp", 1_000_000)

	limit := DefaultConfig().DailyClaimCap
	for i := 0; i < limit; i++ {
		p, err := h.v.Purchase("0xholder", 1_000, 30*24*time.Hour, 5000, 1)
		if err != nil {
			t.Fatalf("Purchase %d: %v", i, err)
		}
		if _, err := h.v.SubmitClaim(p.ID, "0xholder", 1_000, nil); err != nil {
			t.Fatalf("SubmitClaim %d: %v", i, err)
		}
	}

	p, _ := h.v.Purchase("0xholder", 1_000, 30*24*time.Hour, 5000, 1)
	if _, err := h.v.SubmitClaim(p.ID, "0xholder", 1_000, nil); !errors.Is(err, ErrClaimLimitReached) {
		t.Fatalf("over cap: err = %v, want ErrClaimLimitReached", err)
	}

	// The budget resets on the next calendar day.
	h.advance(24 * time.Hour)
	if _, err := h.v.SubmitClaim(p.ID, "0xholder", 1_000, nil); err != nil {
		t.Fatalf("next day: %v", err)
	}
}

func TestSettle_TrustRecheckedAtSettlement(t *testing.T) {
	h := newHarness(t)
	p := purchase(t, h)
	c, _ := h.v.SubmitClaim(p.ID, "0xholder", 2_000, []byte("evidence"))
	h.approveClaim(t, c)

	// Trust decayed below the floor between purchase and settlement.
	h.gate[1] = 5_000
	if _, err := h.v.Settle(c.ID); !errors.Is(err, ErrInsufficientTrustScore) {
		t.Fatalf("err = %v, want ErrInsufficientTrustScore", err)
	}
	if got := h.sink.BalanceOf("0xholder"); got != 0 {
		t.Errorf("no funds may move on a failed trust gate, got %d", got)
	}

	// The claim stays Approved; settlement succeeds once trust recovers.
	h.gate[1] = 8_000
	settled, err := h.v.Settle(c.ID)
	if err != nil {
		t.Fatalf("Settle after recovery: %v", err)
	}
	if settled.Status != ClaimPaid {
		t.Errorf("status = %s, want paid", settled.Status)
	}
}

func TestSettle_RejectedQuorum(t *testing.T) {
	h := newHarness(t)
	p := purchase(t, h)
	c, _ := h.v.SubmitClaim(p.ID, "0xholder", 2_000, []byte("evidence"))

	h.q.RegisterStake("v1", 1000)
	h.q.RegisterStake("v2", 1000)
	h.q.SubmitVote(c.ValidationRequestID, "v1", false, nil)
	h.q.SubmitVote(c.ValidationRequestID, "v2", false, nil)

	settled, err := h.v.Settle(c.ID)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if settled.Status != ClaimRejected {
		t.Errorf("status = %s, want rejected", settled.Status)
	}
	if got := h.sink.BalanceOf("0xholder"); got != 0 {
		t.Errorf("no funds move on rejection, got %d", got)
	}
	// The policy survives a rejected claim.
	if got, _ := h.v.GetPolicy(p.ID); got.Status != PolicyActive {
		t.Errorf("policy status = %s, want active", got.Status)
	}
	if st := h.v.Stats(); st.TotalPolicyCoverage != 2_000 {
		t.Errorf("coverage = %d, want 2000 still admitted", st.TotalPolicyCoverage)
	}
}

func TestSettle_ExpiredQuorumRejectsClaimOnly(t *testing.T) {
	h := newHarness(t)
	p := purchase(t, h)
	c, _ := h.v.SubmitClaim(p.ID, "0xholder", 2_000, []byte("evidence"))

	// Tie, then deadline lapses: the request expires rather than rejects.
	h.q.RegisterStake("v1", 1000)
	h.q.RegisterStake("v2", 1000)
	h.q.SubmitVote(c.ValidationRequestID, "v1", true, nil)
	h.q.SubmitVote(c.ValidationRequestID, "v2", false, nil)
	h.advance(25 * time.Hour)
	if err := h.q.FinalizeExpired(c.ValidationRequestID); err != nil {
		t.Fatalf("FinalizeExpired: %v", err)
	}

	settled, err := h.v.Settle(c.ID)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if settled.Status != ClaimRejected {
		t.Errorf("status = %s, want rejected", settled.Status)
	}

	// The policy is still Active: the holder may resubmit a fresh claim.
	if _, err := h.v.SubmitClaim(p.ID, "0xholder", 2_000, []byte("fresh evidence")); err != nil {
		t.Fatalf("resubmit after expiry: %v", err)
	}
}

func TestClaimTerminalExclusivity(t *testing.T) {
	h := newHarness(t)
	p := purchase(t, h)
	c, _ := h.v.SubmitClaim(p.ID, "0xholder", 2_000, []byte("evidence"))
	h.approveClaim(t, c)

	if _, err := h.v.Settle(c.ID); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	got, _ := h.v.GetClaim(c.ID)
	if got.Status != ClaimPaid {
		t.Fatalf("status = %s, want paid", got.Status)
	}
	// A paid claim can never become rejected.
	if _, err := h.v.Settle(c.ID); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("err = %v, want ErrAlreadySettled", err)
	}
	if got, _ := h.v.GetClaim(c.ID); got.Status != ClaimPaid {
		t.Errorf("status changed to %s after failed re-settle", got.Status)
	}
}

func TestSubmitClaim_LinksQuorumSubjectToUnderwriter(t *testing.T) {
	h := newHarness(t)
	p := purchase(t, h)
	c, _ := h.v.SubmitClaim(p.ID, "0xholder", 500, []byte("evidence"))

	req, ok := h.q.Get(c.ValidationRequestID)
	if !ok {
		t.Fatal("validation request not found")
	}
	if req.SubjectAgent != p.AgentID {
		t.Errorf("subject agent = %d, want underwriter %d", req.SubjectAgent, p.AgentID)
	}
	if req.Method != quorum.ReExecution {
		t.Errorf("method = %s, want re_execution", req.Method)
	}
	if req.TaskData != c.EvidenceDigest {
		t.Error("task data must carry the claim's evidence digest")
	}
}
