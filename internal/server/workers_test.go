package server

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/umbral-systems/tailguard/internal/quorum"
)

// freezeClocks pins every component clock to a mutable instant and returns
// an advance func.
func freezeClocks(t *testing.T, srv *Server) func(time.Duration) {
	t.Helper()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	srv.vault.SetClock(clock)
	srv.quorum.SetClock(clock)
	srv.trust.SetClock(clock)
	srv.oracle.SetClock(clock)
	return func(d time.Duration) { now = now.Add(d) }
}

func TestSweepExpired(t *testing.T) {
	srv, _ := setupTestServer(t, nil)
	advance := freezeClocks(t, srv)
	agentID := registerTrustedAgent(t, srv)

	doJSON(t, srv, http.MethodPost, "/api/pool/deposit",
		map[string]any{"owner": "0xlp", "amount": 10000}, false)
	code, _ := doJSON(t, srv, http.MethodPost, "/api/policies", map[string]any{
		"holder": "0xholder", "coverage": 2000, "duration_days": 30,
		"trigger_threshold_bps": 5000, "agent_id": agentID,
	}, false)
	if code != http.StatusCreated {
		t.Fatalf("purchase: status = %d", code)
	}

	if n := srv.sweepExpired(); n != 0 {
		t.Fatalf("swept %d live policies, want 0", n)
	}

	advance(31 * 24 * time.Hour)
	if n := srv.sweepExpired(); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	// Idempotent.
	if n := srv.sweepExpired(); n != 0 {
		t.Fatalf("second sweep: %d, want 0", n)
	}

	code, p := doJSON(t, srv, http.MethodGet, "/api/policies/1", nil, false)
	if code != http.StatusOK || p["status"] != "expired" {
		t.Errorf("policy status = %v, want expired", p["status"])
	}
}

func TestFinalizeLapsed(t *testing.T) {
	srv, _ := setupTestServer(t, nil)
	advance := freezeClocks(t, srv)
	agentID := registerTrustedAgent(t, srv)

	doJSON(t, srv, http.MethodPost, "/api/pool/deposit",
		map[string]any{"owner": "0xlp", "amount": 10000}, false)
	doJSON(t, srv, http.MethodPost, "/api/policies", map[string]any{
		"holder": "0xholder", "coverage": 2000, "duration_days": 30,
		"trigger_threshold_bps": 5000, "agent_id": agentID,
	}, false)
	evidence := base64.StdEncoding.EncodeToString([]byte("proof"))
	code, claim := doJSON(t, srv, http.MethodPost, "/api/claims", map[string]any{
		"policy_id": 1, "claimant": "0xholder", "amount": 2000, "evidence": evidence,
	}, false)
	if code != http.StatusCreated {
		t.Fatalf("submit claim: status = %d", code)
	}
	reqID := uint64(claim["validation_request_id"].(float64))

	// Before the deadline nothing finalizes.
	if n := srv.finalizeLapsed(); n != 0 {
		t.Fatalf("finalized %d before deadline, want 0", n)
	}

	advance(25 * time.Hour)
	if n := srv.finalizeLapsed(); n != 1 {
		t.Fatalf("finalized %d, want 1", n)
	}
	if status, _ := srv.quorum.StatusOf(reqID); status != quorum.StatusExpired {
		t.Errorf("request status = %s, want expired", status)
	}

	// The hung claim now settles as rejected.
	code, settled := doJSON(t, srv, http.MethodPost, "/api/claims/1/settle", nil, false)
	if code != http.StatusOK || settled["status"] != "rejected" {
		t.Errorf("settle: status = %d, claim = %v; want rejected", code, settled)
	}
}

func TestPersistSnapshotAndRestore(t *testing.T) {
	db := setupTestDB(t)
	srv, _ := setupTestServer(t, db)
	agentID := registerTrustedAgent(t, srv)

	doJSON(t, srv, http.MethodPost, "/api/admin/volatility",
		map[string]any{"value_bps": 3000, "source": "test"}, true)
	doJSON(t, srv, http.MethodPost, "/api/pool/deposit",
		map[string]any{"owner": "0xlp", "amount": 10000}, false)
	code, _ := doJSON(t, srv, http.MethodPost, "/api/policies", map[string]any{
		"holder": "0xholder", "coverage": 2000, "duration_days": 30,
		"trigger_threshold_bps": 5000, "agent_id": agentID,
	}, false)
	if code != http.StatusCreated {
		t.Fatalf("purchase: status = %d", code)
	}

	srv.persistSnapshot()

	// A second server booted from the same database sees the same world.
	restored, _ := setupTestServer(t, db)
	if st, ok, err := db.LoadVaultState(); err != nil || !ok {
		t.Fatalf("LoadVaultState: ok=%v err=%v", ok, err)
	} else {
		restored.vault.Restore(st)
	}
	if recs, err := db.LoadTrustRecords(); err != nil {
		t.Fatalf("LoadTrustRecords: %v", err)
	} else {
		restored.trust.Seed(recs)
	}
	if agents, err := db.LoadAgents(); err != nil {
		t.Fatalf("LoadAgents: %v", err)
	} else {
		restored.registry.Seed(agents)
	}

	code, stats := doJSON(t, restored, http.MethodGet, "/api/pool", nil, false)
	if code != http.StatusOK || stats["total_assets"].(float64) != 10076 {
		t.Fatalf("restored total_assets = %v, want 10076", stats["total_assets"])
	}
	code, p := doJSON(t, restored, http.MethodGet, "/api/policies/1", nil, false)
	if code != http.StatusOK || p["status"] != "active" {
		t.Errorf("restored policy = %v, want active", p)
	}
	code, rec := doJSON(t, restored, http.MethodGet, fmt.Sprintf("/api/trust/%d", agentID), nil, false)
	if code != http.StatusOK || rec["overall"].(float64) != 8000 {
		t.Errorf("restored trust = %v, want overall 8000", rec)
	}
}
