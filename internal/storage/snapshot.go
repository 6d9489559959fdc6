package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/umbral-systems/tailguard/internal/identity"
	"github.com/umbral-systems/tailguard/internal/oracle"
	"github.com/umbral-systems/tailguard/internal/quorum"
	"github.com/umbral-systems/tailguard/internal/trust"
	"github.com/umbral-systems/tailguard/internal/vault"
)

// --- Vault state ---

// SaveVaultState replaces the persisted vault snapshot, positions, policies,
// and claims in a single transaction.
func (d *DB) SaveVaultState(st vault.State) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("save vault state: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO vault_state (id, total_assets, total_shares, total_coverage, premiums_collected, claims_paid, next_policy_id, next_claim_id)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   total_assets=excluded.total_assets, total_shares=excluded.total_shares,
		   total_coverage=excluded.total_coverage, premiums_collected=excluded.premiums_collected,
		   claims_paid=excluded.claims_paid, next_policy_id=excluded.next_policy_id,
		   next_claim_id=excluded.next_claim_id`,
		st.TotalAssets, st.TotalShares, st.TotalPolicyCoverage,
		st.PremiumsCollected, st.ClaimsPaid, st.NextPolicyID, st.NextClaimID,
	); err != nil {
		return fmt.Errorf("save vault state: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM positions`); err != nil {
		return fmt.Errorf("clear positions: %w", err)
	}
	for _, p := range st.Positions {
		if _, err := tx.Exec(
			`INSERT INTO positions (owner, shares, deposited_at) VALUES (?, ?, ?)`,
			p.Owner, p.Shares, p.DepositedAt,
		); err != nil {
			return fmt.Errorf("save position: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM policies`); err != nil {
		return fmt.Errorf("clear policies: %w", err)
	}
	for _, p := range st.Policies {
		if _, err := tx.Exec(
			`INSERT INTO policies (id, holder, coverage, premium, created_at, expiry, trigger_threshold_bps, status, agent_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Holder, p.Coverage, p.Premium, p.CreatedAt, p.Expiry,
			p.TriggerThresholdBps, string(p.Status), p.AgentID,
		); err != nil {
			return fmt.Errorf("save policy: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM claims`); err != nil {
		return fmt.Errorf("clear claims: %w", err)
	}
	for _, c := range st.Claims {
		if _, err := tx.Exec(
			`INSERT INTO claims (id, policy_id, claimant, requested_amount, validation_request_id, status, evidence_digest, submitted_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.PolicyID, c.Claimant, c.RequestedAmount, c.ValidationRequestID,
			string(c.Status), c.EvidenceDigest, c.SubmittedAt,
		); err != nil {
			return fmt.Errorf("save claim: %w", err)
		}
	}

	return tx.Commit()
}

// LoadVaultState reads the persisted vault snapshot. Returns ok=false when no
// snapshot has ever been saved.
func (d *DB) LoadVaultState() (vault.State, bool, error) {
	var st vault.State
	err := d.db.QueryRow(
		`SELECT total_assets, total_shares, total_coverage, premiums_collected, claims_paid, next_policy_id, next_claim_id
		 FROM vault_state WHERE id = 1`,
	).Scan(&st.TotalAssets, &st.TotalShares, &st.TotalPolicyCoverage,
		&st.PremiumsCollected, &st.ClaimsPaid, &st.NextPolicyID, &st.NextClaimID)
	if errors.Is(err, sql.ErrNoRows) {
		return vault.State{}, false, nil
	}
	if err != nil {
		return vault.State{}, false, fmt.Errorf("load vault state: %w", err)
	}

	rows, err := d.db.Query(`SELECT owner, shares, deposited_at FROM positions`)
	if err != nil {
		return vault.State{}, false, fmt.Errorf("load positions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p vault.Position
		if err := rows.Scan(&p.Owner, &p.Shares, &p.DepositedAt); err != nil {
			return vault.State{}, false, fmt.Errorf("scan position: %w", err)
		}
		st.Positions = append(st.Positions, p)
	}
	if err := rows.Err(); err != nil {
		return vault.State{}, false, err
	}

	prows, err := d.db.Query(
		`SELECT id, holder, coverage, premium, created_at, expiry, trigger_threshold_bps, status, agent_id FROM policies`,
	)
	if err != nil {
		return vault.State{}, false, fmt.Errorf("load policies: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var p vault.Policy
		var status string
		if err := prows.Scan(&p.ID, &p.Holder, &p.Coverage, &p.Premium, &p.CreatedAt,
			&p.Expiry, &p.TriggerThresholdBps, &status, &p.AgentID); err != nil {
			return vault.State{}, false, fmt.Errorf("scan policy: %w", err)
		}
		p.Status = vault.PolicyStatus(status)
		st.Policies = append(st.Policies, p)
	}
	if err := prows.Err(); err != nil {
		return vault.State{}, false, err
	}

	crows, err := d.db.Query(
		`SELECT id, policy_id, claimant, requested_amount, validation_request_id, status, evidence_digest, submitted_at FROM claims`,
	)
	if err != nil {
		return vault.State{}, false, fmt.Errorf("load claims: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var c vault.Claim
		var status string
		if err := crows.Scan(&c.ID, &c.PolicyID, &c.Claimant, &c.RequestedAmount,
			&c.ValidationRequestID, &status, &c.EvidenceDigest, &c.SubmittedAt); err != nil {
			return vault.State{}, false, fmt.Errorf("scan claim: %w", err)
		}
		c.Status = vault.ClaimStatus(status)
		st.Claims = append(st.Claims, c)
	}
	if err := crows.Err(); err != nil {
		return vault.State{}, false, err
	}

	return st, true, nil
}

// --- Trust records ---

// SaveTrustRecords replaces all persisted trust records.
func (d *DB) SaveTrustRecords(recs []trust.Record) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("save trust records: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM trust_records`); err != nil {
		return fmt.Errorf("clear trust records: %w", err)
	}
	for _, r := range recs {
		history, err := json.Marshal(r.History)
		if err != nil {
			return fmt.Errorf("marshal trust history: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO trust_records (agent_id, claim_accuracy, capital_preservation, responsiveness, overall, last_updated, update_count, history)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.AgentID, r.ClaimAccuracy, r.CapitalPreservation, r.Responsiveness,
			r.Overall, r.LastUpdated, r.UpdateCount, string(history),
		); err != nil {
			return fmt.Errorf("save trust record: %w", err)
		}
	}
	return tx.Commit()
}

// LoadTrustRecords reads all persisted trust records.
func (d *DB) LoadTrustRecords() ([]trust.Record, error) {
	rows, err := d.db.Query(
		`SELECT agent_id, claim_accuracy, capital_preservation, responsiveness, overall, last_updated, update_count, history
		 FROM trust_records`,
	)
	if err != nil {
		return nil, fmt.Errorf("load trust records: %w", err)
	}
	defer rows.Close()

	var recs []trust.Record
	for rows.Next() {
		var r trust.Record
		var history string
		if err := rows.Scan(&r.AgentID, &r.ClaimAccuracy, &r.CapitalPreservation,
			&r.Responsiveness, &r.Overall, &r.LastUpdated, &r.UpdateCount, &history); err != nil {
			return nil, fmt.Errorf("scan trust record: %w", err)
		}
		if err := json.Unmarshal([]byte(history), &r.History); err != nil {
			return nil, fmt.Errorf("unmarshal trust history: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// --- Validation quorum ---

// SaveQuorum replaces all persisted validation requests and validator stakes.
func (d *DB) SaveQuorum(reqs []quorum.Request, stakes map[string]uint64) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("save quorum: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM validation_requests`); err != nil {
		return fmt.Errorf("clear validation requests: %w", err)
	}
	for _, r := range reqs {
		votes, err := json.Marshal(r.Votes)
		if err != nil {
			return fmt.Errorf("marshal votes: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO validation_requests (id, subject_agent, method, task_data, required_stake, deadline, threshold, status, approvals, rejections, created_at, votes)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.SubjectAgent, string(r.Method), r.TaskData, r.RequiredStake,
			r.Deadline, r.Threshold, string(r.Status), r.Approvals, r.Rejections,
			r.CreatedAt, string(votes),
		); err != nil {
			return fmt.Errorf("save validation request: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM validator_stakes`); err != nil {
		return fmt.Errorf("clear validator stakes: %w", err)
	}
	for v, amount := range stakes {
		if _, err := tx.Exec(
			`INSERT INTO validator_stakes (validator, amount) VALUES (?, ?)`, v, amount,
		); err != nil {
			return fmt.Errorf("save validator stake: %w", err)
		}
	}
	return tx.Commit()
}

// LoadQuorum reads all persisted validation requests and validator stakes.
func (d *DB) LoadQuorum() ([]quorum.Request, map[string]uint64, error) {
	rows, err := d.db.Query(
		`SELECT id, subject_agent, method, task_data, required_stake, deadline, threshold, status, approvals, rejections, created_at, votes
		 FROM validation_requests`,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("load validation requests: %w", err)
	}
	defer rows.Close()

	var reqs []quorum.Request
	for rows.Next() {
		var r quorum.Request
		var method, status, votes string
		if err := rows.Scan(&r.ID, &r.SubjectAgent, &method, &r.TaskData,
			&r.RequiredStake, &r.Deadline, &r.Threshold, &status,
			&r.Approvals, &r.Rejections, &r.CreatedAt, &votes); err != nil {
			return nil, nil, fmt.Errorf("scan validation request: %w", err)
		}
		r.Method = quorum.Method(method)
		r.Status = quorum.Status(status)
		if err := json.Unmarshal([]byte(votes), &r.Votes); err != nil {
			return nil, nil, fmt.Errorf("unmarshal votes: %w", err)
		}
		reqs = append(reqs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	srows, err := d.db.Query(`SELECT validator, amount FROM validator_stakes`)
	if err != nil {
		return nil, nil, fmt.Errorf("load validator stakes: %w", err)
	}
	defer srows.Close()

	stakes := make(map[string]uint64)
	for srows.Next() {
		var v string
		var amount uint64
		if err := srows.Scan(&v, &amount); err != nil {
			return nil, nil, fmt.Errorf("scan validator stake: %w", err)
		}
		stakes[v] = amount
	}
	return reqs, stakes, srows.Err()
}

// --- Agent directory ---

// SaveAgents replaces all persisted agent identities.
func (d *DB) SaveAgents(agents []identity.Agent) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("save agents: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM agents`); err != nil {
		return fmt.Errorf("clear agents: %w", err)
	}
	for _, a := range agents {
		if _, err := tx.Exec(
			`INSERT INTO agents (id, wallet, uri, authorized, registered_at) VALUES (?, ?, ?, ?, ?)`,
			a.ID, a.Wallet, a.URI, boolToInt(a.Authorized), a.RegisteredAt,
		); err != nil {
			return fmt.Errorf("save agent: %w", err)
		}
	}
	return tx.Commit()
}

// LoadAgents reads all persisted agent identities.
func (d *DB) LoadAgents() ([]identity.Agent, error) {
	rows, err := d.db.Query(`SELECT id, wallet, uri, authorized, registered_at FROM agents`)
	if err != nil {
		return nil, fmt.Errorf("load agents: %w", err)
	}
	defer rows.Close()

	var agents []identity.Agent
	for rows.Next() {
		var a identity.Agent
		var authorized int
		if err := rows.Scan(&a.ID, &a.Wallet, &a.URI, &authorized, &a.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		a.Authorized = authorized != 0
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// --- Oracle reading ---

// SaveOracleReading persists the latest volatility reading.
func (d *DB) SaveOracleReading(r oracle.Reading) error {
	_, err := d.db.Exec(
		`INSERT INTO oracle_state (id, value_bps, regime, source, updated_at)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   value_bps=excluded.value_bps, regime=excluded.regime,
		   source=excluded.source, updated_at=excluded.updated_at`,
		r.ValueBps, string(r.Regime), r.Source, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save oracle reading: %w", err)
	}
	return nil
}

// LoadOracleReading reads the persisted volatility reading. Returns ok=false
// when none has been saved.
func (d *DB) LoadOracleReading() (oracle.Reading, bool, error) {
	var r oracle.Reading
	var regime string
	err := d.db.QueryRow(
		`SELECT value_bps, regime, source, updated_at FROM oracle_state WHERE id = 1`,
	).Scan(&r.ValueBps, &regime, &r.Source, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return oracle.Reading{}, false, nil
	}
	if err != nil {
		return oracle.Reading{}, false, fmt.Errorf("load oracle reading: %w", err)
	}
	r.Regime = oracle.Regime(regime)
	return r, true, nil
}
