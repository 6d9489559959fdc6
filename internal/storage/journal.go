package storage

import (
	"fmt"

	"github.com/umbral-systems/tailguard/internal/events"
)

// Append writes one event to the journal. DB satisfies events.Sink.
func (d *DB) Append(e events.Event) error {
	_, err := d.db.Exec(
		`INSERT INTO events (id, type, timestamp, agent_id, policy_id, claim_id, request_id, actor, amount, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.Timestamp, e.AgentID, e.PolicyID, e.ClaimID, e.RequestID,
		e.Actor, e.Amount, e.Detail,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events, newest first. limit <= 0 means
// no limit.
func (d *DB) ListEvents(limit int) ([]events.Event, error) {
	q := `SELECT id, type, timestamp, agent_id, policy_id, claim_id, request_id, actor, amount, detail
	      FROM events ORDER BY timestamp DESC, id DESC`
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := d.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var e events.Event
		var typ string
		if err := rows.Scan(&e.ID, &typ, &e.Timestamp, &e.AgentID, &e.PolicyID,
			&e.ClaimID, &e.RequestID, &e.Actor, &e.Amount, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = events.Type(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

// EventsForPolicy returns the journal entries touching one policy, oldest
// first, so a policy's full lifecycle reads top to bottom.
func (d *DB) EventsForPolicy(policyID uint64) ([]events.Event, error) {
	rows, err := d.db.Query(
		`SELECT id, type, timestamp, agent_id, policy_id, claim_id, request_id, actor, amount, detail
		 FROM events WHERE policy_id = ? ORDER BY timestamp ASC, id ASC`, policyID,
	)
	if err != nil {
		return nil, fmt.Errorf("events for policy: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var e events.Event
		var typ string
		if err := rows.Scan(&e.ID, &typ, &e.Timestamp, &e.AgentID, &e.PolicyID,
			&e.ClaimID, &e.RequestID, &e.Actor, &e.Amount, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = events.Type(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
