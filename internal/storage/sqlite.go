package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection to a SQLite database.
type DB struct {
	db *sql.DB
}

// NewDB opens (or creates) a SQLite database at path and runs schema migrations.
func NewDB(path string) (*DB, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	// Enable foreign keys.
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	d := &DB{db: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// migrate creates all required tables if they do not already exist.
//
// State tables (vault_state, positions, policies, claims, trust_records,
// validator_stakes, validation_requests, agents, oracle_state) hold the latest
// snapshot and are rewritten wholesale on save. The events table is an
// append-only journal.
func (d *DB) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    agent_id INTEGER DEFAULT 0,
    policy_id INTEGER DEFAULT 0,
    claim_id INTEGER DEFAULT 0,
    request_id INTEGER DEFAULT 0,
    actor TEXT,
    amount INTEGER DEFAULT 0,
    detail TEXT
);

CREATE TABLE IF NOT EXISTS vault_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    total_assets INTEGER NOT NULL,
    total_shares INTEGER NOT NULL,
    total_coverage INTEGER NOT NULL,
    premiums_collected INTEGER NOT NULL,
    claims_paid INTEGER NOT NULL,
    next_policy_id INTEGER NOT NULL,
    next_claim_id INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
    owner TEXT PRIMARY KEY,
    shares INTEGER NOT NULL,
    deposited_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS policies (
    id INTEGER PRIMARY KEY,
    holder TEXT NOT NULL,
    coverage INTEGER NOT NULL,
    premium INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    expiry INTEGER NOT NULL,
    trigger_threshold_bps INTEGER NOT NULL,
    status TEXT NOT NULL,
    agent_id INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS claims (
    id INTEGER PRIMARY KEY,
    policy_id INTEGER NOT NULL,
    claimant TEXT NOT NULL,
    requested_amount INTEGER NOT NULL,
    validation_request_id INTEGER NOT NULL,
    status TEXT NOT NULL,
    evidence_digest TEXT,
    submitted_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trust_records (
    agent_id INTEGER PRIMARY KEY,
    claim_accuracy INTEGER NOT NULL,
    capital_preservation INTEGER NOT NULL,
    responsiveness INTEGER NOT NULL,
    overall INTEGER NOT NULL,
    last_updated INTEGER NOT NULL,
    update_count INTEGER NOT NULL,
    history TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS validator_stakes (
    validator TEXT PRIMARY KEY,
    amount INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS validation_requests (
    id INTEGER PRIMARY KEY,
    subject_agent INTEGER NOT NULL,
    method TEXT NOT NULL,
    task_data TEXT,
    required_stake INTEGER NOT NULL,
    deadline INTEGER NOT NULL,
    threshold INTEGER NOT NULL,
    status TEXT NOT NULL,
    approvals INTEGER NOT NULL,
    rejections INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    votes TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
    id INTEGER PRIMARY KEY,
    wallet TEXT NOT NULL,
    uri TEXT,
    authorized INTEGER DEFAULT 1,
    registered_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS oracle_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    value_bps INTEGER NOT NULL,
    regime TEXT NOT NULL,
    source TEXT,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
CREATE INDEX IF NOT EXISTS idx_policies_status ON policies(status);
CREATE INDEX IF NOT EXISTS idx_claims_policy ON claims(policy_id);
CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status);`
	_, err := d.db.Exec(schema)
	return err
}

// boolToInt converts a bool to an integer (0 or 1) for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
