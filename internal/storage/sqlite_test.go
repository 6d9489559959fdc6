package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/umbral-systems/tailguard/internal/events"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	db, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	db, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file was not created")
	}
}

func TestNewDB_AllTablesExist(t *testing.T) {
	db := testDB(t)

	expected := []string{
		"events", "vault_state", "positions", "policies", "claims",
		"trust_records", "validator_stakes", "validation_requests",
		"agents", "oracle_state",
	}
	for _, table := range expected {
		var name string
		err := db.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestJournal_AppendAndList(t *testing.T) {
	db := testDB(t)

	entries := []events.Event{
		{ID: "a", Type: events.Deposited, Timestamp: 100, Actor: "0xlp", Amount: 5000},
		{ID: "b", Type: events.PolicyCreated, Timestamp: 200, PolicyID: 1, AgentID: 7, Amount: 2000},
		{ID: "c", Type: events.ClaimPaid, Timestamp: 300, PolicyID: 1, ClaimID: 1, Amount: 2000},
	}
	for _, e := range entries {
		if err := db.Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := db.ListEvents(2)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// Newest first.
	if got[0].ID != "c" || got[1].ID != "b" {
		t.Errorf("order = %s, %s; want c, b", got[0].ID, got[1].ID)
	}
	if got[0].Type != events.ClaimPaid || got[0].Amount != 2000 {
		t.Errorf("round trip mangled event: %+v", got[0])
	}
}

func TestJournal_EventsForPolicy(t *testing.T) {
	db := testDB(t)

	db.Append(events.Event{ID: "a", Type: events.PolicyCreated, Timestamp: 100, PolicyID: 1})
	db.Append(events.Event{ID: "b", Type: events.Deposited, Timestamp: 150, Actor: "0xlp"})
	db.Append(events.Event{ID: "c", Type: events.ClaimSubmitted, Timestamp: 200, PolicyID: 1, ClaimID: 1})
	db.Append(events.Event{ID: "d", Type: events.PolicyCreated, Timestamp: 250, PolicyID: 2})

	got, err := db.EventsForPolicy(1)
	if err != nil {
		t.Fatalf("EventsForPolicy: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// Oldest first.
	if got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("order = %s, %s; want a, c", got[0].ID, got[1].ID)
	}
}

func TestJournal_DuplicateIDRejected(t *testing.T) {
	db := testDB(t)

	e := events.Event{ID: "dup", Type: events.Deposited, Timestamp: 1}
	if err := db.Append(e); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := db.Append(e); err == nil {
		t.Fatal("duplicate event ID must be rejected")
	}
}
