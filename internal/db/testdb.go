package db

import (
	"database/sql"
	"testing"
)

// NewTestDB creates a fresh in-memory state database with the schema applied.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test state database: %v", err)
	}

	if err := EnsureSchema(db); err != nil {
		db.Close()
		t.Fatalf("creating test schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	return db
}
