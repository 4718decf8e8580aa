package db

import (
	"database/sql"
	"fmt"
)

// schema is the full local state schema. Everything is a keyed blob: the
// session lives under a fixed key and counters are stored as text.
const schema = `
CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// EnsureSchema creates the state tables if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
