// Database schema migration management. Migrations are embedded in the
// binary; the engine ships inside a desktop/mobile shell and cannot rely on
// a migrations directory existing on the device.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// migration is a single versioned schema step.
type migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered schema history. Append only; never edit an
// applied migration's SQL (the checksum recorded at apply time would no
// longer match).
var migrations = []migration{
	{
		Version:     1,
		Description: "pending_entries_queue",
		SQL: `
CREATE TABLE IF NOT EXISTS pending_entries (
	id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL CHECK(created_at > 0),
	payload TEXT NOT NULL,
	media TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL CHECK(status IN ('pending','syncing','error')),
	error_message TEXT NOT NULL DEFAULT '',
	retry_count INTEGER NOT NULL DEFAULT 0 CHECK(retry_count >= 0)
);
CREATE INDEX IF NOT EXISTS idx_pending_entries_created_at ON pending_entries(created_at);
CREATE INDEX IF NOT EXISTS idx_pending_entries_status ON pending_entries(status);
`,
	},
	{
		Version:     2,
		Description: "remote_config",
		SQL: `
CREATE TABLE IF NOT EXISTS remote_config (
	id INTEGER PRIMARY KEY CHECK(id = 1),
	endpoint TEXT NOT NULL,
	token_encrypted TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`,
	},
}

// Migrator handles database schema migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0),
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the current schema version.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	current, err := m.CurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, mig := range migrations {
		if mig.Version <= current {
			continue
		}
		if err := m.apply(mig); err != nil {
			return fmt.Errorf("failed to apply migration V%d: %w", mig.Version, err)
		}
	}

	return nil
}

// apply runs a single migration inside a transaction.
func (m *Migrator) apply(mig migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(mig.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	hash := sha256.Sum256([]byte(mig.SQL))
	checksum := hex.EncodeToString(hash[:])

	query := `INSERT INTO schema_migrations (version, applied_at, description, checksum)
			  VALUES (?, ?, ?, ?)`
	if _, err := tx.Exec(query, mig.Version, time.Now().Unix(), mig.Description, checksum); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}
