// Package storage is a local SQLite record store with the same operations as
// the hosted table, plus a log of ingestion failures.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	caselaw "github.com/jason-riddle/caselaw-go"
	_ "modernc.org/sqlite"
)

// initialSchema contains the SQL for creating tables.
// Timestamps are TEXT so the driver hands back the raw value.
const initialSchema = `-- Records hold decision text and its encoded embedding
CREATE TABLE IF NOT EXISTS records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    text TEXT NOT NULL,
    vector TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
);

-- Failures are tracked per source file
CREATE TABLE IF NOT EXISTS ingest_failures (
    source TEXT PRIMARY KEY,
    stage TEXT NOT NULL,
    error TEXT NOT NULL,
    failed_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
);

-- Sweeps read records in insertion order
CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at, id);
`

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and runs migrations
func NewDB(dbPath string) (*DB, error) {
	// Ensure the data directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY between
	// the corpus scan and the insert that follows it.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}

	if err := db.runMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// runMigrations executes the SQL schema
func (db *DB) runMigrations() error {
	if _, err := db.conn.Exec(initialSchema); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// rollback aborts tx and folds any rollback error into cause.
func rollback(tx *sql.Tx, cause error) error {
	if rollbackErr := tx.Rollback(); rollbackErr != nil {
		return fmt.Errorf("%v (rollback error: %w)", cause, rollbackErr)
	}
	return cause
}

// parseTimestamp parses SQLite timestamp strings.
func parseTimestamp(ts string) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04:05.999",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.999999999 -0700 MST",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t, nil
		}
	}

	return caselaw.ParseTimestamp(ts)
}
