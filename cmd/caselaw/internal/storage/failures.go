package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// RecordFailure stores the latest error for a source file.
func (db *DB) RecordFailure(ctx context.Context, source, stage string, err error) error {
	if err == nil {
		return nil
	}
	_, execErr := db.conn.ExecContext(ctx, `
		INSERT INTO ingest_failures (source, stage, error)
		VALUES (?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			stage = excluded.stage,
			error = excluded.error,
			failed_at = strftime('%Y-%m-%d %H:%M:%f', 'now')
	`, source, stage, err.Error())
	if execErr != nil {
		return fmt.Errorf("failed to record ingest failure: %w", execErr)
	}
	return nil
}

// ClearFailure removes any recorded failure for a source file.
func (db *DB) ClearFailure(ctx context.Context, source string) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM ingest_failures WHERE source = ?`, source)
	if err != nil {
		return fmt.Errorf("failed to clear ingest failure: %w", err)
	}
	return nil
}

// ClearFailures removes every recorded failure.
func (db *DB) ClearFailures(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM ingest_failures`); err != nil {
		return fmt.Errorf("failed to clear ingest failures: %w", err)
	}
	return nil
}

// GetFailure returns the failure for a source file, or nil if none is recorded.
func (db *DB) GetFailure(ctx context.Context, source string) (*Failure, error) {
	var failure Failure
	var failedAt string
	err := db.conn.QueryRowContext(ctx, `
		SELECT source, stage, error, failed_at
		FROM ingest_failures
		WHERE source = ?
	`, source).Scan(&failure.Source, &failure.Stage, &failure.Error, &failedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ingest failure: %w", err)
	}
	parsed, err := parseTimestamp(failedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ingest_failures.failed_at: %w", err)
	}
	failure.FailedAt = parsed
	return &failure, nil
}

// ListFailures returns all recorded failures, most recent first.
func (db *DB) ListFailures(ctx context.Context) ([]Failure, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT source, stage, error, failed_at
		FROM ingest_failures
		ORDER BY failed_at DESC, source
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingest failures: %w", err)
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var failure Failure
		var failedAt string
		if err := rows.Scan(&failure.Source, &failure.Stage, &failure.Error, &failedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ingest failure: %w", err)
		}
		parsed, err := parseTimestamp(failedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ingest_failures.failed_at: %w", err)
		}
		failure.FailedAt = parsed
		failures = append(failures, failure)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ingest failures: %w", err)
	}

	return failures, nil
}

// Reset removes every record and failure in one transaction.
func (db *DB) Reset(ctx context.Context) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return rollback(tx, fmt.Errorf("failed to clear records: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ingest_failures`); err != nil {
		return rollback(tx, fmt.Errorf("failed to clear ingest failures: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset transaction: %w", err)
	}
	return nil
}
