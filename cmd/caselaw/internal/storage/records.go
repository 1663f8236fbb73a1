package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	caselaw "github.com/jason-riddle/caselaw-go"
)

// InsertRecord inserts a new record and returns it with its assigned id and creation time.
func (db *DB) InsertRecord(ctx context.Context, rec caselaw.NewRecord) (*caselaw.Record, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO records (text, vector)
		VALUES (?, ?)
	`, rec.Text, string(rec.Vector))
	if err != nil {
		return nil, rollback(tx, fmt.Errorf("failed to insert record: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, rollback(tx, fmt.Errorf("failed to get last insert id: %w", err))
	}

	var createdAt string
	if err := tx.QueryRowContext(ctx, `SELECT created_at FROM records WHERE id = ?`, id).Scan(&createdAt); err != nil {
		return nil, rollback(tx, fmt.Errorf("failed to read created_at: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit insert: %w", err)
	}

	stored := &caselaw.Record{ID: id, Text: rec.Text, Vector: rec.Vector}
	parsed, err := parseTimestamp(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	stored.CreatedAt = caselaw.Timestamp(parsed)
	return stored, nil
}

// ListRecords returns one page of records. Limit 0 means no limit.
func (db *DB) ListRecords(ctx context.Context, opts *caselaw.ListOptions) ([]caselaw.Record, error) {
	cols, err := selectColumns(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	var ordering string
	var limit, offset int
	if opts != nil {
		ordering, limit, offset = opts.Ordering, opts.Limit, opts.Offset
	}
	order, err := orderClause(ordering)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	query := "SELECT " + strings.Join(cols, ", ") + " FROM records ORDER BY " + order
	var args []any
	if limit > 0 || offset > 0 {
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []caselaw.Record
	for rows.Next() {
		var rec caselaw.Record
		var vector, createdAt sql.NullString
		targets := make([]any, len(cols))
		for i, col := range cols {
			switch col {
			case "id":
				targets[i] = &rec.ID
			case "text":
				targets[i] = &rec.Text
			case "vector":
				targets[i] = &vector
			case "created_at":
				targets[i] = &createdAt
			}
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Vector = caselaw.EncodedVector(vector.String)
		if createdAt.Valid {
			parsed, err := parseTimestamp(createdAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse created_at: %w", err)
			}
			rec.CreatedAt = caselaw.Timestamp(parsed)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// ListAllRecords returns every record. Limit and Offset in opts are ignored.
func (db *DB) ListAllRecords(ctx context.Context, opts *caselaw.ListOptions) ([]caselaw.Record, error) {
	all := caselaw.ListOptions{}
	if opts != nil {
		all.Columns = opts.Columns
		all.Ordering = opts.Ordering
	}
	return db.ListRecords(ctx, &all)
}

// DeleteRecords deletes the records with the given ids.
func (db *DB) DeleteRecords(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	if _, err := db.conn.ExecContext(ctx, `DELETE FROM records WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

// DeleteAllRecords removes every record.
func (db *DB) DeleteAllRecords(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("failed to delete all records: %w", err)
	}
	return nil
}

// CountRecords returns the total number of records
func (db *DB) CountRecords(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}
