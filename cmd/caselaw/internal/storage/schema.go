package storage

import (
	"fmt"
	"strings"
	"time"

	caselaw "github.com/jason-riddle/caselaw-go"
)

// Failure is the latest ingestion failure recorded for a source file.
type Failure struct {
	Source   string    `json:"source"`
	Stage    string    `json:"stage"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// recordColumns lists the selectable columns of the records table in scan order.
var recordColumns = []string{"id", "text", "vector", "created_at"}

// selectColumns validates opts.Columns and returns them, or every column when none are requested.
func selectColumns(opts *caselaw.ListOptions) ([]string, error) {
	if opts == nil || len(opts.Columns) == 0 {
		return recordColumns, nil
	}
	for _, col := range opts.Columns {
		if !isRecordColumn(col) {
			return nil, fmt.Errorf("unknown column %q", col)
		}
	}
	return opts.Columns, nil
}

// orderClause translates a PostgREST ordering ("created_at.asc,id.desc") into SQL.
func orderClause(ordering string) (string, error) {
	if ordering == "" {
		return "id ASC", nil
	}

	var terms []string
	for _, part := range strings.Split(ordering, ",") {
		col, dir, _ := strings.Cut(strings.TrimSpace(part), ".")
		if !isRecordColumn(col) {
			return "", fmt.Errorf("unknown order column %q", col)
		}
		switch dir {
		case "", "asc":
			terms = append(terms, col+" ASC")
		case "desc":
			terms = append(terms, col+" DESC")
		default:
			return "", fmt.Errorf("unknown order direction %q", dir)
		}
	}
	return strings.Join(terms, ", "), nil
}

func isRecordColumn(col string) bool {
	for _, c := range recordColumns {
		if c == col {
			return true
		}
	}
	return false
}
