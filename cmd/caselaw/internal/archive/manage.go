package archive

import (
	"context"
	"fmt"
	"unicode/utf8"

	caselaw "github.com/jason-riddle/caselaw-go"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/dedup"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/storage"
)

// RecordInfo is a stored record without its vector.
type RecordInfo struct {
	ID         int64             `json:"id"`
	CreatedAt  caselaw.Timestamp `json:"created_at"`
	TextLength int               `json:"text_length"`
	Preview    string            `json:"preview"`
}

// Count returns the number of stored records.
func (a *Archive) Count(ctx context.Context) (int, error) {
	n, err := a.store.CountRecords(ctx)
	if err != nil {
		return 0, storeErr("count records", err)
	}
	return n, nil
}

// List returns stored records, newest first.
func (a *Archive) List(ctx context.Context, limit, offset int) ([]RecordInfo, error) {
	records, err := a.store.ListRecords(ctx, &caselaw.ListOptions{
		Columns:  []string{"id", "text", "created_at"},
		Ordering: "created_at.desc,id.desc",
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, storeErr("list records", err)
	}

	infos := make([]RecordInfo, 0, len(records))
	for _, rec := range records {
		infos = append(infos, RecordInfo{
			ID:         rec.ID,
			CreatedAt:  rec.CreatedAt,
			TextLength: utf8.RuneCountInString(rec.Text),
			Preview:    Preview(rec.Text, a.policy.PreviewLength),
		})
	}
	return infos, nil
}

// Delete removes the records with the given ids in batches. It returns the
// number deleted before any failure.
func (a *Archive) Delete(ctx context.Context, ids []int64) (int, error) {
	unlock, err := a.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	deleted := 0
	for _, batch := range dedup.Chunk(ids, a.policy.DeleteBatchSize) {
		if err := a.store.DeleteRecords(ctx, batch); err != nil {
			return deleted, storeErr("delete records", err)
		}
		deleted += len(batch)
	}
	a.logger.Info("Deleted records", "records", deleted)
	return deleted, nil
}

// Reset removes every stored record and, when kept, the failure log.
func (a *Archive) Reset(ctx context.Context) error {
	unlock, err := a.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if r, ok := a.store.(resetter); ok {
		if err := r.Reset(ctx); err != nil {
			return storeErr("reset", err)
		}
		a.logger.Warn("Archive reset")
		return nil
	}

	if err := a.store.DeleteAllRecords(ctx); err != nil {
		return storeErr("delete all records", err)
	}
	if log, ok := a.store.(FailureRecorder); ok {
		if err := log.ClearFailures(ctx); err != nil {
			return storeErr("clear failures", err)
		}
	}
	a.logger.Warn("Archive reset")
	return nil
}

// Failures returns the ingestion failure log, most recent first.
func (a *Archive) Failures(ctx context.Context) ([]storage.Failure, error) {
	log, ok := a.store.(FailureRecorder)
	if !ok {
		return nil, ErrNoFailureLog
	}
	failures, err := log.ListFailures(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list failures: %w", ErrStore, err)
	}
	return failures, nil
}
