package archive

import (
	"context"
	"fmt"
	"sort"

	caselaw "github.com/jason-riddle/caselaw-go"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/dedup"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/metrics"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/vector"
)

// SweepSummary describes the result of a duplicate sweep.
type SweepSummary struct {
	Scanned      int     `json:"scanned"`
	Skipped      int     `json:"skipped"`
	Duplicates   int     `json:"duplicates"`
	Deleted      int     `json:"deleted"`
	DryRun       bool    `json:"dry_run"`
	DuplicateIDs []int64 `json:"duplicate_ids"`
}

// Sweep finds stored records that are near-duplicates of an earlier record
// and deletes them in batches, oldest record kept. With dryRun set nothing
// is deleted. If a batch fails the sweep stops and the summary reports what
// was deleted before it.
func (a *Archive) Sweep(ctx context.Context, dryRun bool) (SweepSummary, error) {
	summary := SweepSummary{DryRun: dryRun, DuplicateIDs: []int64{}}

	unlock, err := a.lock(ctx)
	if err != nil {
		return summary, err
	}
	defer unlock()

	records, err := a.store.ListAllRecords(ctx, &caselaw.ListOptions{
		Columns:  []string{"id", "vector", "created_at"},
		Ordering: "created_at.asc,id.asc",
	})
	if err != nil {
		return summary, storeErr("load records", err)
	}
	sortOldestFirst(records)

	summary.Scanned = len(records)
	if a.policy.SweepWarnSize > 0 && len(records) > a.policy.SweepWarnSize {
		a.logger.Warn("Sweep compares every pair of records and may be slow",
			"records", len(records),
			"warn_size", a.policy.SweepWarnSize,
		)
	}

	entries := make([]dedup.Entry, 0, len(records))
	for _, rec := range records {
		v, err := vector.Decode(string(rec.Vector), a.policy.Search.Dimension)
		if err != nil {
			a.skipRecord(rec.ID, err)
			summary.Skipped++
			continue
		}
		entries = append(entries, dedup.Entry{ID: rec.ID, Vector: v})
	}
	if a.policy.Search.Dimension == 0 {
		entries = a.keepCommonDimension(entries, &summary)
	}

	ids := dedup.Sweep(entries, a.policy.DuplicateThreshold)
	summary.Duplicates = len(ids)
	summary.DuplicateIDs = append(summary.DuplicateIDs, ids...)

	if dryRun || len(ids) == 0 {
		a.logger.Info("Sweep finished",
			"scanned", summary.Scanned,
			"duplicates", summary.Duplicates,
			"dry_run", dryRun,
		)
		return summary, nil
	}

	batches := dedup.Chunk(ids, a.policy.DeleteBatchSize)
	for i, batch := range batches {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		if err := a.store.DeleteRecords(ctx, batch); err != nil {
			return summary, storeErr(fmt.Sprintf("delete batch %d of %d", i+1, len(batches)), err)
		}
		summary.Deleted += len(batch)
		metrics.SweepDeletedTotal.Add(int64(len(batch)))
		a.logger.Info("Deleted duplicate batch",
			"batch", i+1,
			"batches", len(batches),
			"records", len(batch),
		)
	}

	a.logger.Info("Sweep finished",
		"scanned", summary.Scanned,
		"duplicates", summary.Duplicates,
		"deleted", summary.Deleted,
	)
	return summary, nil
}

// keepCommonDimension drops entries whose length differs from the most
// common one. On a tie the length that reached that count first wins.
func (a *Archive) keepCommonDimension(entries []dedup.Entry, summary *SweepSummary) []dedup.Entry {
	counts := make(map[int]int)
	dim, best := 0, 0
	for _, e := range entries {
		n := len(e.Vector)
		counts[n]++
		if counts[n] > best {
			dim, best = n, counts[n]
		}
	}

	kept := entries[:0]
	for _, e := range entries {
		if len(e.Vector) != dim {
			a.skipRecord(e.ID, fmt.Errorf("%w: dimension %d, want %d", vector.ErrDecode, len(e.Vector), dim))
			summary.Skipped++
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// sortOldestFirst orders records by creation time, then id.
func sortOldestFirst(records []caselaw.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, tj := records[i].CreatedAt.Time(), records[j].CreatedAt.Time()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return records[i].ID < records[j].ID
	})
}
