// Package dedup finds near-identical decisions by comparing embeddings.
//
// Both checks are brute force: IsDuplicate is linear in the corpus and Sweep
// is quadratic. That is fine for archives of a few thousand decisions; larger
// corpora need an index.
package dedup

import (
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/similarity"
)

// DefaultThreshold is the similarity above which two decisions are the same document.
const DefaultThreshold = 0.90

// DefaultBatchSize bounds how many ids are deleted per store request.
const DefaultBatchSize = 20

// Entry is a stored vector and the id of its record.
type Entry struct {
	ID     int64
	Vector []float32
}

// IsDuplicate reports whether any vector in corpus is more similar to
// candidate than threshold. It stops at the first match.
func IsDuplicate(candidate []float32, corpus [][]float32, threshold float64) bool {
	for _, v := range corpus {
		if similarity.Cosine(candidate, v) > threshold {
			return true
		}
	}
	return false
}

// Sweep returns the ids of entries that duplicate an earlier kept entry.
// entries must be in retention order: the first member of each cluster is
// kept. Returned ids follow input order.
func Sweep(entries []Entry, threshold float64) []int64 {
	var (
		kept    [][]float32
		removed []int64
	)
	for _, e := range entries {
		if IsDuplicate(e.Vector, kept, threshold) {
			removed = append(removed, e.ID)
			continue
		}
		kept = append(kept, e.Vector)
	}
	return removed
}

// Chunk splits ids into consecutive batches of at most size ids.
// A non-positive size yields a single batch.
func Chunk(ids []int64, size int) [][]int64 {
	if len(ids) == 0 {
		return nil
	}
	if size <= 0 || size >= len(ids) {
		return [][]int64{ids}
	}

	batches := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}
