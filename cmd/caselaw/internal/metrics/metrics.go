package metrics

import (
	"expvar"
	"fmt"
	"io"
	"sort"
)

var (
	// SearchRequestsTotal counts total search requests
	SearchRequestsTotal = expvar.NewInt("search_requests_total")

	// RecordsStoredTotal counts records inserted by ingestion
	RecordsStoredTotal = expvar.NewInt("records_stored_total")

	// RejectedShortTotal counts candidates rejected for too little text
	RejectedShortTotal = expvar.NewInt("rejected_short_total")

	// RejectedDuplicateTotal counts candidates rejected as near-duplicates
	RejectedDuplicateTotal = expvar.NewInt("rejected_duplicate_total")

	// IngestFailuresTotal counts candidates that failed OCR, embedding or storage
	IngestFailuresTotal = expvar.NewInt("ingest_failures_total")

	// EmbeddingsGeneratedTotal counts successful embedding generations
	EmbeddingsGeneratedTotal = expvar.NewInt("embeddings_generated_total")

	// EmbeddingsFailedTotal counts failed embedding generations
	EmbeddingsFailedTotal = expvar.NewInt("embeddings_failed_total")

	// EmbeddingsCachedTotal counts embeddings served from the cache
	EmbeddingsCachedTotal = expvar.NewInt("embeddings_cached_total")

	// DecodeSkipsTotal counts stored vectors skipped because they did not decode
	DecodeSkipsTotal = expvar.NewInt("decode_skips_total")

	// SweepDeletedTotal counts records removed by duplicate sweeps
	SweepDeletedTotal = expvar.NewInt("sweep_deleted_total")

	// StoreErrorsTotal counts failed record store calls
	StoreErrorsTotal = expvar.NewInt("store_errors_total")
)

// names lists the counters above; expvar also publishes cmdline and memstats.
var names = []string{
	"search_requests_total",
	"records_stored_total",
	"rejected_short_total",
	"rejected_duplicate_total",
	"ingest_failures_total",
	"embeddings_generated_total",
	"embeddings_failed_total",
	"embeddings_cached_total",
	"decode_skips_total",
	"sweep_deleted_total",
	"store_errors_total",
}

// Write prints every non-zero counter as "name value", sorted by name.
func Write(w io.Writer) error {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	for _, name := range sorted {
		v, ok := expvar.Get(name).(*expvar.Int)
		if !ok || v.Value() == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s %d\n", name, v.Value()); err != nil {
			return err
		}
	}
	return nil
}
