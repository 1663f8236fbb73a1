package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	caselaw "github.com/jason-riddle/caselaw-go"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/dedup"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/metrics"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/vector"
)

// Outcome is what happened to one ingestion candidate.
type Outcome string

const (
	OutcomeStored            Outcome = "stored"
	OutcomeRejectedShort     Outcome = "rejected_short"
	OutcomeRejectedDuplicate Outcome = "rejected_duplicate"
	OutcomeFailedOCR         Outcome = "failed_ocr"
	OutcomeFailedEmbed       Outcome = "failed_embed"
	OutcomeFailedStore       Outcome = "failed_store"
)

// Failed reports whether the outcome is one of the failure outcomes.
func (o Outcome) Failed() bool {
	switch o {
	case OutcomeFailedOCR, OutcomeFailedEmbed, OutcomeFailedStore:
		return true
	}
	return false
}

// stage names the pipeline step an outcome failed in, as kept in the failure log.
func (o Outcome) stage() string {
	switch o {
	case OutcomeFailedOCR:
		return "ocr"
	case OutcomeFailedEmbed:
		return "embed"
	case OutcomeFailedStore:
		return "store"
	}
	return ""
}

// FileResult reports the outcome for one candidate.
type FileResult struct {
	Source     string  `json:"source"`
	Outcome    Outcome `json:"outcome"`
	RecordID   int64   `json:"record_id,omitempty"`
	TextLength int     `json:"text_length"`
	Error      string  `json:"error,omitempty"`
	Err        error   `json:"-"`
}

// IngestSummary describes the result of an ingestion batch.
type IngestSummary struct {
	FilesProcessed    int          `json:"files_processed"`
	Stored            int          `json:"stored"`
	RejectedShort     int          `json:"rejected_short"`
	RejectedDuplicate int          `json:"rejected_duplicate"`
	Failed            int          `json:"failed"`
	Results           []FileResult `json:"results"`
}

// Add counts res and appends it to the results.
func (s *IngestSummary) Add(res FileResult) {
	s.FilesProcessed++
	switch {
	case res.Outcome == OutcomeStored:
		s.Stored++
	case res.Outcome == OutcomeRejectedShort:
		s.RejectedShort++
	case res.Outcome == OutcomeRejectedDuplicate:
		s.RejectedDuplicate++
	case res.Outcome.Failed():
		s.Failed++
	}
	s.Results = append(s.Results, res)
}

// IngestFiles runs every file through OCR, embedding, the duplicate check and
// storage, in order. A failing file does not stop the batch; its outcome is
// reported in the summary. The returned error is set only when the batch
// itself could not continue, in which case the summary covers the files
// handled so far.
func (a *Archive) IngestFiles(ctx context.Context, paths []string) (IngestSummary, error) {
	var summary IngestSummary

	if a.extractor == nil {
		return summary, errors.New("text extractor is required")
	}

	unlock, err := a.lock(ctx)
	if err != nil {
		return summary, err
	}
	defer unlock()

	for _, path := range paths {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		var res FileResult
		text, err := a.extractor.ExtractText(ctx, path)
		if err != nil {
			res = failed(path, OutcomeFailedOCR, fmt.Errorf("%w: %w", ErrExtract, err))
		} else {
			res = a.ingest(ctx, path, text)
		}

		if err := a.logOutcome(ctx, res); err != nil {
			summary.Add(res)
			return summary, err
		}
		summary.Add(res)
	}

	a.logger.Info("Ingestion finished",
		"files", summary.FilesProcessed,
		"stored", summary.Stored,
		"rejected_short", summary.RejectedShort,
		"rejected_duplicate", summary.RejectedDuplicate,
		"failed", summary.Failed,
	)
	return summary, nil
}

// IngestText runs already recognized text through embedding, the duplicate
// check and storage. source labels the candidate in logs and the failure log.
func (a *Archive) IngestText(ctx context.Context, source, text string) (FileResult, error) {
	unlock, err := a.lock(ctx)
	if err != nil {
		return FileResult{Source: source}, err
	}
	defer unlock()

	res := a.ingest(ctx, source, text)
	return res, a.logOutcome(ctx, res)
}

// CheckDuplicate reports whether candidate is more similar than the
// duplicate threshold to any stored record. Records whose vectors do not
// decode are skipped.
func (a *Archive) CheckDuplicate(ctx context.Context, candidate []float32) (bool, error) {
	records, err := a.store.ListAllRecords(ctx, &caselaw.ListOptions{
		Columns: []string{"id", "vector"},
	})
	if err != nil {
		return false, storeErr("load vectors", err)
	}

	corpus := make([][]float32, 0, len(records))
	for _, rec := range records {
		v, err := vector.Decode(string(rec.Vector), len(candidate))
		if err != nil {
			a.skipRecord(rec.ID, err)
			continue
		}
		corpus = append(corpus, v)
	}
	return dedup.IsDuplicate(candidate, corpus, a.policy.DuplicateThreshold), nil
}

func (a *Archive) ingest(ctx context.Context, source, text string) FileResult {
	text = strings.TrimSpace(text)
	res := FileResult{Source: source, TextLength: utf8.RuneCountInString(text)}

	if res.TextLength <= a.policy.MinTextLength {
		a.logger.Info("Rejected candidate with too little text",
			"source", source,
			"text_length", res.TextLength,
			"min_text_length", a.policy.MinTextLength,
		)
		metrics.RejectedShortTotal.Add(1)
		res.Outcome = OutcomeRejectedShort
		return res
	}

	vec, err := a.embedder.GenerateEmbedding(ctx, text)
	if err == nil && len(vec) == 0 {
		err = errors.New("empty embedding")
	}
	if err != nil {
		return withText(failed(source, OutcomeFailedEmbed, fmt.Errorf("%w: %w", ErrEmbed, err)), res.TextLength)
	}

	dup, err := a.CheckDuplicate(ctx, vec)
	if err != nil {
		return withText(failed(source, OutcomeFailedStore, err), res.TextLength)
	}
	if dup {
		a.logger.Info("Rejected near-duplicate candidate",
			"source", source,
			"threshold", a.policy.DuplicateThreshold,
		)
		metrics.RejectedDuplicateTotal.Add(1)
		res.Outcome = OutcomeRejectedDuplicate
		return res
	}

	encoded, err := vector.Encode(vec)
	if err != nil {
		return withText(failed(source, OutcomeFailedEmbed, fmt.Errorf("%w: %w", ErrEmbed, err)), res.TextLength)
	}
	rec, err := a.store.InsertRecord(ctx, caselaw.NewRecord{Text: text, Vector: caselaw.EncodedVector(encoded)})
	if err != nil {
		return withText(failed(source, OutcomeFailedStore, storeErr("insert record", err)), res.TextLength)
	}

	a.logger.Info("Stored record",
		"source", source,
		"record_id", rec.ID,
		"text_length", res.TextLength,
	)
	metrics.RecordsStoredTotal.Add(1)
	res.Outcome = OutcomeStored
	res.RecordID = rec.ID
	return res
}

// logOutcome keeps the store's failure log, when it has one, in step with res.
func (a *Archive) logOutcome(ctx context.Context, res FileResult) error {
	if res.Outcome.Failed() {
		a.logger.Error("Ingestion failed",
			"source", res.Source,
			"outcome", res.Outcome,
			"error", res.Err,
		)
		metrics.IngestFailuresTotal.Add(1)
	}

	log, ok := a.store.(FailureRecorder)
	if !ok {
		return nil
	}
	if res.Outcome.Failed() {
		if err := log.RecordFailure(ctx, res.Source, res.Outcome.stage(), res.Err); err != nil {
			return fmt.Errorf("record failure for %s: %w", res.Source, err)
		}
		return nil
	}
	if err := log.ClearFailure(ctx, res.Source); err != nil {
		return fmt.Errorf("clear failure for %s: %w", res.Source, err)
	}
	return nil
}

// skipRecord notes a stored record left out of a comparison.
func (a *Archive) skipRecord(id int64, err error) {
	a.logger.Warn("Skipping record with undecodable vector",
		"record_id", id,
		"error", err,
	)
	metrics.DecodeSkipsTotal.Add(1)
}

func failed(source string, outcome Outcome, err error) FileResult {
	return FileResult{Source: source, Outcome: outcome, Error: err.Error(), Err: err}
}

func withText(res FileResult, n int) FileResult {
	res.TextLength = n
	return res
}
