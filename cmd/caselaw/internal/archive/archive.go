// Package archive is the application core: it ingests decisions, searches
// them and removes duplicates, on top of a record store, an embedder and a
// text extractor supplied at startup.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"

	caselaw "github.com/jason-riddle/caselaw-go"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/dedup"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/metrics"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/similarity"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/storage"
)

// Policy defaults not owned by the engines.
const (
	DefaultMinTextLength = 50
	DefaultResultLimit   = 10
	DefaultPreviewLength = 600
	DefaultSweepWarnSize = 5000
)

// Error classes for per-item and whole-operation failures.
var (
	ErrExtract = errors.New("extract text")
	ErrEmbed   = errors.New("embed text")
	ErrStore   = errors.New("record store")

	// ErrNoFailureLog is returned by Failures when the store keeps no failure log.
	ErrNoFailureLog = errors.New("record store does not keep a failure log")
)

// Store is the record store the archive reads and writes.
// *caselaw.Client and *storage.DB implement it.
type Store interface {
	InsertRecord(ctx context.Context, rec caselaw.NewRecord) (*caselaw.Record, error)
	ListRecords(ctx context.Context, opts *caselaw.ListOptions) ([]caselaw.Record, error)
	ListAllRecords(ctx context.Context, opts *caselaw.ListOptions) ([]caselaw.Record, error)
	DeleteRecords(ctx context.Context, ids []int64) error
	DeleteAllRecords(ctx context.Context) error
	CountRecords(ctx context.Context) (int, error)
}

// FailureRecorder is implemented by stores that log ingestion failures.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, source, stage string, err error) error
	ClearFailure(ctx context.Context, source string) error
	ClearFailures(ctx context.Context) error
	ListFailures(ctx context.Context) ([]storage.Failure, error)
}

// resetter is implemented by stores that can clear everything atomically.
type resetter interface {
	Reset(ctx context.Context) error
}

// Extractor reads the text of a decision from an image file.
type Extractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// Policy holds the thresholds and limits the archive applies.
type Policy struct {
	Search             similarity.Options
	DuplicateThreshold float64
	MinTextLength      int // texts of this many runes or fewer are rejected
	DeleteBatchSize    int
	ResultLimit        int
	PreviewLength      int // runes, 0 = whole text
	SweepWarnSize      int
}

// DefaultPolicy returns the default thresholds and limits.
func DefaultPolicy() Policy {
	return Policy{
		Search:             similarity.DefaultOptions(),
		DuplicateThreshold: dedup.DefaultThreshold,
		MinTextLength:      DefaultMinTextLength,
		DeleteBatchSize:    dedup.DefaultBatchSize,
		ResultLimit:        DefaultResultLimit,
		PreviewLength:      DefaultPreviewLength,
		SweepWarnSize:      DefaultSweepWarnSize,
	}
}

// Archive carries the collaborators and policy shared by every operation.
// Ingestion, sweeps, deletes and resets run one at a time within a process;
// searches run freely.
type Archive struct {
	store     Store
	embedder  similarity.Embedder
	extractor Extractor
	policy    Policy
	logger    *slog.Logger
	writes    *semaphore.Weighted
}

// Option configures an Archive.
type Option func(*Archive)

// WithExtractor sets the text extractor used by IngestFiles.
func WithExtractor(e Extractor) Option {
	return func(a *Archive) {
		a.extractor = e
	}
}

// WithPolicy replaces the default policy.
func WithPolicy(p Policy) Option {
	return func(a *Archive) {
		a.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Archive) {
		if l != nil {
			a.logger = l
		}
	}
}

// New returns an archive over store and embedder.
func New(store Store, embedder similarity.Embedder, opts ...Option) (*Archive, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}

	a := &Archive{
		store:    store,
		embedder: embedder,
		policy:   DefaultPolicy(),
		logger:   slog.Default(),
		writes:   semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.policy.DeleteBatchSize <= 0 {
		a.policy.DeleteBatchSize = dedup.DefaultBatchSize
	}
	if a.policy.ResultLimit <= 0 {
		a.policy.ResultLimit = DefaultResultLimit
	}
	return a, nil
}

// Policy returns the policy in effect.
func (a *Archive) Policy() Policy {
	return a.policy
}

// lock waits for exclusive write access. The returned func releases it.
func (a *Archive) lock(ctx context.Context) (func(), error) {
	if err := a.writes.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for running operation: %w", err)
	}
	return func() { a.writes.Release(1) }, nil
}

// storeErr classifies err as a record store failure.
func storeErr(op string, err error) error {
	metrics.StoreErrorsTotal.Add(1)
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
