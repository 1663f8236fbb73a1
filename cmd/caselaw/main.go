package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	caselaw "github.com/jason-riddle/caselaw-go"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/archive"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/config"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/embedding"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/metrics"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/ocr"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/storage"
)

const usage = `caselaw: court decision archive with similarity search

Usage:
  caselaw ingest   [-text] <file>...        OCR images (or read text files) and store new decisions
  caselaw search   [-limit 10] <query>      Rank stored decisions against a query
  caselaw sweep    [-dry-run]               Delete near-duplicate decisions, keeping the oldest
  caselaw delete   <id>...                  Delete decisions by id
  caselaw reset    -yes                     Delete every decision
  caselaw count                             Print the number of stored decisions
  caselaw list     [-limit 20] [-offset 0]  List stored decisions, newest first
  caselaw failures                          List files that failed to ingest (local store only)

Common flags:
  -db          SQLite database path; selects the local store (or CASELAW_DB)
  -env         Env file to load (default .env)
  -metrics     Print counters to stderr when done
  -log-level   debug, info, warn or error (or CASELAW_LOG_LEVEL)
  -log-format  text or json (or CASELAW_LOG_FORMAT)

Settings are read from the environment (SUPABASE_URL, SUPABASE_KEY,
CASELAW_EMBEDDINGS_URL, CASELAW_EMBEDDINGS_KEY, CASELAW_EMBEDDINGS_MODEL, ...).
`

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// command is one subcommand. It receives the opened archive and its own arguments.
type command struct {
	name string
	run  func(ctx context.Context, env *env, args []string) error
}

var commands = []command{
	{name: "ingest", run: runIngest},
	{name: "search", run: runSearch},
	{name: "sweep", run: runSweep},
	{name: "delete", run: runDelete},
	{name: "reset", run: runReset},
	{name: "count", run: runCount},
	{name: "list", run: runList},
	{name: "failures", run: runFailures},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}

	name, args := args[0], args[1:]
	switch name {
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	}

	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		e := &env{stdout: stdout, stderr: stderr}
		rest, err := e.parse(name, args)
		if err != nil {
			return err
		}
		if err := e.open(); err != nil {
			return err
		}
		defer e.close()

		err = cmd.run(ctx, e, rest)
		if e.printMetrics {
			if werr := metrics.Write(stderr); werr != nil && err == nil {
				err = werr
			}
		}
		return err
	}

	fmt.Fprintf(stderr, "unknown command: %s\n\n", name)
	fmt.Fprint(stderr, usage)
	return errUsage
}

// env is the state shared by every subcommand.
type env struct {
	stdout, stderr io.Writer

	cfg          config.Config
	printMetrics bool
	logger       *slog.Logger
	store        archive.Store
	closeStore   func() error
	archive      *archive.Archive

	// Per-command flags.
	text    bool
	limit   int
	offset  int
	dryRun  bool
	confirm bool
}

// parse loads the configuration and then parses flags, which override it.
func (e *env) parse(name string, args []string) ([]string, error) {
	// The env file must be known before the configuration is loaded.
	envFile := ".env"
	for i, arg := range args {
		if v, ok := strings.CutPrefix(arg, "-env="); ok {
			envFile = v
		} else if arg == "-env" && i+1 < len(args) {
			envFile = args[i+1]
		}
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(e.stderr)
	flags.String("env", envFile, "Env file to load")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (local store)")
	flags.BoolVar(&e.printMetrics, "metrics", false, "Print counters to stderr when done")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")

	switch name {
	case "ingest":
		flags.BoolVar(&e.text, "text", false, "Arguments are text files, skip OCR")
	case "search":
		flags.IntVar(&e.limit, "limit", cfg.ResultLimit, "Max results")
		flags.Float64Var(&cfg.SearchThreshold, "threshold", cfg.SearchThreshold, "Minimum score")
	case "sweep":
		flags.BoolVar(&e.dryRun, "dry-run", false, "Report duplicates without deleting")
		flags.Float64Var(&cfg.DuplicateThreshold, "threshold", cfg.DuplicateThreshold, "Duplicate similarity threshold")
	case "list":
		flags.IntVar(&e.limit, "limit", 20, "Max records")
		flags.IntVar(&e.offset, "offset", 0, "Records to skip")
	case "reset":
		flags.BoolVar(&e.confirm, "yes", false, "Confirm deleting every record")
	}

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e.cfg = cfg
	return flags.Args(), nil
}

// open builds the logger, record store, embedder and archive from e.cfg.
func (e *env) open() error {
	level, err := config.ParseLogLevel(e.cfg.LogLevel)
	if err != nil {
		return err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if e.cfg.LogFormat == "json" {
		e.logger = slog.New(slog.NewJSONHandler(e.stderr, handlerOpts))
	} else {
		e.logger = slog.New(slog.NewTextHandler(e.stderr, handlerOpts))
	}

	if e.cfg.UsesLocalStore() {
		db, err := storage.NewDB(e.cfg.DBPath)
		if err != nil {
			return err
		}
		e.store, e.closeStore = db, db.Close
	} else {
		if e.cfg.SupabaseURL == "" || e.cfg.SupabaseKey == "" {
			return errors.New("SUPABASE_URL and SUPABASE_KEY are required unless -db is set")
		}
		e.store = caselaw.NewClient(e.cfg.SupabaseURL, e.cfg.SupabaseKey,
			caselaw.WithTable(e.cfg.Table),
			caselaw.WithRateLimit(e.cfg.RateLimit, 1),
		)
	}

	client := embedding.NewClient(e.cfg.EmbeddingsURL, e.cfg.EmbeddingsKey, e.cfg.EmbeddingsModel)
	serviceOpts := []embedding.ServiceOption{
		embedding.WithDimension(e.cfg.EmbeddingsDim),
		embedding.WithLogger(e.logger),
	}
	if cache := e.embeddingCache(); cache != nil {
		serviceOpts = append(serviceOpts, embedding.WithCache(cache))
	}
	embedder := embedding.NewService(client, serviceOpts...)

	var extractor archive.Extractor = ocr.TextFile{}
	if !e.text {
		extractor = ocr.NewTesseract(e.cfg.OCRBinary,
			ocr.WithLanguage(e.cfg.OCRLang),
			ocr.WithLogger(e.logger),
		)
	}

	e.archive, err = archive.New(e.store, embedder,
		archive.WithExtractor(extractor),
		archive.WithPolicy(e.cfg.Policy()),
		archive.WithLogger(e.logger),
	)
	return err
}

func (e *env) embeddingCache() embedding.Cache {
	switch e.cfg.EmbeddingsCache {
	case config.CacheOff:
		return nil
	case config.CacheMemory:
		return embedding.NewMemoryCache()
	}

	dir, err := embedding.DefaultCacheDir()
	if err != nil {
		e.logger.Warn("Using in-memory embedding cache", "error", err)
		return embedding.NewMemoryCache()
	}
	return embedding.NewDiskCache(dir, e.logger)
}

func (e *env) close() {
	if e.closeStore == nil {
		return
	}
	if err := e.closeStore(); err != nil {
		e.logger.Warn("Failed to close record store", "error", err)
	}
}

func runIngest(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("ingest needs at least one file")
	}

	start := time.Now()
	summary, err := e.archive.IngestFiles(ctx, args)
	if err != nil {
		return err
	}

	resp := struct {
		archive.IngestSummary
		DurationMs int64 `json:"duration_ms"`
	}{
		IngestSummary: summary,
		DurationMs:    time.Since(start).Milliseconds(),
	}
	return writeJSON(e.stdout, resp)
}

func runSearch(ctx context.Context, e *env, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("search needs a query")
	}
	if e.limit <= 0 {
		return fmt.Errorf("-limit must be > 0")
	}

	summary, err := e.archive.Search(ctx, query, e.limit)
	if err != nil {
		return err
	}
	return writeJSON(e.stdout, summary)
}

func runSweep(ctx context.Context, e *env, _ []string) error {
	summary, err := e.archive.Sweep(ctx, e.dryRun)
	if err != nil {
		// Report what was deleted before the failure.
		_ = writeJSON(e.stdout, summary)
		return err
	}
	return writeJSON(e.stdout, summary)
}

func runDelete(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("delete needs at least one id")
	}
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", arg)
		}
		ids = append(ids, id)
	}

	deleted, err := e.archive.Delete(ctx, ids)
	if err != nil {
		return err
	}
	return writeJSON(e.stdout, map[string]int{"deleted": deleted})
}

func runReset(ctx context.Context, e *env, _ []string) error {
	if !e.confirm {
		return fmt.Errorf("reset deletes every record; pass -yes to confirm")
	}
	if err := e.archive.Reset(ctx); err != nil {
		return err
	}
	return writeJSON(e.stdout, map[string]bool{"reset": true})
}

func runCount(ctx context.Context, e *env, _ []string) error {
	n, err := e.archive.Count(ctx)
	if err != nil {
		return err
	}
	return writeJSON(e.stdout, map[string]int{"count": n})
}

func runList(ctx context.Context, e *env, _ []string) error {
	records, err := e.archive.List(ctx, e.limit, e.offset)
	if err != nil {
		return err
	}
	return writeJSON(e.stdout, map[string]any{"results": records})
}

func runFailures(ctx context.Context, e *env, _ []string) error {
	failures, err := e.archive.Failures(ctx)
	if err != nil {
		return err
	}
	if failures == nil {
		failures = []storage.Failure{}
	}
	return writeJSON(e.stdout, map[string]any{"results": failures})
}

func writeJSON(w io.Writer, value interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
