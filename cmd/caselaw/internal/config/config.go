// Package config loads caselaw settings from a .env file, the environment and
// built-in defaults, in that order of precedence (environment wins over .env).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	caselaw "github.com/jason-riddle/caselaw-go"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/archive"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/dedup"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/ocr"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/similarity"
)

// Embedding cache modes.
const (
	CacheDisk   = "disk"
	CacheMemory = "memory"
	CacheOff    = "off"
)

// Config holds every setting the CLI needs.
type Config struct {
	// Hosted record store
	SupabaseURL string
	SupabaseKey string
	Table       string
	RateLimit   float64 // requests per second, 0 = unlimited

	// DBPath selects the local SQLite store instead of the hosted one.
	DBPath string

	// Embeddings
	EmbeddingsURL   string
	EmbeddingsKey   string
	EmbeddingsModel string
	EmbeddingsDim   int    // 0 = accept any length
	EmbeddingsCache string // disk, memory or off

	// OCR
	OCRBinary string
	OCRLang   string

	// Policy
	SearchThreshold    float64
	KeywordBonus       float64
	ScoreCeiling       float64
	DuplicateThreshold float64
	MinTextLength      int
	DeleteBatchSize    int
	ResultLimit        int
	PreviewLength      int

	// Logging
	LogLevel  string
	LogFormat string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Table:              caselaw.DefaultTable,
		EmbeddingsCache:    CacheDisk,
		OCRBinary:          "tesseract",
		OCRLang:            ocr.DefaultLanguage,
		SearchThreshold:    similarity.DefaultThreshold,
		KeywordBonus:       similarity.DefaultKeywordBonus,
		ScoreCeiling:       similarity.DefaultScoreCeiling,
		DuplicateThreshold: dedup.DefaultThreshold,
		MinTextLength:      archive.DefaultMinTextLength,
		DeleteBatchSize:    dedup.DefaultBatchSize,
		ResultLimit:        archive.DefaultResultLimit,
		PreviewLength:      archive.DefaultPreviewLength,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load reads envFiles (".env" when none are given) and the environment on top
// of the defaults. Missing env files are ignored; malformed numbers are errors.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg := Default()
	var errs []error

	setString(&cfg.SupabaseURL, "SUPABASE_URL")
	setString(&cfg.SupabaseKey, "SUPABASE_KEY")
	setString(&cfg.Table, "CASELAW_TABLE")
	setString(&cfg.DBPath, "CASELAW_DB")
	setString(&cfg.EmbeddingsURL, "CASELAW_EMBEDDINGS_URL")
	setString(&cfg.EmbeddingsKey, "CASELAW_EMBEDDINGS_KEY")
	setString(&cfg.EmbeddingsModel, "CASELAW_EMBEDDINGS_MODEL")
	setString(&cfg.EmbeddingsCache, "CASELAW_EMBEDDINGS_CACHE")
	setString(&cfg.OCRBinary, "CASELAW_OCR_BINARY")
	if lang, ok := os.LookupEnv("CASELAW_OCR_LANG"); ok {
		// Set but empty means tesseract's default language.
		cfg.OCRLang = strings.TrimSpace(lang)
	}
	setString(&cfg.LogLevel, "CASELAW_LOG_LEVEL")
	setString(&cfg.LogFormat, "CASELAW_LOG_FORMAT")

	errs = append(errs,
		setInt(&cfg.EmbeddingsDim, "CASELAW_EMBEDDINGS_DIM"),
		setInt(&cfg.MinTextLength, "CASELAW_MIN_TEXT_LENGTH"),
		setInt(&cfg.DeleteBatchSize, "CASELAW_DELETE_BATCH_SIZE"),
		setInt(&cfg.ResultLimit, "CASELAW_RESULT_LIMIT"),
		setInt(&cfg.PreviewLength, "CASELAW_PREVIEW_LENGTH"),
		setFloat(&cfg.RateLimit, "CASELAW_RATE_LIMIT"),
		setFloat(&cfg.SearchThreshold, "CASELAW_SEARCH_THRESHOLD"),
		setFloat(&cfg.KeywordBonus, "CASELAW_KEYWORD_BONUS"),
		setFloat(&cfg.ScoreCeiling, "CASELAW_SCORE_CEILING"),
		setFloat(&cfg.DuplicateThreshold, "CASELAW_DUPLICATE_THRESHOLD"),
	)

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the policy values and option enums.
func (c Config) Validate() error {
	var errs []error

	inUnit := func(name string, v float64) {
		if math.IsNaN(v) || v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be between 0 and 1, got %v", name, v))
		}
	}
	inUnit("search threshold", c.SearchThreshold)
	inUnit("keyword bonus", c.KeywordBonus)
	inUnit("duplicate threshold", c.DuplicateThreshold)

	if math.IsNaN(c.ScoreCeiling) || c.ScoreCeiling < 0 || c.ScoreCeiling >= 1 {
		errs = append(errs, fmt.Errorf("score ceiling must be 0 (disabled) or below 1, got %v", c.ScoreCeiling))
	}
	if c.MinTextLength < 0 {
		errs = append(errs, fmt.Errorf("min text length must be >= 0, got %d", c.MinTextLength))
	}
	if c.DeleteBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("delete batch size must be > 0, got %d", c.DeleteBatchSize))
	}
	if c.ResultLimit <= 0 {
		errs = append(errs, fmt.Errorf("result limit must be > 0, got %d", c.ResultLimit))
	}
	if c.PreviewLength < 0 {
		errs = append(errs, fmt.Errorf("preview length must be >= 0, got %d", c.PreviewLength))
	}
	if c.EmbeddingsDim < 0 {
		errs = append(errs, fmt.Errorf("embeddings dimension must be >= 0, got %d", c.EmbeddingsDim))
	}
	if math.IsNaN(c.RateLimit) || c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate limit must be >= 0, got %v", c.RateLimit))
	}

	switch c.EmbeddingsCache {
	case CacheDisk, CacheMemory, CacheOff:
	default:
		errs = append(errs, fmt.Errorf("embeddings cache must be disk, memory or off, got %q", c.EmbeddingsCache))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// UsesLocalStore reports whether records live in a local SQLite database.
func (c Config) UsesLocalStore() bool {
	return c.DBPath != ""
}

// Policy returns the archive policy described by c.
func (c Config) Policy() archive.Policy {
	return archive.Policy{
		Search: similarity.Options{
			Threshold:    c.SearchThreshold,
			KeywordBonus: c.KeywordBonus,
			ScoreCeiling: c.ScoreCeiling,
			Dimension:    c.EmbeddingsDim,
		},
		DuplicateThreshold: c.DuplicateThreshold,
		MinTextLength:      c.MinTextLength,
		DeleteBatchSize:    c.DeleteBatchSize,
		ResultLimit:        c.ResultLimit,
		PreviewLength:      c.PreviewLength,
		SweepWarnSize:      archive.DefaultSweepWarnSize,
	}
}

// ParseLogLevel maps debug, info, warn or error to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level must be debug, info, warn or error, got %q", s)
	}
	return level, nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", key, v)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%s: %q is not a number", key, v)
	}
	*dst = f
	return nil
}
