package similarity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	caselaw "github.com/jason-riddle/caselaw-go"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/vector"
)

// ErrEmbed reports that the query could not be embedded.
var ErrEmbed = errors.New("embed query")

// Default scoring policy.
const (
	DefaultThreshold    = 0.30
	DefaultKeywordBonus = 0.30
	DefaultScoreCeiling = 0.99
)

// Embedder turns text into a vector.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Options is the scoring policy for a ranking.
type Options struct {
	// Threshold is the minimum total score a record needs to be kept.
	Threshold float64
	// KeywordBonus is added when the folded query is a substring of the folded text.
	KeywordBonus float64
	// ScoreCeiling caps the total score. Zero disables the cap.
	ScoreCeiling float64
	// Dimension is the expected vector length. Zero means the query vector's length.
	Dimension int
}

// DefaultOptions returns the default scoring policy.
func DefaultOptions() Options {
	return Options{
		Threshold:    DefaultThreshold,
		KeywordBonus: DefaultKeywordBonus,
		ScoreCeiling: DefaultScoreCeiling,
	}
}

// Match is a kept record together with its scores.
type Match struct {
	Record caselaw.Record
	Total  float64 // Base + Bonus, capped at the score ceiling
	Base   float64 // Cosine similarity to the query
	Bonus  float64 // Keyword bonus, 0 or Options.KeywordBonus
}

// Skip is a record left out of a ranking because its vector did not decode.
type Skip struct {
	ID  int64
	Err error
}

// Ranking is the outcome of scoring a corpus.
type Ranking struct {
	Matches []Match // sorted by Total, highest first
	Skipped []Skip
	Scanned int
}

// Rank scores every record in corpus against queryVec and the query text.
// Records scoring below opts.Threshold are dropped. Records whose vector
// cannot be decoded are reported in Skipped and do not affect the others.
// Ties keep corpus order.
func Rank(query string, queryVec []float32, corpus []caselaw.Record, opts Options) Ranking {
	dim := opts.Dimension
	if dim == 0 {
		dim = len(queryVec)
	}
	needle := Fold(strings.TrimSpace(query))

	ranking := Ranking{Scanned: len(corpus)}
	for _, rec := range corpus {
		vec, err := vector.Decode(string(rec.Vector), dim)
		if err != nil {
			ranking.Skipped = append(ranking.Skipped, Skip{ID: rec.ID, Err: err})
			continue
		}

		m := Match{Record: rec, Base: Cosine(queryVec, vec)}
		if needle != "" && strings.Contains(Fold(rec.Text), needle) {
			m.Bonus = opts.KeywordBonus
		}
		m.Total = m.Base + m.Bonus
		if opts.ScoreCeiling > 0 && m.Total > opts.ScoreCeiling {
			m.Total = opts.ScoreCeiling
		}

		if m.Total >= opts.Threshold {
			ranking.Matches = append(ranking.Matches, m)
		}
	}

	sort.SliceStable(ranking.Matches, func(i, j int) bool {
		return ranking.Matches[i].Total > ranking.Matches[j].Total
	})
	return ranking
}

// RankByQuery embeds query and ranks corpus against it.
func RankByQuery(ctx context.Context, e Embedder, query string, corpus []caselaw.Record, opts Options) (Ranking, error) {
	queryVec, err := e.GenerateEmbedding(ctx, query)
	if err != nil {
		return Ranking{}, fmt.Errorf("%w: %w", ErrEmbed, err)
	}
	if len(queryVec) == 0 {
		return Ranking{}, fmt.Errorf("%w: empty vector", ErrEmbed)
	}
	return Rank(query, queryVec, corpus, opts), nil
}
