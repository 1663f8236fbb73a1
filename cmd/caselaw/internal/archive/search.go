package archive

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	caselaw "github.com/jason-riddle/caselaw-go"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/metrics"
	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/similarity"
)

// previewMarker is appended to a preview that cuts the text short.
const previewMarker = " ...[devamı var]"

// SearchResult is one ranked record.
type SearchResult struct {
	ID         int64             `json:"id"`
	CreatedAt  caselaw.Timestamp `json:"created_at"`
	Score      float64           `json:"score"`
	BaseScore  float64           `json:"base_score"`
	Bonus      float64           `json:"bonus"`
	Percentage int               `json:"percentage"`
	Preview    string            `json:"preview"`
}

// SearchSummary includes the results and timing for a search.
type SearchSummary struct {
	Query        string         `json:"query"`
	Results      []SearchResult `json:"results"`
	QueryTimeMs  int64          `json:"query_time_ms"`
	TotalResults int            `json:"total_results"`
	Scanned      int            `json:"scanned"`
	Skipped      int            `json:"skipped"`
}

// Search ranks every stored record against query and returns the best
// limit of them. A non-positive limit uses the policy's result limit.
// TotalResults counts every record above the threshold.
func (a *Archive) Search(ctx context.Context, query string, limit int) (SearchSummary, error) {
	summary := SearchSummary{Query: query, Results: []SearchResult{}}

	if strings.TrimSpace(query) == "" {
		return summary, errors.New("query is required")
	}
	if limit <= 0 {
		limit = a.policy.ResultLimit
	}

	metrics.SearchRequestsTotal.Add(1)
	start := time.Now()

	corpus, err := a.store.ListAllRecords(ctx, &caselaw.ListOptions{
		Columns: []string{"id", "text", "vector", "created_at"},
	})
	if err != nil {
		return summary, storeErr("load records", err)
	}
	if len(corpus) == 0 {
		summary.QueryTimeMs = time.Since(start).Milliseconds()
		return summary, nil
	}

	ranking, err := similarity.RankByQuery(ctx, a.embedder, query, corpus, a.policy.Search)
	if err != nil {
		return summary, fmt.Errorf("%w: %w", ErrEmbed, err)
	}
	for _, skip := range ranking.Skipped {
		a.skipRecord(skip.ID, skip.Err)
	}

	summary.Scanned = ranking.Scanned
	summary.Skipped = len(ranking.Skipped)
	summary.TotalResults = len(ranking.Matches)

	matches := ranking.Matches
	if len(matches) > limit {
		matches = matches[:limit]
	}
	for _, m := range matches {
		summary.Results = append(summary.Results, SearchResult{
			ID:         m.Record.ID,
			CreatedAt:  m.Record.CreatedAt,
			Score:      m.Total,
			BaseScore:  m.Base,
			Bonus:      m.Bonus,
			Percentage: percentage(m.Total),
			Preview:    Preview(m.Record.Text, a.policy.PreviewLength),
		})
	}
	summary.QueryTimeMs = time.Since(start).Milliseconds()

	a.logger.Info("Search finished",
		"scanned", summary.Scanned,
		"skipped", summary.Skipped,
		"matches", summary.TotalResults,
		"query_time_ms", summary.QueryTimeMs,
	)
	return summary, nil
}

// Preview returns the first n runes of text, marked when text is longer.
// A non-positive n returns text unchanged.
func Preview(text string, n int) string {
	if n <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + previewMarker
}

// percentage renders a score as a whole percent, rounding down.
func percentage(score float64) int {
	return int(math.Floor(score*100 + 1e-9))
}
