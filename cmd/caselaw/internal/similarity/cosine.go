// Package similarity scores stored decisions against a query: cosine
// similarity of embeddings plus a bonus when the query appears verbatim in
// the decision text.
package similarity

import (
	"math"

	"github.com/hupe1980/vecgo/distance"
)

// Cosine returns the cosine similarity of a and b in [-1, 1]. It returns 0
// when either vector is empty or has zero magnitude, or when the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	normA := float64(distance.Dot(a, a))
	normB := float64(distance.Dot(b, b))
	if normA == 0 || normB == 0 {
		return 0
	}

	s := float64(distance.Dot(a, b)) / (math.Sqrt(normA) * math.Sqrt(normB))
	switch {
	case math.IsNaN(s):
		return 0
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}
