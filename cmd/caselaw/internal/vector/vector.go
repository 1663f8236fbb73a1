// Package vector converts embeddings to and from the textual numeric-array
// encoding kept at rest.
package vector

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrDecode reports a stored vector that cannot be turned back into numbers.
var ErrDecode = errors.New("vector decode failed")

// Encode renders v as a JSON array, e.g. "[0.12,-0.5,0.33]".
func Encode(v []float32) (string, error) {
	if len(v) == 0 {
		return "", errors.New("cannot encode empty vector")
	}

	var b strings.Builder
	b.Grow(len(v) * 12)
	b.WriteByte('[')
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return "", fmt.Errorf("cannot encode non-finite value at index %d", i)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String(), nil
}

// Decode parses an encoded vector. When dim is positive the result must have
// exactly dim elements. Every failure wraps ErrDecode.
func Decode(s string, dim int) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty value", ErrDecode)
	}

	// Pointers keep JSON null elements distinguishable from zero.
	var raw []*float64
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty array", ErrDecode)
	}
	if dim > 0 && len(raw) != dim {
		return nil, fmt.Errorf("%w: dimension %d, want %d", ErrDecode, len(raw), dim)
	}

	out := make([]float32, len(raw))
	for i, x := range raw {
		if x == nil {
			return nil, fmt.Errorf("%w: null value at index %d", ErrDecode, i)
		}
		f := float32(*x)
		if math.IsInf(float64(f), 0) {
			return nil, fmt.Errorf("%w: value at index %d overflows float32", ErrDecode, i)
		}
		out[i] = f
	}
	return out, nil
}
