// Package similarity provides nearest-neighbor search over trace embeddings,
// so callers can ask whether an agent has behaved like this before without
// re-scanning raw traces.
package similarity

import (
	"context"
	"errors"
	"math"
)

var (
	ErrDimensionMismatch = errors.New("similarity: vector dimension mismatch")
	ErrEmptyVector       = errors.New("similarity: empty vector")
)

// Match is one nearest-neighbor hit: the indexed trace and its Euclidean
// distance from the query vector.
type Match struct {
	TraceID  string  `json:"traceId"`
	Distance float64 `json:"distance"`
}

// Index stores trace embeddings keyed by trace ID. Implementations serialize
// writes (single writer at a time) and allow concurrent reads; a read racing
// a write may miss the newest entry, which is acceptable for this search
// surface. The pipeline only ever appends; deletion and compaction belong to
// the owning store.
type Index interface {
	Insert(ctx context.Context, traceID string, vector []float64) error
	Search(ctx context.Context, vector []float64, k int) ([]Match, error)
	Len() int
}

// EuclideanDistance returns the L2 distance between two vectors of equal
// length.
func EuclideanDistance(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrEmptyVector
	}
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
