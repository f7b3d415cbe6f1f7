// Package embedding turns execution traces into fixed-dimension vectors.
// Concrete text-embedding backends live in the subpackages (gemini, openai,
// ollama, local); this package defines the provider contract and the trace
// encoder that averages per-step vectors into one trace embedding.
package embedding

import (
	"context"
	"errors"
)

var (
	ErrEmptyTrace = errors.New("embedding: trace has no steps")
	ErrDimension  = errors.New("embedding: unexpected vector dimension")
)

// Embedder is a text-embedding backend. Implementations must be safe for
// concurrent use and must honor context cancellation: the embedding call is
// the pipeline's only blocking operation.
type Embedder interface {
	Name() string
	// Dimension is the length of every vector the embedder returns.
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Mean averages vectors dimension-wise. All vectors must share the length of
// the first; vectors with a different length return ErrDimension.
func Mean(vectors [][]float64) ([]float64, error) {
	if len(vectors) == 0 {
		return nil, errors.New("embedding: no vectors to average")
	}
	dim := len(vectors[0])
	out := make([]float64, dim)
	for _, vec := range vectors {
		if len(vec) != dim {
			return nil, ErrDimension
		}
		for i, v := range vec {
			out[i] += v
		}
	}
	n := float64(len(vectors))
	for i := range out {
		out[i] /= n
	}
	return out, nil
}
