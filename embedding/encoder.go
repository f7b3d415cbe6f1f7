package embedding

import (
	"context"
	"fmt"

	"github.com/spectracehq/audit-sdk-go/similarity"
	"github.com/spectracehq/audit-sdk-go/trace"
)

// Encoder maps a trace to a single embedding: each step's concatenated text
// is embedded independently and the per-step vectors are averaged, so the
// result is length-invariant across traces of different sizes.
type Encoder struct {
	embedder Embedder
	index    similarity.Index
}

type EncoderOption func(*Encoder)

// WithIndex attaches a similarity index; EncodeAndIndex inserts into it.
func WithIndex(idx similarity.Index) EncoderOption {
	return func(e *Encoder) { e.index = idx }
}

func NewEncoder(embedder Embedder, opts ...EncoderOption) (*Encoder, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedding: embedder is required")
	}
	e := &Encoder{embedder: embedder}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Encode computes the trace embedding without touching the index. Traces
// with zero steps fail with ErrEmptyTrace.
func (e *Encoder) Encode(ctx context.Context, tr *trace.ExecutionTrace) ([]float64, error) {
	if tr == nil || len(tr.Steps) == 0 {
		return nil, fmt.Errorf("encode trace: %w", ErrEmptyTrace)
	}

	texts := make([]string, 0, len(tr.Steps))
	for _, step := range tr.Steps {
		texts = append(texts, step.Text())
	}

	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d steps of trace %s: %w", len(texts), tr.ID, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder %s returned %d vectors for %d steps", e.embedder.Name(), len(vectors), len(texts))
	}
	if dim := e.embedder.Dimension(); dim > 0 {
		for i, vec := range vectors {
			if len(vec) != dim {
				return nil, fmt.Errorf("step %d vector has dimension %d, embedder %s declares %d: %w",
					i, len(vec), e.embedder.Name(), dim, ErrDimension)
			}
		}
	}

	mean, err := Mean(vectors)
	if err != nil {
		return nil, fmt.Errorf("average step vectors for trace %s: %w", tr.ID, err)
	}
	return mean, nil
}

// EncodeAndIndex computes the trace embedding and inserts it into the
// configured index keyed by trace ID. Used for final-mode audits only;
// preview paths call Encode.
func (e *Encoder) EncodeAndIndex(ctx context.Context, tr *trace.ExecutionTrace) ([]float64, error) {
	vec, err := e.Encode(ctx, tr)
	if err != nil {
		return nil, err
	}
	if e.index != nil {
		if err := e.index.Insert(ctx, tr.ID, vec); err != nil {
			return nil, fmt.Errorf("index trace %s: %w", tr.ID, err)
		}
	}
	return vec, nil
}

// FindSimilar returns up to k indexed traces nearest to the given embedding,
// ascending by distance. Without a configured index it returns nil.
func (e *Encoder) FindSimilar(ctx context.Context, vec []float64, k int) ([]similarity.Match, error) {
	if e.index == nil {
		return nil, nil
	}
	return e.index.Search(ctx, vec, k)
}
