// Package local implements a deterministic, dependency-free embedder using
// the feature-hashing trick: token unigrams and bigrams are FNV-hashed into
// a fixed number of buckets and the result is L2-normalized. It captures
// lexical overlap only, which is enough for tests, air-gapped runs, and
// smoke-level similarity search; production deployments use one of the
// model-backed embedders.
package local

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const defaultDimension = 384

type Embedder struct {
	dim int
}

type Option func(*Embedder)

func WithDimension(dim int) Option {
	return func(e *Embedder) {
		if dim > 0 {
			e.dim = dim
		}
	}
}

func New(opts ...Option) *Embedder {
	e := &Embedder{dim: defaultDimension}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Embedder) Name() string { return "local" }

func (e *Embedder) Dimension() int { return e.dim }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, e.dim)
	tokens := tokenize(text)
	for i, tok := range tokens {
		addFeature(vec, tok)
		if i > 0 {
			addFeature(vec, tokens[i-1]+" "+tok)
		}
	}
	normalize(vec)
	return vec, nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for _, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func addFeature(vec []float64, feature string) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int((sum >> 1) % uint64(len(vec)))
	if sum&1 == 1 {
		vec[bucket]++
	} else {
		vec[bucket]--
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}
