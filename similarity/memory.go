package similarity

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryIndex is a flat in-process index: every query scans all entries.
// Writes take the write lock; searches share the read lock.
type MemoryIndex struct {
	mu      sync.RWMutex
	dim     int
	vectors map[string][]float64
	order   []string
}

var _ Index = (*MemoryIndex)(nil)

// NewMemoryIndex returns an empty index. A positive dim is enforced on every
// insert; dim 0 adopts the dimension of the first inserted vector.
func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{
		dim:     dim,
		vectors: make(map[string][]float64),
	}
}

func (m *MemoryIndex) Insert(_ context.Context, traceID string, vector []float64) error {
	if traceID == "" {
		return fmt.Errorf("similarity: trace id is required")
	}
	if len(vector) == 0 {
		return ErrEmptyVector
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dim == 0 {
		m.dim = len(vector)
	}
	if len(vector) != m.dim {
		return fmt.Errorf("insert %s: vector dimension %d, index dimension %d: %w",
			traceID, len(vector), m.dim, ErrDimensionMismatch)
	}

	if _, exists := m.vectors[traceID]; !exists {
		m.order = append(m.order, traceID)
	}
	stored := make([]float64, len(vector))
	copy(stored, vector)
	m.vectors[traceID] = stored
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, vector []float64, k int) ([]Match, error) {
	if len(vector) == 0 {
		return nil, ErrEmptyVector
	}
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.vectors) == 0 {
		return nil, nil
	}
	if m.dim != 0 && len(vector) != m.dim {
		return nil, fmt.Errorf("search: query dimension %d, index dimension %d: %w",
			len(vector), m.dim, ErrDimensionMismatch)
	}

	matches := make([]Match, 0, len(m.order))
	for _, id := range m.order {
		dist, err := EuclideanDistance(vector, m.vectors[id])
		if err != nil {
			return nil, fmt.Errorf("search against %s: %w", id, err)
		}
		matches = append(matches, Match{TraceID: id, Distance: dist})
	}

	// Ties break on trace ID so repeated queries stay deterministic.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].TraceID < matches[j].TraceID
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}
