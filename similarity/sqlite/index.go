// Package sqlite persists the similarity index so nearest-neighbor lookups
// survive restarts. Vectors are mirrored into an in-memory flat index at
// open; searches never touch the database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spectracehq/audit-sdk-go/similarity"
)

//go:embed schema.sql
var schemaSQL string

const defaultBusyTimeout = 5 * time.Second

type Index struct {
	db          *sql.DB
	mem         *similarity.MemoryIndex
	busyTimeout time.Duration
	enableWAL   bool
}

var _ similarity.Index = (*Index)(nil)

type Option func(*Index)

func WithBusyTimeout(timeout time.Duration) Option {
	return func(i *Index) {
		if timeout >= 0 {
			i.busyTimeout = timeout
		}
	}
}

func WithWAL(enabled bool) Option {
	return func(i *Index) { i.enableWAL = enabled }
}

// New opens (or creates) the index database at path and loads all stored
// vectors into memory. dim 0 adopts the dimension of the first vector seen.
func New(path string, dim int, opts ...Option) (*Index, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite index path is required")
	}

	idx := &Index{
		mem:         similarity.NewMemoryIndex(dim),
		busyTimeout: defaultBusyTimeout,
		enableWAL:   true,
	}
	for _, opt := range opts {
		opt(idx)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sqlite index directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite index db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	idx.db = db

	if err := idx.initialize(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := idx.warm(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (i *Index) initialize(ctx context.Context) error {
	if i.busyTimeout > 0 {
		ms := i.busyTimeout.Milliseconds()
		if _, err := i.db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d;", ms)); err != nil {
			return fmt.Errorf("failed to set busy_timeout: %w", err)
		}
	}
	if i.enableWAL {
		if _, err := i.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("failed to enable WAL: %w", err)
		}
	}
	if _, err := i.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply index schema: %w", err)
	}
	return nil
}

func (i *Index) warm(ctx context.Context) error {
	rows, err := i.db.QueryContext(ctx, `SELECT trace_id, vector FROM trace_vectors ORDER BY created_at ASC, trace_id ASC`)
	if err != nil {
		return fmt.Errorf("failed to load stored vectors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var traceID, raw string
		if err := rows.Scan(&traceID, &raw); err != nil {
			return fmt.Errorf("failed to scan stored vector: %w", err)
		}
		var vec []float64
		if err := json.Unmarshal([]byte(raw), &vec); err != nil {
			return fmt.Errorf("failed to decode vector for %s: %w", traceID, err)
		}
		if err := i.mem.Insert(ctx, traceID, vec); err != nil {
			return fmt.Errorf("failed to warm vector for %s: %w", traceID, err)
		}
	}
	return rows.Err()
}

func (i *Index) Insert(ctx context.Context, traceID string, vector []float64) error {
	if traceID == "" {
		return fmt.Errorf("similarity: trace id is required")
	}
	if len(vector) == 0 {
		return similarity.ErrEmptyVector
	}

	raw, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to encode vector for %s: %w", traceID, err)
	}
	_, err = i.db.ExecContext(ctx, `
INSERT INTO trace_vectors (trace_id, dimension, vector, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(trace_id) DO UPDATE SET
    dimension = excluded.dimension,
    vector = excluded.vector`,
		traceID, len(vector), string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store vector for %s: %w", traceID, err)
	}
	return i.mem.Insert(ctx, traceID, vector)
}

func (i *Index) Search(ctx context.Context, vector []float64, k int) ([]similarity.Match, error) {
	return i.mem.Search(ctx, vector, k)
}

func (i *Index) Len() int { return i.mem.Len() }

func (i *Index) Close() error {
	if i.db == nil {
		return nil
	}
	return i.db.Close()
}
