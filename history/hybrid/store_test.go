package hybrid

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/spectracehq/audit-sdk-go/history"
	"github.com/spectracehq/audit-sdk-go/trace"
)

type memoryStore struct {
	mu         sync.Mutex
	results    map[string]trace.AuditResult
	failWrites bool
	saves      int
	gets       int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{results: map[string]trace.AuditResult{}}
}

func (m *memoryStore) SaveResult(_ context.Context, res trace.AuditResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.failWrites {
		return errors.New("write failed")
	}
	m.results[res.AuditID] = res
	return nil
}

func (m *memoryStore) GetResult(_ context.Context, auditID string) (trace.AuditResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	res, ok := m.results[auditID]
	if !ok {
		return trace.AuditResult{}, history.ErrNotFound
	}
	return res, nil
}

func (m *memoryStore) ListResults(_ context.Context, _ history.ListQuery) ([]trace.AuditResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]trace.AuditResult, 0, len(m.results))
	for _, res := range m.results {
		out = append(out, res)
	}
	return out, nil
}

func (m *memoryStore) RiskHistory(_ context.Context, _ string, _ int) ([]float64, error) {
	return []float64{0.5}, nil
}

func (m *memoryStore) ViolationCounts(_ context.Context, _ string) (history.ViolationSummary, error) {
	return history.ViolationSummary{Total: int64(len(m.results))}, nil
}

func (m *memoryStore) Agents(_ context.Context) ([]string, error) { return nil, nil }
func (m *memoryStore) Close() error                               { return nil }

func TestHybridWritesThrough(t *testing.T) {
	durable := newMemoryStore()
	cache := newMemoryStore()
	h, err := New(durable, cache)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res := trace.AuditResult{AuditID: "aud-1", TraceID: "tr-1", AgentID: "agent-1"}
	if err := h.SaveResult(context.Background(), res); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}
	if len(durable.results) != 1 || len(cache.results) != 1 {
		t.Errorf("write-through: durable=%d cache=%d, want 1/1", len(durable.results), len(cache.results))
	}
}

func TestHybridCacheFailureDoesNotFailWrites(t *testing.T) {
	durable := newMemoryStore()
	cache := newMemoryStore()
	cache.failWrites = true
	h, _ := New(durable, cache)

	res := trace.AuditResult{AuditID: "aud-1", TraceID: "tr-1", AgentID: "agent-1"}
	if err := h.SaveResult(context.Background(), res); err != nil {
		t.Fatalf("SaveResult should tolerate cache failure, got: %v", err)
	}
	if len(durable.results) != 1 {
		t.Errorf("durable missed the write")
	}
}

func TestHybridReadsBackfillCache(t *testing.T) {
	durable := newMemoryStore()
	cache := newMemoryStore()
	h, _ := New(durable, cache)

	res := trace.AuditResult{AuditID: "aud-1", TraceID: "tr-1", AgentID: "agent-1"}
	durable.results["aud-1"] = res

	got, err := h.GetResult(context.Background(), "aud-1")
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if got.AuditID != "aud-1" {
		t.Errorf("unexpected result: %#v", got)
	}
	if len(cache.results) != 1 {
		t.Error("expected cache backfill after durable hit")
	}

	// Second read is served by the cache.
	durableGets := durable.gets
	if _, err := h.GetResult(context.Background(), "aud-1"); err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if durable.gets != durableGets {
		t.Error("expected second read to hit the cache only")
	}
}

func TestHybridMissingResult(t *testing.T) {
	durable := newMemoryStore()
	h, _ := New(durable, nil)
	if _, err := h.GetResult(context.Background(), "nope"); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("GetResult error = %v, want ErrNotFound", err)
	}
}

func TestHybridRequiresDurable(t *testing.T) {
	if _, err := New(nil, newMemoryStore()); err == nil {
		t.Fatal("expected error without durable store")
	}
}

func TestHybridAnalyticsUseDurable(t *testing.T) {
	durable := newMemoryStore()
	durable.results["aud-1"] = trace.AuditResult{AuditID: "aud-1"}
	cache := newMemoryStore()
	h, _ := New(durable, cache)

	summary, err := h.ViolationCounts(context.Background(), "")
	if err != nil {
		t.Fatalf("ViolationCounts failed: %v", err)
	}
	if summary.Total != 1 {
		t.Errorf("summary from durable store = %+v", summary)
	}
}
