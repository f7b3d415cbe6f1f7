package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spectracehq/audit-sdk-go/history"
	"github.com/spectracehq/audit-sdk-go/trace"
)

func newTestRedisStore(t *testing.T) *Store {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	prefix := "audit-test-" + uuid.NewString()

	s, err := New(addr, WithPrefix(prefix), WithTTL(5*time.Minute))
	if err != nil {
		t.Skipf("redis unavailable at %s: %v", addr, err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		keys, _ := s.client.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			_ = s.client.Del(ctx, keys...).Err()
		}
		_ = s.Close()
	})
	return s
}

func redisResult(auditID, agentID string, risk float64, completedAt time.Time) trace.AuditResult {
	return trace.AuditResult{
		AuditID:              auditID,
		TraceID:              "tr-" + auditID,
		AgentID:              agentID,
		RiskScore:            risk,
		DeceptionProbability: 0.1,
		Violations: []trace.ViolationRecord{
			{RuleID: "no_deception", Severity: trace.SeverityHigh},
		},
		CompletedAt: &completedAt,
	}
}

func TestRedisStore_SaveGetList(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		res := redisResult(fmt.Sprintf("aud-%d", i), "agent-1", float64(i)*0.3, base.Add(time.Duration(i)*time.Minute))
		if err := s.SaveResult(ctx, res); err != nil {
			t.Fatalf("SaveResult failed: %v", err)
		}
	}

	got, err := s.GetResult(ctx, "aud-1")
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if got.AgentID != "agent-1" || got.RiskScore != 0.3 {
		t.Errorf("unexpected result: %#v", got)
	}

	list, err := s.ListResults(ctx, history.ListQuery{AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("ListResults = %d results, want 3", len(list))
	}
	if list[0].AuditID != "aud-2" {
		t.Errorf("newest first: got %s, want aud-2", list[0].AuditID)
	}

	risky, err := s.ListResults(ctx, history.ListQuery{AgentID: "agent-1", MinRisk: 0.5})
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(risky) != 1 || risky[0].AuditID != "aud-2" {
		t.Errorf("MinRisk filter = %+v", risky)
	}
}

func TestRedisStore_GetMissing(t *testing.T) {
	s := newTestRedisStore(t)
	if _, err := s.GetResult(context.Background(), "missing"); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("GetResult error = %v, want ErrNotFound", err)
	}
}

func TestRedisStore_RiskHistoryAndAggregates(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	scores := []float64{0.1, 0.4, 0.2}
	for i, score := range scores {
		res := redisResult(fmt.Sprintf("aud-%d", i), "agent-1", score, base.Add(time.Duration(i)*time.Minute))
		if err := s.SaveResult(ctx, res); err != nil {
			t.Fatalf("SaveResult failed: %v", err)
		}
	}

	hist, err := s.RiskHistory(ctx, "agent-1", 10)
	if err != nil {
		t.Fatalf("RiskHistory failed: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("RiskHistory = %d entries, want 3", len(hist))
	}
	for i, want := range scores {
		if hist[i] != want {
			t.Errorf("RiskHistory[%d] = %v, want %v (chronological)", i, hist[i], want)
		}
	}

	summary, err := s.ViolationCounts(ctx, "agent-1")
	if err != nil {
		t.Fatalf("ViolationCounts failed: %v", err)
	}
	if summary.Total != 3 || summary.ByRule["no_deception"] != 3 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	agents, err := s.Agents(ctx)
	if err != nil {
		t.Fatalf("Agents failed: %v", err)
	}
	if len(agents) != 1 || agents[0] != "agent-1" {
		t.Errorf("Agents = %v", agents)
	}
}
