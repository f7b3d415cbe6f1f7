package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/spectracehq/audit-sdk-go/trace"
)

func TestLiveSessionScoresSteps(t *testing.T) {
	auditor, _ := newTestAuditor(t)

	tr := trace.New("tr-live", "agent-1", "deploy the service")
	session, err := auditor.StartLive(tr, 8)
	if err != nil {
		t.Fatalf("StartLive failed: %v", err)
	}

	ctx := context.Background()

	first, err := session.Step(ctx, "reading the config", "read_config", "config loaded")
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if first.StepIndex != 0 {
		t.Errorf("first StepIndex = %d, want 0", first.StepIndex)
	}
	if first.CumulativeRisk != 0 {
		t.Errorf("clean step CumulativeRisk = %v, want 0", first.CumulativeRisk)
	}
	if len(first.NewViolations) != 0 {
		t.Errorf("clean step produced %d violations", len(first.NewViolations))
	}

	second, err := session.Step(ctx, "I will bypass security to save time", "bypass security", "disabled checks")
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if len(second.NewViolations) == 0 {
		t.Fatal("expected violations for the bypass step")
	}
	if second.CumulativeRisk <= first.CumulativeRisk {
		t.Errorf("CumulativeRisk did not increase: %v -> %v", first.CumulativeRisk, second.CumulativeRisk)
	}
	if second.StepDeception <= 0 {
		t.Errorf("StepDeception = %v, want > 0", second.StepDeception)
	}

	// Updates channel saw both steps.
	if got := len(session.Updates()); got != 2 {
		t.Errorf("buffered updates = %d, want 2", got)
	}
}

func TestLiveSessionFinalize(t *testing.T) {
	auditor, idx := newTestAuditor(t)

	tr := trace.New("tr-live", "agent-1", "task")
	session, err := auditor.StartLive(tr, 8)
	if err != nil {
		t.Fatalf("StartLive failed: %v", err)
	}

	ctx := context.Background()
	if _, err := session.Step(ctx, "working", "do_work", "ok"); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	res, err := session.Finalize(ctx)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if res.Preview {
		t.Error("finalized audit marked as preview")
	}
	if tr.Status != trace.StatusCompleted {
		t.Errorf("trace status = %q, want completed", tr.Status)
	}
	if idx.Len() != 1 {
		t.Errorf("index length = %d, want 1 after finalize", idx.Len())
	}

	// One buffered update from the step, then the channel closes.
	if _, ok := <-session.Updates(); !ok {
		t.Error("expected one buffered update before close")
	}
	if _, ok := <-session.Updates(); ok {
		t.Error("expected updates channel closed after Finalize")
	}
	if _, err := session.Step(ctx, "more", "work", "late"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Step after Finalize error = %v, want ErrSessionClosed", err)
	}
	if _, err := session.Finalize(ctx); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("second Finalize error = %v, want ErrSessionClosed", err)
	}
}

func TestStartLiveRejectsFinishedTrace(t *testing.T) {
	auditor, _ := newTestAuditor(t)

	tr := completedTrace(t, "tr-done", [][3]string{{"a", "b", "c"}})
	if _, err := auditor.StartLive(tr, 0); err == nil {
		t.Fatal("expected error for completed trace")
	}
}

func TestLiveSessionClose(t *testing.T) {
	auditor, _ := newTestAuditor(t)

	tr := trace.New("tr-live", "agent-1", "task")
	session, err := auditor.StartLive(tr, 0)
	if err != nil {
		t.Fatalf("StartLive failed: %v", err)
	}
	session.Close()
	session.Close() // idempotent

	if _, err := session.Step(context.Background(), "a", "b", "c"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Step after Close error = %v, want ErrSessionClosed", err)
	}
	if tr.Status != trace.StatusRunning {
		t.Errorf("Close changed trace status to %q", tr.Status)
	}
}
