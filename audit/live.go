package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spectracehq/audit-sdk-go/compliance"
	"github.com/spectracehq/audit-sdk-go/observe"
	"github.com/spectracehq/audit-sdk-go/trace"
)

// ErrSessionClosed is returned once a live session has been finalized or
// closed.
var ErrSessionClosed = errors.New("audit: live session closed")

// LiveSession scores an in-flight trace step by step. Each Step call
// appends to the trace, runs the step-scoped compliance rules and the
// deception scorer over the new step, and reports the cumulative risk so
// far. Trace-scoped rules and the behavioral embedding only run at
// Finalize, which performs the full final audit.
type LiveSession struct {
	auditor *Auditor
	tr      *trace.ExecutionTrace

	mu         sync.Mutex
	violations []trace.ViolationRecord
	updates    chan trace.StepUpdate
	closed     bool
}

// StartLive begins incremental auditing of a running trace. Updates are
// delivered on a buffered channel; slow consumers miss updates rather than
// blocking the agent.
func (a *Auditor) StartLive(tr *trace.ExecutionTrace, buffer int) (*LiveSession, error) {
	if tr == nil {
		return nil, errors.New("trace is required")
	}
	if tr.Status != trace.StatusRunning {
		return nil, fmt.Errorf("live audit requires a running trace, got status %q", tr.Status)
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &LiveSession{
		auditor: a,
		tr:      tr,
		updates: make(chan trace.StepUpdate, buffer),
	}, nil
}

// Trace exposes the underlying trace being audited.
func (s *LiveSession) Trace() *trace.ExecutionTrace {
	return s.tr
}

// Updates streams one StepUpdate per Step call. The channel closes when
// the session is finalized or closed.
func (s *LiveSession) Updates() <-chan trace.StepUpdate {
	return s.updates
}

// Step records the next agent step and returns its incremental scoring.
func (s *LiveSession) Step(ctx context.Context, thought, action, observation string) (trace.StepUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return trace.StepUpdate{}, ErrSessionClosed
	}

	step, err := s.tr.AppendStep(thought, action, observation)
	if err != nil {
		return trace.StepUpdate{}, err
	}

	newViolations := s.auditor.rules.CheckStep(step)
	s.violations = append(s.violations, newViolations...)

	update := trace.StepUpdate{
		TraceID:        s.tr.ID,
		StepIndex:      step.Index,
		CumulativeRisk: compliance.CalculateRisk(s.violations, s.auditor.risk),
		StepDeception:  s.auditor.detector.ScoreText(step.Text()),
		NewViolations:  newViolations,
	}

	for _, v := range newViolations {
		_ = s.auditor.sink.Emit(ctx, observe.ViolationFound(s.tr.ID, s.tr.AgentID, v))
	}
	_ = s.auditor.sink.Emit(ctx, observe.StepScored(s.tr.AgentID, update))

	select {
	case s.updates <- update:
	default:
	}
	return update, nil
}

// Finalize completes the trace and runs the full final audit, including
// trace-scoped rules, deception analysis, and indexing of the embedding.
func (s *LiveSession) Finalize(ctx context.Context) (*trace.AuditResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.closed = true
	close(s.updates)
	s.mu.Unlock()

	if s.tr.Status == trace.StatusRunning {
		if err := s.tr.MarkCompleted(); err != nil {
			return nil, err
		}
	}
	return s.auditor.Audit(ctx, s.tr)
}

// Close ends the session without auditing. The underlying trace is left
// untouched.
func (s *LiveSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.updates)
	}
}
