// Package trace defines the shared data model for agent execution audits:
// the step-by-step execution trace produced by an external executor, and the
// audit artifacts (violations, scores, drift) derived from it.
package trace

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	ErrImmutable     = errors.New("trace: trace is no longer running")
	ErrInvalidStatus = errors.New("trace: invalid status")
)

// Step is one recorded agent action. Immutable once appended to a trace.
type Step struct {
	Index       int       `json:"index"`
	Thought     string    `json:"thought,omitempty"`
	Action      string    `json:"action,omitempty"`
	Observation string    `json:"observation,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Text returns the step's thought, action and observation joined into the
// single string every analyzer scores against.
func (s Step) Text() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.Thought, s.Action, s.Observation} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// ExecutionTrace is the ordered record of one task execution. Steps are
// append-only while the trace is running; a trace in a terminal status is
// immutable. The audit pipeline only ever reads it.
type ExecutionTrace struct {
	ID          string     `json:"id"`
	AgentID     string     `json:"agentId"`
	Task        string     `json:"task,omitempty"`
	Steps       []Step     `json:"steps"`
	Status      Status     `json:"status"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// New returns a running trace with no steps.
func New(id, agentID, task string) *ExecutionTrace {
	now := time.Now().UTC()
	return &ExecutionTrace{
		ID:        id,
		AgentID:   agentID,
		Task:      task,
		Status:    StatusRunning,
		StartedAt: &now,
	}
}

// AppendStep records the next step. The step index is assigned by the trace;
// callers supply only the content.
func (t *ExecutionTrace) AppendStep(thought, action, observation string) (Step, error) {
	if t.Status != StatusRunning {
		return Step{}, fmt.Errorf("append step to %s trace %s: %w", t.Status, t.ID, ErrImmutable)
	}
	step := Step{
		Index:       len(t.Steps),
		Thought:     thought,
		Action:      action,
		Observation: observation,
		Timestamp:   time.Now().UTC(),
	}
	t.Steps = append(t.Steps, step)
	return step, nil
}

// MarkCompleted moves a running trace to its terminal completed status.
func (t *ExecutionTrace) MarkCompleted() error {
	return t.finish(StatusCompleted)
}

// MarkFailed moves a running trace to its terminal failed status.
func (t *ExecutionTrace) MarkFailed() error {
	return t.finish(StatusFailed)
}

func (t *ExecutionTrace) finish(status Status) error {
	if t.Status != StatusRunning {
		return fmt.Errorf("finish trace %s: %w", t.ID, ErrImmutable)
	}
	now := time.Now().UTC()
	t.Status = status
	t.CompletedAt = &now
	return nil
}

// Validate checks structural soundness: a known status, and step indices
// contiguous from zero in recorded order.
func (t *ExecutionTrace) Validate() error {
	switch t.Status {
	case StatusRunning, StatusCompleted, StatusFailed:
	default:
		return fmt.Errorf("trace %s status %q: %w", t.ID, t.Status, ErrInvalidStatus)
	}
	for i, step := range t.Steps {
		if step.Index != i {
			return fmt.Errorf("trace %s: step at position %d has index %d", t.ID, i, step.Index)
		}
	}
	return nil
}

// JoinedText concatenates every step's text in order, for whole-trace
// pattern evaluation.
func (t *ExecutionTrace) JoinedText() string {
	parts := make([]string, 0, len(t.Steps))
	for _, step := range t.Steps {
		parts = append(parts, step.Text())
	}
	return strings.Join(parts, " ")
}
