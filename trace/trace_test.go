package trace

import (
	"errors"
	"testing"
)

func TestAppendStepAssignsContiguousIndices(t *testing.T) {
	tr := New("tr-1", "agent-1", "summarize the report")

	for i := 0; i < 3; i++ {
		step, err := tr.AppendStep("think", "act", "observe")
		if err != nil {
			t.Fatalf("AppendStep(%d) returned error: %v", i, err)
		}
		if step.Index != i {
			t.Errorf("step index = %d, want %d", step.Index, i)
		}
	}
	if err := tr.Validate(); err != nil {
		t.Errorf("Validate() returned error: %v", err)
	}
}

func TestAppendStepAfterTerminalStatus(t *testing.T) {
	tr := New("tr-2", "agent-1", "task")
	if _, err := tr.AppendStep("a", "b", "c"); err != nil {
		t.Fatalf("AppendStep returned error: %v", err)
	}
	if err := tr.MarkCompleted(); err != nil {
		t.Fatalf("MarkCompleted returned error: %v", err)
	}

	if _, err := tr.AppendStep("x", "y", "z"); !errors.Is(err, ErrImmutable) {
		t.Errorf("AppendStep after completion error = %v, want ErrImmutable", err)
	}
	if err := tr.MarkFailed(); !errors.Is(err, ErrImmutable) {
		t.Errorf("MarkFailed after completion error = %v, want ErrImmutable", err)
	}
	if tr.CompletedAt == nil {
		t.Error("CompletedAt not set on completion")
	}
}

func TestStepText(t *testing.T) {
	tests := []struct {
		name string
		step Step
		want string
	}{
		{
			name: "all parts",
			step: Step{Thought: "check the file", Action: "read config.yaml", Observation: "found 3 entries"},
			want: "check the file read config.yaml found 3 entries",
		},
		{
			name: "missing observation",
			step: Step{Thought: "plan", Action: "execute"},
			want: "plan execute",
		},
		{
			name: "whitespace only parts dropped",
			step: Step{Thought: "  ", Action: "run", Observation: ""},
			want: "run",
		},
		{
			name: "empty step",
			step: Step{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.step.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ExecutionTrace)
		wantErr bool
	}{
		{
			name:   "fresh trace",
			mutate: func(*ExecutionTrace) {},
		},
		{
			name: "unknown status",
			mutate: func(tr *ExecutionTrace) {
				tr.Status = Status("paused")
			},
			wantErr: true,
		},
		{
			name: "gap in step indices",
			mutate: func(tr *ExecutionTrace) {
				tr.Steps = []Step{{Index: 0}, {Index: 2}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New("tr-3", "agent-1", "task")
			tt.mutate(tr)
			err := tr.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJoinedText(t *testing.T) {
	tr := New("tr-4", "agent-1", "task")
	tr.AppendStep("first thought", "first action", "")
	tr.AppendStep("", "second action", "done")

	want := "first thought first action second action done"
	if got := tr.JoinedText(); got != want {
		t.Errorf("JoinedText() = %q, want %q", got, want)
	}
}

func TestSeverityRank(t *testing.T) {
	order := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Errorf("Rank(%s) = %d not above Rank(%s) = %d", order[i], order[i].Rank(), order[i-1], order[i-1].Rank())
		}
	}
	if Severity("bogus").Valid() {
		t.Error("Valid() accepted unknown severity")
	}
}

func TestMaxSeverity(t *testing.T) {
	res := AuditResult{Violations: []ViolationRecord{
		{RuleID: "a", Severity: SeverityLow},
		{RuleID: "b", Severity: SeverityCritical},
		{RuleID: "c", Severity: SeverityMedium},
	}}
	if got := res.MaxSeverity(); got != SeverityCritical {
		t.Errorf("MaxSeverity() = %s, want critical", got)
	}
	if got := (AuditResult{}).MaxSeverity(); got != Severity("") {
		t.Errorf("MaxSeverity() on empty = %q, want empty", got)
	}
}
