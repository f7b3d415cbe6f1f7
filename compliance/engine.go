package compliance

import (
	"time"

	"github.com/spectracehq/audit-sdk-go/trace"
)

const maxMatchedText = 200

// Check evaluates the trace against the ruleset and returns one
// ViolationRecord per matching (step, rule) pair, followed by whole-trace
// matches. Output order is fully deterministic: step index ascending, rules
// in declaration order within a step, then trace-scope rules in declaration
// order. Timestamps are taken from the trace itself so identical inputs
// yield identical output.
func (rs *RuleSet) Check(tr *trace.ExecutionTrace) []trace.ViolationRecord {
	if tr == nil || len(tr.Steps) == 0 {
		return nil
	}

	var out []trace.ViolationRecord
	for _, step := range tr.Steps {
		text := step.Text()
		for _, rule := range rs.rules {
			if rule.decl.Scope != ScopeStep {
				continue
			}
			matched, ok := rule.match(text)
			if !ok {
				continue
			}
			idx := step.Index
			out = append(out, record(rule.decl, &idx, matched, step.Timestamp))
		}
	}

	joined := tr.JoinedText()
	for _, rule := range rs.rules {
		if rule.decl.Scope != ScopeTrace {
			continue
		}
		matched, ok := rule.match(joined)
		if !ok {
			continue
		}
		out = append(out, record(rule.decl, nil, matched, traceStamp(tr)))
	}
	return out
}

// CheckStep evaluates only the step-scoped rules against a single step, for
// incremental live-mode scoring.
func (rs *RuleSet) CheckStep(step trace.Step) []trace.ViolationRecord {
	text := step.Text()
	var out []trace.ViolationRecord
	for _, rule := range rs.rules {
		if rule.decl.Scope != ScopeStep {
			continue
		}
		matched, ok := rule.match(text)
		if !ok {
			continue
		}
		idx := step.Index
		out = append(out, record(rule.decl, &idx, matched, step.Timestamp))
	}
	return out
}

func record(decl Rule, stepIndex *int, matched string, ts time.Time) trace.ViolationRecord {
	if len(matched) > maxMatchedText {
		matched = matched[:maxMatchedText]
	}
	return trace.ViolationRecord{
		RuleID:      decl.ID,
		RuleName:    decl.Name,
		Severity:    decl.Severity,
		StepIndex:   stepIndex,
		Description: decl.Description,
		MatchedText: matched,
		Timestamp:   ts,
	}
}

func traceStamp(tr *trace.ExecutionTrace) time.Time {
	if tr.CompletedAt != nil {
		return *tr.CompletedAt
	}
	if n := len(tr.Steps); n > 0 {
		return tr.Steps[n-1].Timestamp
	}
	return time.Time{}
}
