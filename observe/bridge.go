package observe

import (
	"fmt"
	"time"

	"github.com/spectracehq/audit-sdk-go/trace"
)

// AuditStarted reports that a full audit of the trace has begun.
func AuditStarted(tr *trace.ExecutionTrace, auditID string) Event {
	e := Event{
		Kind:    KindAudit,
		Status:  StatusStarted,
		AuditID: auditID,
		Name:    "audit.run",
	}
	if tr != nil {
		e.TraceID = tr.ID
		e.AgentID = tr.AgentID
		e.Attributes = map[string]any{"steps": len(tr.Steps)}
	}
	e.Normalize()
	return e
}

// AuditCompleted reports a finished audit together with its headline scores.
func AuditCompleted(res *trace.AuditResult, duration time.Duration) Event {
	e := Event{
		Kind:       KindAudit,
		Status:     StatusCompleted,
		Name:       "audit.run",
		DurationMs: duration.Milliseconds(),
	}
	if res != nil {
		e.TraceID = res.TraceID
		e.AgentID = res.AgentID
		e.AuditID = res.AuditID
		e.RiskScore = res.RiskScore
		e.Severity = res.MaxSeverity()
		e.Attributes = map[string]any{
			"violations":           len(res.Violations),
			"deceptionProbability": res.DeceptionProbability,
			"flags":                len(res.Flags),
		}
		if res.Preview {
			e.Attributes["preview"] = true
		}
	}
	e.Normalize()
	return e
}

// AuditFailed reports an audit that ended in an error.
func AuditFailed(tr *trace.ExecutionTrace, auditID string, duration time.Duration, err error) Event {
	e := Event{
		Kind:       KindAudit,
		Status:     StatusFailed,
		AuditID:    auditID,
		Name:       "audit.run",
		DurationMs: duration.Milliseconds(),
	}
	if tr != nil {
		e.TraceID = tr.ID
		e.AgentID = tr.AgentID
	}
	if err != nil {
		e.Error = err.Error()
	}
	e.Normalize()
	return e
}

// StepScored reports an incremental scoring update from a live session.
func StepScored(agentID string, update trace.StepUpdate) Event {
	e := Event{
		Kind:      KindStep,
		Status:    StatusCompleted,
		TraceID:   update.TraceID,
		AgentID:   agentID,
		Name:      fmt.Sprintf("step.%d", update.StepIndex),
		RiskScore: update.CumulativeRisk,
		Attributes: map[string]any{
			"stepIndex":     update.StepIndex,
			"stepDeception": update.StepDeception,
			"newViolations": len(update.NewViolations),
		},
	}
	e.Normalize()
	return e
}

// ViolationFound reports a single compliance rule hit.
func ViolationFound(traceID, agentID string, v trace.ViolationRecord) Event {
	e := Event{
		Kind:     KindViolation,
		Status:   StatusCompleted,
		TraceID:  traceID,
		AgentID:  agentID,
		Name:     "violation." + v.RuleID,
		Severity: v.Severity,
		Message:  v.Description,
		Attributes: map[string]any{
			"ruleId": v.RuleID,
		},
	}
	if v.StepIndex != nil {
		e.Attributes["stepIndex"] = *v.StepIndex
	}
	if v.MatchedText != "" {
		e.Attributes["matchedText"] = v.MatchedText
	}
	e.Normalize()
	return e
}

// DriftComputed reports the outcome of a drift analysis for one agent.
func DriftComputed(agentID string, res trace.DriftResult) Event {
	e := Event{
		Kind:    KindDrift,
		Status:  StatusCompleted,
		AgentID: agentID,
		Name:    "drift." + string(res.Trend),
		Attributes: map[string]any{
			"driftScore":    res.Score,
			"trend":         string(res.Trend),
			"recentAvg":     res.RecentAvg,
			"historicalAvg": res.HistoricalAvg,
			"historyLen":    res.HistoryLen,
		},
	}
	e.Normalize()
	return e
}
