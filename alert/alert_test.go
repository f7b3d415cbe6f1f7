package alert

import (
	"strings"
	"testing"

	"github.com/spectracehq/audit-sdk-go/trace"
)

func TestDefaultRoutesTable(t *testing.T) {
	routes := DefaultRoutes()

	critical := routes[trace.SeverityCritical]
	if len(critical) != 4 {
		t.Fatalf("expected 4 critical channels, got %d", len(critical))
	}
	if critical[3] != ChannelSMS {
		t.Errorf("expected sms as the last critical channel, got %q", critical[3])
	}
	low := routes[trace.SeverityLow]
	if len(low) != 1 || low[0] != ChannelDiscord {
		t.Errorf("expected low severity to route to discord only, got %v", low)
	}
}

func TestFromResultBelowThresholds(t *testing.T) {
	res := &trace.AuditResult{
		AuditID:              "aud-1",
		TraceID:              "tr-1",
		RiskScore:            0.2,
		DeceptionProbability: 0.1,
	}
	if _, ok := FromResult(res, DefaultPolicy()); ok {
		t.Fatal("expected no alert below all thresholds")
	}
}

func TestFromResultRiskThreshold(t *testing.T) {
	res := &trace.AuditResult{
		AuditID:   "aud-1",
		TraceID:   "tr-1",
		AgentID:   "agent-1",
		RiskScore: 0.82,
	}
	a, ok := FromResult(res, DefaultPolicy())
	if !ok {
		t.Fatal("expected an alert at risk 0.82")
	}
	if a.Severity != trace.SeverityHigh {
		t.Errorf("expected high severity, got %q", a.Severity)
	}
	if a.Title != "Audit flagged agent agent-1" {
		t.Errorf("unexpected title %q", a.Title)
	}
	if !strings.Contains(a.Message, "risk score 0.82") {
		t.Errorf("expected risk reason in message, got %q", a.Message)
	}
	if a.RiskScore != 0.82 || a.TraceID != "tr-1" || a.AuditID != "aud-1" {
		t.Errorf("alert did not carry result identity: %+v", a)
	}
}

func TestFromResultCriticalViolation(t *testing.T) {
	res := &trace.AuditResult{
		AuditID:   "aud-2",
		TraceID:   "tr-2",
		RiskScore: 1.0,
		Violations: []trace.ViolationRecord{
			{RuleID: "no-credential-leak", Severity: trace.SeverityCritical},
		},
	}
	a, ok := FromResult(res, DefaultPolicy())
	if !ok {
		t.Fatal("expected an alert")
	}
	if a.Severity != trace.SeverityCritical {
		t.Errorf("expected critical severity from the violation, got %q", a.Severity)
	}
	if !strings.Contains(a.Message, "1 violation(s) at high or above") {
		t.Errorf("expected violation reason in message, got %q", a.Message)
	}
	if len(a.Violations) != 1 {
		t.Errorf("expected violations carried on the alert, got %d", len(a.Violations))
	}
}

func TestFromResultIgnoresPreview(t *testing.T) {
	res := &trace.AuditResult{TraceID: "tr-3", RiskScore: 0.95, Preview: true}
	if _, ok := FromResult(res, DefaultPolicy()); ok {
		t.Fatal("preview results must not alert")
	}
	if _, ok := FromResult(nil, DefaultPolicy()); ok {
		t.Fatal("nil result must not alert")
	}
}

func TestFromDrift(t *testing.T) {
	if _, ok := FromDrift("agent-1", trace.DriftResult{Trend: trace.TrendStable}); ok {
		t.Fatal("stable trend must not alert")
	}
	if _, ok := FromDrift("agent-1", trace.DriftResult{Trend: trace.TrendDecreasing, Score: -0.3}); ok {
		t.Fatal("decreasing trend must not alert")
	}

	a, ok := FromDrift("agent-1", trace.DriftResult{
		Trend:         trace.TrendIncreasing,
		Score:         0.2,
		RecentAvg:     0.75,
		HistoricalAvg: 0.55,
		RecentWindow:  10,
	})
	if !ok {
		t.Fatal("expected an alert for an increasing trend")
	}
	if a.Severity != trace.SeverityHigh {
		t.Errorf("expected high severity at recent avg 0.75, got %q", a.Severity)
	}
	if a.AgentID != "agent-1" {
		t.Errorf("expected agent id on the alert, got %q", a.AgentID)
	}
	if !strings.Contains(a.Message, "+0.20") {
		t.Errorf("expected drift magnitude in message, got %q", a.Message)
	}

	a, ok = FromDrift("agent-2", trace.DriftResult{
		Trend:     trace.TrendIncreasing,
		Score:     0.15,
		RecentAvg: 0.35,
	})
	if !ok || a.Severity != trace.SeverityMedium {
		t.Errorf("expected medium severity for a mild increase, got %q", a.Severity)
	}
}

func TestSummaryCapsViolations(t *testing.T) {
	a := Alert{
		Severity:  trace.SeverityHigh,
		Title:     "Audit flagged agent agent-1",
		RiskScore: 0.8,
	}
	for i := 0; i < 7; i++ {
		a.Violations = append(a.Violations, trace.ViolationRecord{
			RuleID:      "rule-x",
			Severity:    trace.SeverityMedium,
			Description: "matched",
		})
	}

	s := a.Summary()
	if got := strings.Count(s, "\n- "); got != maxSummaryViolations {
		t.Errorf("expected %d violation lines, got %d", maxSummaryViolations, got)
	}
	if !strings.Contains(s, "...and 2 more violations") {
		t.Errorf("expected overflow note, got %q", s)
	}
	if !strings.Contains(s, "Severity: HIGH") {
		t.Errorf("expected uppercase severity line, got %q", s)
	}
}
