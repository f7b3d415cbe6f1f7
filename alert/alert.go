// Package alert turns audit findings into notifications and routes them to
// delivery channels by severity. Critical findings fan out to every channel,
// low-severity ones reach only the chat webhook.
package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/spectracehq/audit-sdk-go/trace"
)

// Channel names one delivery route. The four built-in channels mirror the
// production routing table; callers may register notifiers under additional
// channel names of their own.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelSlack   Channel = "slack"
	ChannelDiscord Channel = "discord"
	ChannelSMS     Channel = "sms"
)

const maxSummaryViolations = 5

// Alert is a single notification-worthy finding.
type Alert struct {
	Severity   trace.Severity          `json:"severity"`
	Title      string                  `json:"title"`
	Message    string                  `json:"message,omitempty"`
	TraceID    string                  `json:"traceId,omitempty"`
	AgentID    string                  `json:"agentId,omitempty"`
	AuditID    string                  `json:"auditId,omitempty"`
	RiskScore  float64                 `json:"riskScore,omitempty"`
	Violations []trace.ViolationRecord `json:"violations,omitempty"`
	CreatedAt  time.Time               `json:"createdAt"`
}

// Summary renders the alert as plain text for log- and SMS-style channels.
// At most five violations are listed.
func (a Alert) Summary() string {
	var b strings.Builder
	b.WriteString(a.Title)
	fmt.Fprintf(&b, "\nSeverity: %s", strings.ToUpper(string(a.Severity)))
	fmt.Fprintf(&b, "\nRisk: %.2f", a.RiskScore)
	if a.TraceID != "" {
		fmt.Fprintf(&b, "\nTrace: %s", a.TraceID)
	}
	if a.Message != "" {
		b.WriteString("\n")
		b.WriteString(a.Message)
	}
	for i, v := range a.Violations {
		if i == maxSummaryViolations {
			fmt.Fprintf(&b, "\n...and %d more violations", len(a.Violations)-maxSummaryViolations)
			break
		}
		name := v.RuleName
		if name == "" {
			name = v.RuleID
		}
		fmt.Fprintf(&b, "\n- %s (%s): %s", name, v.Severity, v.Description)
	}
	return b.String()
}

// Routes maps a severity to the channels its alerts fan out to.
type Routes map[trace.Severity][]Channel

// DefaultRoutes returns the standard routing table. Alerts with a severity
// missing from the table fall back to the discord channel alone.
func DefaultRoutes() Routes {
	return Routes{
		trace.SeverityCritical: {ChannelEmail, ChannelSlack, ChannelDiscord, ChannelSMS},
		trace.SeverityHigh:     {ChannelEmail, ChannelSlack, ChannelDiscord},
		trace.SeverityMedium:   {ChannelSlack, ChannelDiscord},
		trace.SeverityLow:      {ChannelDiscord},
	}
}

// Policy decides which audit results deserve an alert. A zero threshold
// disables that trigger.
type Policy struct {
	// MinRisk triggers when the result's risk score is at or above it.
	MinRisk float64
	// MinDeception triggers when the deception probability is at or above it.
	MinDeception float64
	// MinSeverity triggers when any violation ranks at or above it.
	MinSeverity trace.Severity
}

// DefaultPolicy alerts on the thresholds the production monitor treats as
// "not recommended": risk at 0.7, deception at 0.6, or any high-severity
// violation.
func DefaultPolicy() Policy {
	return Policy{
		MinRisk:      0.7,
		MinDeception: 0.6,
		MinSeverity:  trace.SeverityHigh,
	}
}

// FromResult derives an alert from a finished audit, or reports false when
// the result crosses none of the policy thresholds. Preview results never
// alert.
func FromResult(res *trace.AuditResult, p Policy) (Alert, bool) {
	if res == nil || res.Preview {
		return Alert{}, false
	}

	var reasons []string
	scoresHit := false
	if p.MinRisk > 0 && res.RiskScore >= p.MinRisk {
		reasons = append(reasons, fmt.Sprintf("risk score %.2f", res.RiskScore))
		scoresHit = true
	}
	if p.MinDeception > 0 && res.DeceptionProbability >= p.MinDeception {
		reasons = append(reasons, fmt.Sprintf("deception probability %.2f", res.DeceptionProbability))
		scoresHit = true
	}
	flagged := 0
	if p.MinSeverity != "" {
		for _, v := range res.Violations {
			if v.Severity.Rank() >= p.MinSeverity.Rank() {
				flagged++
			}
		}
		if flagged > 0 {
			reasons = append(reasons, fmt.Sprintf("%d violation(s) at %s or above", flagged, p.MinSeverity))
		}
	}
	if len(reasons) == 0 {
		return Alert{}, false
	}

	var severity trace.Severity
	if flagged > 0 {
		severity = res.MaxSeverity()
	}
	if scoresHit && severity.Rank() < trace.SeverityHigh.Rank() {
		severity = trace.SeverityHigh
	}

	title := fmt.Sprintf("Audit flagged trace %s", res.TraceID)
	if res.AgentID != "" {
		title = fmt.Sprintf("Audit flagged agent %s", res.AgentID)
	}

	return Alert{
		Severity:   severity,
		Title:      title,
		Message:    strings.Join(reasons, ", "),
		TraceID:    res.TraceID,
		AgentID:    res.AgentID,
		AuditID:    res.AuditID,
		RiskScore:  res.RiskScore,
		Violations: res.Violations,
		CreatedAt:  time.Now().UTC(),
	}, true
}

// FromDrift converts a drift measurement into an alert when the trend is
// increasing. Stable and decreasing trends never alert. The alert is high
// severity when the recent average itself sits at the risk bar, medium
// otherwise.
func FromDrift(agentID string, d trace.DriftResult) (Alert, bool) {
	if d.Trend != trace.TrendIncreasing {
		return Alert{}, false
	}
	severity := trace.SeverityMedium
	if d.RecentAvg >= 0.7 {
		severity = trace.SeverityHigh
	}
	return Alert{
		Severity: severity,
		Title:    fmt.Sprintf("Risk increasing for agent %s", agentID),
		Message: fmt.Sprintf("risk drift +%.2f over last %d runs (recent avg %.2f, historical avg %.2f)",
			d.Score, d.RecentWindow, d.RecentAvg, d.HistoricalAvg),
		AgentID:   agentID,
		RiskScore: d.RecentAvg,
		CreatedAt: time.Now().UTC(),
	}, true
}
