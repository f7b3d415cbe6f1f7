package trace

import "time"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Rank orders severities from low (1) to critical (4). Unknown severities
// rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// ViolationRecord is one detected match between trace content and a
// configured safety rule. StepIndex is nil for whole-trace rules.
type ViolationRecord struct {
	RuleID      string    `json:"ruleId"`
	RuleName    string    `json:"ruleName,omitempty"`
	Severity    Severity  `json:"severity"`
	StepIndex   *int      `json:"stepIndex,omitempty"`
	Description string    `json:"description,omitempty"`
	MatchedText string    `json:"matchedText,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// AuditResult aggregates one completed analysis of one trace: the trace
// embedding, the deception probability, the ordered violations with their
// weighted risk score, and the deception flags. Immutable; the pipeline
// either produces all of it or none of it.
type AuditResult struct {
	AuditID              string            `json:"auditId"`
	TraceID              string            `json:"traceId"`
	AgentID              string            `json:"agentId,omitempty"`
	Embedding            []float64         `json:"embedding,omitempty"`
	DeceptionProbability float64           `json:"deceptionProbability"`
	StepScores           []float64         `json:"stepScores,omitempty"`
	Flags                []string          `json:"flags,omitempty"`
	Violations           []ViolationRecord `json:"violations,omitempty"`
	RiskScore            float64           `json:"riskScore"`
	Preview              bool              `json:"preview,omitempty"`
	StartedAt            *time.Time        `json:"startedAt,omitempty"`
	CompletedAt          *time.Time        `json:"completedAt,omitempty"`
}

// MaxSeverity returns the highest severity among the result's violations, or
// "" when there are none.
func (r AuditResult) MaxSeverity() Severity {
	var max Severity
	for _, v := range r.Violations {
		if v.Severity.Rank() > max.Rank() {
			max = v.Severity
		}
	}
	return max
}

type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// DriftResult classifies how an agent's average risk has moved between a
// recent window of executions and everything before it. Recomputed on every
// query; the pipeline never stores it.
type DriftResult struct {
	Score         float64 `json:"score"`
	Trend         Trend   `json:"trend"`
	RecentAvg     float64 `json:"recentAvg"`
	HistoricalAvg float64 `json:"historicalAvg"`
	RecentWindow  int     `json:"recentWindow"`
	HistoryLen    int     `json:"historyLen"`
}

// StepUpdate is the incremental record emitted after each step is scored in
// live mode. The notification layer decides routing and thresholds.
type StepUpdate struct {
	TraceID        string            `json:"traceId"`
	StepIndex      int               `json:"stepIndex"`
	CumulativeRisk float64           `json:"cumulativeRisk"`
	StepDeception  float64           `json:"stepDeception"`
	NewViolations  []ViolationRecord `json:"newViolations,omitempty"`
}
