// Package observe defines the audit pipeline's observability event model
// and the sinks that deliver events to log, stream, and tracing backends.
package observe

import (
	"time"

	"github.com/spectracehq/audit-sdk-go/trace"
)

// Kind classifies what part of the pipeline produced an event.
type Kind string

// Status reflects the lifecycle position of the work an event describes.
type Status string

const (
	KindAudit     Kind = "audit"
	KindStep      Kind = "step"
	KindViolation Kind = "violation"
	KindDrift     Kind = "drift"
	KindEncode    Kind = "encode"
	KindAlert     Kind = "alert"
	KindCustom    Kind = "custom"
)

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Event is a single observability record emitted by the audit pipeline.
type Event struct {
	ID         string         `json:"id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	TraceID    string         `json:"traceId,omitempty"`
	AgentID    string         `json:"agentId,omitempty"`
	AuditID    string         `json:"auditId,omitempty"`
	Kind       Kind           `json:"kind"`
	Status     Status         `json:"status,omitempty"`
	Name       string         `json:"name,omitempty"`
	Severity   trace.Severity `json:"severity,omitempty"`
	RiskScore  float64        `json:"riskScore,omitempty"`
	Message    string         `json:"message,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"durationMs,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Normalize fills defaults so sinks can rely on a well-formed event.
func (e *Event) Normalize() {
	if e == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Kind == "" {
		e.Kind = KindCustom
	}
	if e.Attributes == nil {
		e.Attributes = map[string]any{}
	}
}
