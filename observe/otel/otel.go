// Package otel bridges the observe.Sink to OpenTelemetry tracing.
//
// It converts audit observe.Event objects into OTel spans so that audits,
// per-step scoring, violations, and drift sweeps are visible in any
// OpenTelemetry-compatible backend (Jaeger, Zipkin, Grafana, etc.).
package otel

import (
	"context"
	"fmt"
	"time"

	"github.com/spectracehq/audit-sdk-go/observe"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/spectracehq/audit-sdk-go/observe"

// Sink implements observe.Sink by emitting OpenTelemetry spans.
type Sink struct {
	tracer trace.Tracer
}

// NewSink creates an OTel sink using the given TracerProvider.
// If tp is nil, it uses a noop tracer provider.
func NewSink(tp trace.TracerProvider) *Sink {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &Sink{
		tracer: tp.Tracer(instrumentationName),
	}
}

// Emit converts an observe.Event into an OTel span.
func (s *Sink) Emit(_ context.Context, event observe.Event) error {
	event.Normalize()

	spanName := spanNameFor(event)
	ctx := context.Background()
	startTime := event.Timestamp

	_, span := s.tracer.Start(ctx, spanName, trace.WithTimestamp(startTime))

	attrs := []attribute.KeyValue{
		attribute.String("audit.event.kind", string(event.Kind)),
	}
	if event.TraceID != "" {
		attrs = append(attrs, attribute.String("audit.trace.id", event.TraceID))
	}
	if event.AgentID != "" {
		attrs = append(attrs, attribute.String("audit.agent.id", event.AgentID))
	}
	if event.AuditID != "" {
		attrs = append(attrs, attribute.String("audit.id", event.AuditID))
	}
	if event.Name != "" {
		attrs = append(attrs, attribute.String("audit.event.name", event.Name))
	}
	if event.Status != "" {
		attrs = append(attrs, attribute.String("audit.status", string(event.Status)))
	}
	if event.Severity != "" {
		attrs = append(attrs, attribute.String("audit.severity", string(event.Severity)))
	}
	if event.RiskScore > 0 {
		attrs = append(attrs, attribute.Float64("audit.risk_score", event.RiskScore))
	}
	if event.Message != "" {
		attrs = append(attrs, attribute.String("audit.message", truncate(event.Message, 1024)))
	}
	if event.DurationMs > 0 {
		attrs = append(attrs, attribute.Int64("audit.duration_ms", event.DurationMs))
	}

	for k, v := range event.Attributes {
		attrs = append(attrs, attribute.String("audit.attr."+k, fmt.Sprintf("%v", v)))
	}

	span.SetAttributes(attrs...)

	if event.Status == observe.StatusFailed {
		span.SetStatus(codes.Error, event.Error)
		if event.Error != "" {
			span.RecordError(fmt.Errorf("%s", event.Error))
		}
	} else if event.Status == observe.StatusCompleted {
		span.SetStatus(codes.Ok, "")
	}

	endTime := startTime
	if event.DurationMs > 0 {
		endTime = startTime.Add(time.Duration(event.DurationMs) * time.Millisecond)
	}
	span.End(trace.WithTimestamp(endTime))
	return nil
}

func spanNameFor(event observe.Event) string {
	switch event.Kind {
	case observe.KindAudit:
		return "audit.run"
	case observe.KindStep:
		if event.Name != "" {
			return "audit." + event.Name
		}
		return "audit.step"
	case observe.KindViolation:
		if event.Name != "" {
			return "audit." + event.Name
		}
		return "audit.violation"
	case observe.KindDrift:
		return "audit.drift"
	case observe.KindEncode:
		return "audit.encode"
	case observe.KindAlert:
		return "audit.alert"
	default:
		if event.Name != "" {
			return "audit." + event.Name
		}
		return "audit.event"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
