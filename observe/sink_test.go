package observe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spectracehq/audit-sdk-go/trace"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Emit(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestNewMultiSinkCollapses(t *testing.T) {
	if _, ok := NewMultiSink(nil, nil).(NoopSink); !ok {
		t.Errorf("expected NoopSink when all sinks are nil")
	}

	rec := &recordingSink{}
	if got := NewMultiSink(nil, rec); got != Sink(rec) {
		t.Errorf("expected single sink to be returned directly, got %T", got)
	}
}

func TestMultiSinkStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	first := &recordingSink{}
	second := SinkFunc(func(context.Context, Event) error { return boom })
	third := &recordingSink{}

	sink := NewMultiSink(first, second, third)
	err := sink.Emit(context.Background(), Event{Kind: KindAudit})
	if !errors.Is(err, boom) {
		t.Fatalf("Emit error = %v, want %v", err, boom)
	}
	if first.len() != 1 {
		t.Errorf("first sink saw %d events, want 1", first.len())
	}
	if third.len() != 0 {
		t.Errorf("third sink saw %d events, want 0", third.len())
	}
}

func TestFilterSinkSeverity(t *testing.T) {
	rec := &recordingSink{}
	sink := NewFilterSink(rec, WithMinSeverity(trace.SeverityHigh))

	events := []Event{
		{Kind: KindViolation, Severity: trace.SeverityLow},
		{Kind: KindViolation, Severity: trace.SeverityMedium},
		{Kind: KindViolation, Severity: trace.SeverityHigh},
		{Kind: KindViolation, Severity: trace.SeverityCritical},
		{Kind: KindAudit}, // no severity
	}
	for _, e := range events {
		if err := sink.Emit(context.Background(), e); err != nil {
			t.Fatalf("Emit failed: %v", err)
		}
	}

	if rec.len() != 2 {
		t.Fatalf("forwarded %d events, want 2 (high and critical)", rec.len())
	}
	for _, e := range rec.events {
		if e.Severity.Rank() < trace.SeverityHigh.Rank() {
			t.Errorf("forwarded event with severity %q below threshold", e.Severity)
		}
	}
}

func TestFilterSinkKinds(t *testing.T) {
	rec := &recordingSink{}
	sink := NewFilterSink(rec, WithKinds(KindViolation, KindDrift))

	sink.Emit(context.Background(), Event{Kind: KindAudit})
	sink.Emit(context.Background(), Event{Kind: KindViolation})
	sink.Emit(context.Background(), Event{Kind: KindDrift})
	sink.Emit(context.Background(), Event{Kind: KindStep})

	if rec.len() != 2 {
		t.Errorf("forwarded %d events, want 2", rec.len())
	}
}

func TestAsyncSinkDelivers(t *testing.T) {
	got := make(chan Event, 1)
	sink := NewAsyncSink(SinkFunc(func(_ context.Context, e Event) error {
		got <- e
		return nil
	}), 8)
	defer sink.Close()

	if err := sink.Emit(context.Background(), Event{Kind: KindEncode, TraceID: "tr-1"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	select {
	case e := <-got:
		if e.TraceID != "tr-1" {
			t.Errorf("delivered TraceID = %q, want tr-1", e.TraceID)
		}
		if e.Timestamp.IsZero() {
			t.Error("expected Emit to normalize the timestamp")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered downstream")
	}
}

func TestEventNormalize(t *testing.T) {
	e := Event{}
	e.Normalize()
	if e.Timestamp.IsZero() {
		t.Error("Normalize left timestamp zero")
	}
	if e.Kind != KindCustom {
		t.Errorf("Normalize kind = %q, want %q", e.Kind, KindCustom)
	}
	if e.Attributes == nil {
		t.Error("Normalize left attributes nil")
	}
}
