package observe

import (
	"context"
	"log"
	"sync"

	"github.com/spectracehq/audit-sdk-go/trace"
)

type Sink interface {
	Emit(ctx context.Context, event Event) error
}

type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Emit(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type NoopSink struct{}

func (NoopSink) Emit(ctx context.Context, event Event) error {
	_ = ctx
	_ = event
	return nil
}

type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) Sink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		filtered = append(filtered, s)
	}
	if len(filtered) == 0 {
		return NoopSink{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &MultiSink{sinks: filtered}
}

func (m *MultiSink) Emit(ctx context.Context, event Event) error {
	if m == nil {
		return nil
	}
	for _, sink := range m.sinks {
		if err := sink.Emit(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// LogSink writes events to the standard logger, one line per event.
type LogSink struct{}

func (LogSink) Emit(_ context.Context, event Event) error {
	event.Normalize()
	switch {
	case event.Error != "":
		log.Printf("[observe] %s %s trace=%s agent=%s error=%q", event.Kind, event.Status, event.TraceID, event.AgentID, event.Error)
	case event.Severity != "":
		log.Printf("[observe] %s %s trace=%s agent=%s severity=%s risk=%.3f", event.Kind, event.Status, event.TraceID, event.AgentID, event.Severity, event.RiskScore)
	default:
		log.Printf("[observe] %s %s trace=%s agent=%s name=%s", event.Kind, event.Status, event.TraceID, event.AgentID, event.Name)
	}
	return nil
}

// FilterSink forwards only events that pass its kind and severity gates.
// It is how alert channels subscribe to the serious subset of the stream.
type FilterSink struct {
	downstream Sink
	minRank    int
	kinds      map[Kind]struct{}
}

type FilterOption func(*FilterSink)

// WithMinSeverity drops events whose severity ranks below s. Events with
// no severity at all are dropped too.
func WithMinSeverity(s trace.Severity) FilterOption {
	return func(fs *FilterSink) { fs.minRank = s.Rank() }
}

// WithKinds restricts the sink to the given event kinds.
func WithKinds(kinds ...Kind) FilterOption {
	return func(fs *FilterSink) {
		fs.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			fs.kinds[k] = struct{}{}
		}
	}
}

func NewFilterSink(downstream Sink, opts ...FilterOption) *FilterSink {
	if downstream == nil {
		downstream = NoopSink{}
	}
	fs := &FilterSink{downstream: downstream}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

func (fs *FilterSink) Emit(ctx context.Context, event Event) error {
	if fs == nil {
		return nil
	}
	if len(fs.kinds) > 0 {
		if _, ok := fs.kinds[event.Kind]; !ok {
			return nil
		}
	}
	if fs.minRank > 0 && event.Severity.Rank() < fs.minRank {
		return nil
	}
	return fs.downstream.Emit(ctx, event)
}

type AsyncSink struct {
	downstream Sink
	queue      chan Event
	once       sync.Once
}

func NewAsyncSink(downstream Sink, buffer int) *AsyncSink {
	if downstream == nil {
		downstream = NoopSink{}
	}
	if buffer <= 0 {
		buffer = 256
	}
	as := &AsyncSink{
		downstream: downstream,
		queue:      make(chan Event, buffer),
	}
	go as.loop()
	return as
}

func (s *AsyncSink) Emit(ctx context.Context, event Event) error {
	if s == nil {
		return nil
	}
	event.Normalize()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.queue <- event:
		return nil
	default:
		// Drop on pressure to avoid blocking the audit hot path.
		return nil
	}
}

func (s *AsyncSink) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() { close(s.queue) })
}

func (s *AsyncSink) loop() {
	for event := range s.queue {
		_ = s.downstream.Emit(context.Background(), event)
	}
}
