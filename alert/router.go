package alert

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/spectracehq/audit-sdk-go/observe"
	"github.com/spectracehq/audit-sdk-go/trace"
)

// Router fans alerts out to the channels routed for their severity. Delivery
// is best effort: a failing channel is logged and skipped so the remaining
// channels still receive the alert.
type Router struct {
	mu        sync.RWMutex
	notifiers map[Channel]Notifier
	routes    Routes
	sink      observe.Sink
}

type RouterOption func(*Router)

// WithRoutes replaces the whole routing table.
func WithRoutes(routes Routes) RouterOption {
	return func(r *Router) {
		if routes != nil {
			r.routes = routes
		}
	}
}

// WithNotifier wires a notifier to a channel.
func WithNotifier(ch Channel, n Notifier) RouterOption {
	return func(r *Router) {
		if ch != "" && n != nil {
			r.notifiers[ch] = n
		}
	}
}

// WithSink emits a dispatch event to the sink after every alert.
func WithSink(sink observe.Sink) RouterOption {
	return func(r *Router) {
		if sink != nil {
			r.sink = sink
		}
	}
}

func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		notifiers: map[Channel]Notifier{},
		routes:    DefaultRoutes(),
		sink:      observe.NoopSink{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route replaces the channel fan-out for one severity.
func (r *Router) Route(severity trace.Severity, channels ...Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[severity] = channels
}

// Register wires a notifier to a channel, replacing any previous one.
func (r *Router) Register(ch Channel, n Notifier) {
	if ch == "" || n == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifiers[ch] = n
}

type target struct {
	channel  Channel
	notifier Notifier
}

// Dispatch delivers the alert to every routed channel that has a notifier
// registered. Channel failures do not stop delivery to the remaining
// channels; the first failure is returned after all channels were tried.
func (r *Router) Dispatch(ctx context.Context, a Alert) error {
	if a.Severity == "" {
		a.Severity = trace.SeverityMedium
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	r.mu.RLock()
	channels, ok := r.routes[a.Severity]
	if !ok {
		channels = []Channel{ChannelDiscord}
	}
	targets := make([]target, 0, len(channels))
	for _, ch := range channels {
		if n := r.notifiers[ch]; n != nil {
			targets = append(targets, target{channel: ch, notifier: n})
		}
	}
	sink := r.sink
	r.mu.RUnlock()

	var firstErr error
	delivered := make([]string, 0, len(targets))
	for _, t := range targets {
		if err := t.notifier.Send(ctx, a); err != nil {
			log.Printf("[alert] %s delivery failed: %v", t.channel, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s delivery failed: %w", t.channel, err)
			}
			continue
		}
		delivered = append(delivered, string(t.channel))
	}

	status := observe.StatusCompleted
	if firstErr != nil && len(delivered) == 0 {
		status = observe.StatusFailed
	}
	e := observe.Event{
		Kind:      observe.KindAlert,
		Status:    status,
		TraceID:   a.TraceID,
		AgentID:   a.AgentID,
		AuditID:   a.AuditID,
		Name:      "alert." + string(a.Severity),
		Severity:  a.Severity,
		RiskScore: a.RiskScore,
		Message:   a.Title,
		Attributes: map[string]any{
			"channels": delivered,
		},
	}
	if firstErr != nil {
		e.Error = firstErr.Error()
	}
	e.Normalize()
	sink.Emit(ctx, e)

	return firstErr
}
