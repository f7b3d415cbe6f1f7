// Package ws streams audit events to WebSocket subscribers.
//
// The Hub implements observe.Sink: every emitted event is fanned out to
// connected clients, optionally filtered to a single trace. A short
// per-trace history buffer is replayed to late subscribers so a dashboard
// that attaches mid-audit still sees what happened so far.
package ws

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/spectracehq/audit-sdk-go/observe"
)

const (
	defaultHistoryCap = 64
	defaultBuffer     = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type watcher struct {
	ch      chan observe.Event
	traceID string
}

// Hub fans audit events out to WebSocket subscribers.
type Hub struct {
	mu         sync.Mutex
	nextID     int
	watchers   map[int]*watcher
	history    map[string][]observe.Event
	historyCap int
}

type Option func(*Hub)

// WithHistoryCap bounds the per-trace replay buffer.
func WithHistoryCap(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.historyCap = n
		}
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		watchers:   map[int]*watcher{},
		history:    map[string][]observe.Event{},
		historyCap: defaultHistoryCap,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ observe.Sink = (*Hub)(nil)

// Emit records the event and publishes it to matching subscribers.
// Slow subscribers miss events rather than stalling the publisher.
func (h *Hub) Emit(_ context.Context, event observe.Event) error {
	if h == nil {
		return nil
	}
	event.Normalize()

	h.mu.Lock()
	defer h.mu.Unlock()

	if event.TraceID != "" {
		buf := append(h.history[event.TraceID], event)
		if len(buf) > h.historyCap {
			buf = buf[len(buf)-h.historyCap:]
		}
		h.history[event.TraceID] = buf
	}

	for _, w := range h.watchers {
		if w.traceID != "" && w.traceID != event.TraceID {
			continue
		}
		select {
		case w.ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a watcher. An empty traceID receives every event;
// otherwise buffered history for the trace is replayed before live events.
func (h *Hub) Subscribe(traceID string, buffer int) (int, <-chan observe.Event) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	w := &watcher{ch: make(chan observe.Event, buffer), traceID: traceID}
	h.watchers[id] = w

	if traceID != "" {
		for _, event := range h.history[traceID] {
			select {
			case w.ch <- event:
			default:
			}
		}
	}
	return id, w.ch
}

// Unsubscribe removes a watcher and closes its channel.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if w, ok := h.watchers[id]; ok {
		delete(h.watchers, id)
		close(w.ch)
	}
}

// DropHistory discards the replay buffer for a trace, typically once its
// audit is finalized and persisted.
func (h *Hub) DropHistory(traceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.history, traceID)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, w := range h.watchers {
		delete(h.watchers, id)
		close(w.ch)
	}
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects. The trace_id query parameter narrows the feed to one trace.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	id, ch := h.Subscribe(r.URL.Query().Get("trace_id"), defaultBuffer)
	defer h.Unsubscribe(id)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}
