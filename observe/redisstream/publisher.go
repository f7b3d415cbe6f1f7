// Package redisstream publishes audit events to a Redis Stream so external
// consumers (dashboards, SIEM forwarders) can tail the audit feed.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/spectracehq/audit-sdk-go/observe"
)

const (
	defaultStream = "audit:events"
	defaultMaxLen = 10000
)

// Publisher implements observe.Sink by appending events to a capped stream.
type Publisher struct {
	client   *goredis.Client
	addr     string
	password string
	db       int
	stream   string
	maxLen   int64
}

type Option func(*Publisher)

func WithClient(client *goredis.Client) Option {
	return func(p *Publisher) {
		if client != nil {
			p.client = client
		}
	}
}

func WithStream(stream string) Option {
	return func(p *Publisher) {
		stream = strings.TrimSpace(stream)
		if stream != "" {
			p.stream = stream
		}
	}
}

func WithPassword(password string) Option {
	return func(p *Publisher) { p.password = password }
}

func WithDB(db int) Option {
	return func(p *Publisher) { p.db = db }
}

// WithMaxLen caps the stream length. Redis trims approximately (XADD MAXLEN ~).
func WithMaxLen(maxLen int64) Option {
	return func(p *Publisher) {
		if maxLen > 0 {
			p.maxLen = maxLen
		}
	}
}

func New(addr string, opts ...Option) (*Publisher, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	p := &Publisher{
		addr:   addr,
		stream: defaultStream,
		maxLen: defaultMaxLen,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = goredis.NewClient(&goredis.Options{Addr: p.addr, Password: p.password, DB: p.db})
	}
	if err := p.client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return p, nil
}

var _ observe.Sink = (*Publisher)(nil)

// Emit appends the event to the stream as a single JSON payload field.
func (p *Publisher) Emit(ctx context.Context, event observe.Event) error {
	if p == nil || p.client == nil {
		return nil
	}
	event.Normalize()
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	err = p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{"payload": string(payload)},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	return nil
}

// Recent returns up to count of the newest events on the stream, newest first.
func (p *Publisher) Recent(ctx context.Context, count int) ([]observe.Event, error) {
	if p == nil || p.client == nil {
		return nil, nil
	}
	if count <= 0 {
		count = 50
	}
	msgs, err := p.client.XRevRangeN(ctx, p.stream, "+", "-", int64(count)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read audit events: %w", err)
	}
	out := make([]observe.Event, 0, len(msgs))
	for _, msg := range msgs {
		payload, _ := msg.Values["payload"].(string)
		if payload == "" {
			continue
		}
		var event observe.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

func (p *Publisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
