package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Notifier delivers one alert to one channel.
type Notifier interface {
	Send(ctx context.Context, a Alert) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, a Alert) error

func (f NotifierFunc) Send(ctx context.Context, a Alert) error {
	if f == nil {
		return nil
	}
	return f(ctx, a)
}

// LogNotifier writes alerts to the process log. It is the fallback delivery
// for channels without an external endpoint configured.
type LogNotifier struct{}

var _ Notifier = LogNotifier{}

func (LogNotifier) Send(_ context.Context, a Alert) error {
	log.Printf("[alert] [%s] %s: %s", a.Severity, a.Title, a.Message)
	return nil
}

const defaultWebhookTimeout = 10 * time.Second

// WebhookNotifier delivers alerts as JSON POSTs. The payload carries the
// structured alert under "alert" plus a preformatted "text" field, which
// makes it drop-in usable with Slack-style incoming webhooks.
type WebhookNotifier struct {
	url        string
	headers    map[string]string
	httpClient *http.Client
}

var _ Notifier = (*WebhookNotifier)(nil)

type WebhookOption func(*WebhookNotifier)

// WithHeader adds a header to every webhook request, e.g. an auth token.
func WithHeader(key, value string) WebhookOption {
	return func(n *WebhookNotifier) { n.headers[key] = value }
}

func WithHTTPClient(h *http.Client) WebhookOption {
	return func(n *WebhookNotifier) {
		if h != nil {
			n.httpClient = h
		}
	}
}

func NewWebhook(url string, opts ...WebhookOption) (*WebhookNotifier, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("alert: webhook url is required")
	}
	n := &WebhookNotifier{
		url:     url,
		headers: map[string]string{},
		httpClient: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

type webhookPayload struct {
	Text  string `json:"text"`
	Alert Alert  `json:"alert"`
}

func (n *WebhookNotifier) Send(ctx context.Context, a Alert) error {
	raw, err := json.Marshal(webhookPayload{Text: a.Summary(), Alert: a})
	if err != nil {
		return fmt.Errorf("failed to marshal alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.headers {
		req.Header.Set(k, v)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("webhook error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
