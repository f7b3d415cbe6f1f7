package ws

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spectracehq/audit-sdk-go/observe"
)

func TestSubscribePublishUnsubscribe(t *testing.T) {
	hub := NewHub()
	id, ch := hub.Subscribe("", 8)

	if err := hub.Emit(context.Background(), observe.Event{Kind: observe.KindAudit, TraceID: "tr-1"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	select {
	case e := <-ch:
		if e.TraceID != "tr-1" {
			t.Errorf("received TraceID = %q, want tr-1", e.TraceID)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}

	hub.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Error("expected channel closed after Unsubscribe")
	}
}

func TestTraceFiltering(t *testing.T) {
	hub := NewHub()
	_, ch := hub.Subscribe("tr-1", 8)

	hub.Emit(context.Background(), observe.Event{Kind: observe.KindStep, TraceID: "tr-2"})
	hub.Emit(context.Background(), observe.Event{Kind: observe.KindStep, TraceID: "tr-1"})

	select {
	case e := <-ch:
		if e.TraceID != "tr-1" {
			t.Errorf("received event for trace %q, want tr-1", e.TraceID)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}

	select {
	case e := <-ch:
		t.Errorf("unexpected extra event for trace %q", e.TraceID)
	default:
	}
}

func TestHistoryReplay(t *testing.T) {
	hub := NewHub(WithHistoryCap(2))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		hub.Emit(ctx, observe.Event{Kind: observe.KindStep, TraceID: "tr-1", RiskScore: float64(i)})
	}

	_, ch := hub.Subscribe("tr-1", 8)

	// Cap is 2, so the first event is gone and the last two replay in order.
	first := <-ch
	second := <-ch
	if first.RiskScore != 1 || second.RiskScore != 2 {
		t.Errorf("replayed scores = %v, %v; want 1, 2", first.RiskScore, second.RiskScore)
	}

	hub.DropHistory("tr-1")
	_, ch2 := hub.Subscribe("tr-1", 8)
	select {
	case e := <-ch2:
		t.Errorf("unexpected replay after DropHistory: %+v", e)
	default:
	}
}

func TestServeHTTPStreams(t *testing.T) {
	hub := NewHub()
	ts := httptest.NewServer(hub)
	defer ts.Close()
	defer hub.Close()

	// Seed history so delivery does not race the subscription handshake.
	hub.Emit(context.Background(), observe.Event{Kind: observe.KindAudit, TraceID: "tr-1", Status: observe.StatusStarted})

	wsURL := "ws" + ts.URL[4:] + "?trace_id=tr-1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	var replayed observe.Event
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&replayed); err != nil {
		t.Fatalf("read replayed event: %v", err)
	}
	if replayed.TraceID != "tr-1" || replayed.Status != observe.StatusStarted {
		t.Errorf("unexpected replayed event: %+v", replayed)
	}

	// The replay proves the subscription is live, so this emit is received too.
	hub.Emit(context.Background(), observe.Event{Kind: observe.KindAudit, TraceID: "tr-1", Status: observe.StatusCompleted})

	var live observe.Event
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&live); err != nil {
		t.Fatalf("read live event: %v", err)
	}
	if live.Status != observe.StatusCompleted {
		t.Errorf("live event status = %q, want completed", live.Status)
	}
}
