package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func subscribe(t *testing.T, hub *Hub, id, topic string) *Client {
	t.Helper()
	c, err := NewClient(id, topic)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if !hub.Register(c) {
		t.Fatal("hub refused registration")
	}
	return c
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case f, ok := <-c.frames:
		if !ok {
			t.Fatalf("client %s stream closed", c.id)
		}
		var e Event
		if err := json.Unmarshal(f.data, &e); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if f.event != e.Type {
			t.Fatalf("frame event %q does not match type %q", f.event, e.Type)
		}
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("client %s received nothing", c.id)
	}
	return Event{}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case f := <-c.frames:
		t.Fatalf("client %s unexpectedly received %s", c.id, f.data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewClient_Topic(t *testing.T) {
	c, err := NewClient("c1", "")
	if err != nil || c.Topic() != "*" {
		t.Fatalf("empty topic should default to *, got %q err=%v", c.Topic(), err)
	}
	if _, err := NewClient("c2", "pipeline:["); err == nil {
		t.Fatal("expected invalid glob to be rejected")
	}

	tests := []struct {
		topic, event string
		want         bool
	}{
		{"*", "pipeline:etl", true},
		{"pipeline:*", "pipeline:etl", true},
		{"pipeline:*", "job:nightly", false},
		{"job:nightly", "job:nightly", true},
		{"job:night*", "job:nightly", true},
		{"job:nightly", "job:hourly", false},
	}
	for _, tc := range tests {
		c, _ := NewClient("x", tc.topic)
		if got := c.Matches(tc.event); got != tc.want {
			t.Errorf("%q matches %q = %v, want %v", tc.topic, tc.event, got, tc.want)
		}
	}
}

func TestHub_PublishRoutesByTopic(t *testing.T) {
	hub := startHub(t)
	all := subscribe(t, hub, "all", "*")
	pipelines := subscribe(t, hub, "pipelines", "pipeline:*")
	nightly := subscribe(t, hub, "nightly", "job:nightly")

	if err := hub.Publish(Event{Type: "pipeline.completed", Topic: "pipeline:etl", Data: map[string]string{"instance_id": "i-1"}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	for _, c := range []*Client{all, pipelines} {
		e := receive(t, c)
		if e.Type != "pipeline.completed" || e.Topic != "pipeline:etl" || e.Time.IsZero() {
			t.Fatalf("unexpected event %+v", e)
		}
	}
	expectNothing(t, nightly)

	hub.Publish(Event{Type: "job.failed", Topic: "job:nightly"})
	if e := receive(t, nightly); e.Type != "job.failed" {
		t.Fatalf("expected job.failed, got %s", e.Type)
	}
	receive(t, all)
	expectNothing(t, pipelines)
}

func TestHub_PublishRejectsUnencodable(t *testing.T) {
	hub := startHub(t)
	if err := hub.Publish(Event{Type: "bad", Data: make(chan int)}); err == nil {
		t.Fatal("expected encoding error")
	}
}

func TestHub_UnregisterClosesStream(t *testing.T) {
	hub := startHub(t)
	c := subscribe(t, hub, "c1", "*")
	hub.Unregister(c)

	select {
	case _, ok := <-c.frames:
		if ok {
			t.Fatal("expected closed stream")
		}
	case <-time.After(time.Second):
		t.Fatal("stream was not closed")
	}
	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()
	c := subscribe(t, hub, "c1", "*")

	hub.Stop()
	hub.Stop()
	<-done
	if _, ok := <-c.frames; ok {
		t.Fatal("expected closed stream after Stop")
	}
	if hub.Register(c) {
		t.Fatal("registration must fail on a stopped hub")
	}
	if err := hub.Publish(Event{Type: "late"}); err != nil {
		t.Fatalf("publishing to a stopped hub should be a silent drop, got %v", err)
	}
}

func TestClient_FullBufferDrops(t *testing.T) {
	c, _ := NewClient("slow", "*")
	for i := 0; i < ClientBuffer; i++ {
		if !c.send(frame{event: "x"}) {
			t.Fatalf("send %d failed early", i)
		}
	}
	if c.send(frame{event: "overflow"}) {
		t.Fatal("expected send to fail on a full buffer")
	}
}

func TestServeSSE_StreamsMatchingEvents(t *testing.T) {
	hub := startHub(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeSSE(hub, w, r, "client-1", r.URL.Query().Get("topic"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?topic=pipeline:*", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && name != "":
				return name, data
			}
		}
	}

	if name, _ := readEvent(); name != EventTypeConnected {
		t.Fatalf("first event = %q, want connected", name)
	}

	hub.Publish(Event{Type: "job.completed", Topic: "job:nightly"})
	hub.Publish(Event{Type: "pipeline.failed", Topic: "pipeline:etl", Data: map[string]string{"error": "boom"}})

	name, data := readEvent()
	if name != "pipeline.failed" {
		t.Fatalf("expected only the pipeline event, got %q", name)
	}
	var e Event
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if e.Topic != "pipeline:etl" {
		t.Fatalf("topic = %q", e.Topic)
	}
}

func TestServeSSE_BadTopic(t *testing.T) {
	hub := startHub(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	ServeSSE(hub, rec, req, "c", "[")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestComponent_Lifecycle(t *testing.T) {
	c := NewComponent(NewHub(), "/api/v1/stream")
	if h := c.Health(context.Background()); h.Status != "unhealthy" {
		t.Fatalf("expected unhealthy before start, got %s", h.Status)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h := c.Health(context.Background()); h.Status != "healthy" {
		t.Fatalf("expected healthy, got %s", h.Status)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if d := c.Describe(); d.Type != "sse" {
		t.Fatalf("Describe = %+v", d)
	}
}
