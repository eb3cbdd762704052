package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// drain collects whatever arrives on ch within a short window.
func drain(ch chan []byte) []string {
	var out []string
	timeout := time.After(50 * time.Millisecond)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, string(msg))
		case <-timeout:
			return out
		}
	}
}

func count(msgs []string, typ string) int {
	n := 0
	for _, m := range msgs {
		if strings.Contains(m, "event: "+typ+"\n") {
			n++
		}
	}
	return n
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	ch := b.Subscribe(0)
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}
	b.Unsubscribe(ch)
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d after unsubscribe", n)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
}

func TestFramesCarryIDs(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe(0)
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeDocument, Data: map[string]string{"path": "a.md"}})
	b.Publish(Event{Type: TypeDocumentSaved, Data: map[string]string{"path": "a.md"}})

	msgs := drain(ch)
	if len(msgs) != 2 {
		t.Fatalf("msgs = %q", msgs)
	}
	want := "id: 1\nevent: document.changed\ndata: {\"path\":\"a.md\"}\n\n"
	if msgs[0] != want {
		t.Errorf("first frame = %q, want %q", msgs[0], want)
	}
	if !strings.HasPrefix(msgs[1], "id: 2\n") {
		t.Errorf("second frame = %q", msgs[1])
	}
}

func TestReplayAfterLastEventID(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	first := b.Subscribe(0)
	for _, p := range []string{"a.md", "b.md", "c.md"} {
		b.Publish(Event{Type: TypeNoteUpdated, Data: map[string]string{"path": p}})
	}
	if got := drain(first); len(got) != 3 {
		t.Fatalf("live frames = %d", len(got))
	}
	b.Unsubscribe(first)

	again := b.Subscribe(1)
	defer b.Unsubscribe(again)
	got := drain(again)
	if len(got) != 2 || !strings.Contains(got[0], "b.md") || !strings.Contains(got[1], "c.md") {
		t.Errorf("replayed = %q", got)
	}
}

func TestReplayIsBounded(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	for range replaySize + 10 {
		b.Publish(Event{Type: TypeNoteUpdated, Data: map[string]string{"path": "x.md"}})
	}
	ch := b.Subscribe(1)
	defer b.Unsubscribe(ch)
	if got := drain(ch); len(got) != clientBuffer {
		t.Errorf("replayed %d frames, want a full client buffer of %d", len(got), clientBuffer)
	}
}

func TestNoteEventsRefreshTreeThrottled(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe(0)
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("created", "a.md")
	b.PublishNoteEvent("deleted", "b.md")
	b.PublishNoteEvent("updated", "c.md")
	b.PublishNoteEvent("renamed", "d.md")

	msgs := drain(ch)
	if n := count(msgs, TypeTreeUpdated); n != 1 {
		t.Errorf("tree events = %d, want 1", n)
	}
	notes := count(msgs, TypeNoteCreated) + count(msgs, TypeNoteDeleted) + count(msgs, TypeNoteUpdated)
	if notes != 3 {
		t.Errorf("note events = %d, want 3", notes)
	}
}

func TestUpdateDoesNotRefreshTree(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe(0)
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("updated", "a.md")
	if n := count(drain(ch), TypeTreeUpdated); n != 0 {
		t.Errorf("tree events = %d, want 0", n)
	}
}

func TestWarn(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe(0)
	defer b.Unsubscribe(ch)

	b.Warn("disk full")
	msgs := drain(ch)
	if len(msgs) != 1 || count(msgs, TypeWarning) != 1 || !strings.Contains(msgs[0], `"message":"disk full"`) {
		t.Errorf("msgs = %q", msgs)
	}
}

func TestSlowClientDoesNotBlock(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe(0)
	defer b.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for range clientBuffer + 10 {
			b.Publish(Event{Type: "test", Data: map[string]string{}})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full client")
	}
}

// lockedRecorder guards the body so the test can read it while the handler
// is still writing.
type lockedRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (r *lockedRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *lockedRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Body.String()
}

func TestServeHTTP(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	probe := b.Subscribe(0)
	b.Publish(Event{Type: TypeNoteUpdated, Data: map[string]string{"path": "missed.md"}})
	b.Publish(Event{Type: TypeNoteUpdated, Data: map[string]string{"path": "also-missed.md"}})
	if got := drain(probe); len(got) != 2 {
		t.Fatalf("probe frames = %d", len(got))
	}
	b.Unsubscribe(probe)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", "1")
	w := &lockedRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	b.Publish(Event{Type: TypeNoteUpdated, Data: map[string]string{"path": "live.md"}})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.body()
	if w.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("content type = %q", w.Header().Get("Content-Type"))
	}
	if strings.Contains(body, `"missed.md"`) {
		t.Error("frame 1 was acknowledged and should not be replayed")
	}
	for _, want := range []string{"also-missed.md", "live.md"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %s: %q", want, body)
		}
	}

	time.Sleep(20 * time.Millisecond)
	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients = %d after disconnect", n)
	}
}

func TestKeepAlive(t *testing.T) {
	old := KeepAlive
	KeepAlive = 10 * time.Millisecond
	defer func() { KeepAlive = old }()

	b := NewBroker(time.Second)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := &lockedRecorder{ResponseRecorder: httptest.NewRecorder()}
	b.ServeHTTP(w, req)

	if !strings.Contains(w.body(), ": ping\n\n") {
		t.Errorf("no keepalive in %q", w.body())
	}
}

func TestClose(t *testing.T) {
	b := NewBroker(time.Second)
	ch := b.Subscribe(0)

	b.Close()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("subscriber channel should be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for close")
	}
	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients = %d after close", n)
	}

	// Safe after close.
	b.Publish(Event{Type: TypeNoteUpdated})
	b.PublishNoteEvent("updated", "x.md")
	b.Close()
	if _, ok := <-b.Subscribe(0); ok {
		t.Error("subscribe after close should return a closed channel")
	}
}
