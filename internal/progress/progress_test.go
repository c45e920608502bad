package progress

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/qbeka/matchmaking-nat/internal/ws"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Event
}

func (b *blockingSink) Publish(_ context.Context, e Event) error {
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, e)
	return nil
}

type failingSink struct{}

func (failingSink) Publish(context.Context, Event) error { return errors.New("down") }

type fakePublisher struct {
	subject string
	data    []byte
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return nil
}

func TestAsyncNeverBlocks(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	a := NewAsync(sink, 2, discardLogger())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			_ = a.Publish(context.Background(), Event{RunID: "r", Stage: 1, Kind: KindStageStarted})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on a stalled sink")
	}
	if a.Dropped() == 0 {
		t.Fatalf("expected dropped events with a full buffer")
	}

	close(sink.release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	sink.mu.Lock()
	delivered := len(sink.got)
	sink.mu.Unlock()
	if int64(delivered)+a.Dropped() != 50 {
		t.Fatalf("expected delivered + dropped = 50, got %d + %d", delivered, a.Dropped())
	}
	if err := a.Publish(context.Background(), Event{RunID: "r"}); err != nil {
		t.Fatalf("expected publish after close to be silently dropped, got %v", err)
	}
}

func TestAsyncSwallowsSinkErrors(t *testing.T) {
	a := NewAsync(failingSink{}, 4, discardLogger())
	if err := a.Publish(context.Background(), Event{RunID: "r"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	m := Multi{Noop{}, failingSink{}, Log{Logger: discardLogger()}}
	if err := m.Publish(context.Background(), Event{RunID: "r"}); err == nil {
		t.Fatalf("expected joined error")
	}
	if err := (Multi{Noop{}}).Publish(context.Background(), Event{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNATSSubject(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNATS(pub, "")
	if err := n.Publish(context.Background(), Event{RunID: "run-1", Stage: 3, Kind: KindAssignmentComplete}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub.subject != "match.progress.run-1" {
		t.Fatalf("unexpected subject %q", pub.subject)
	}
	var got Event
	if err := json.Unmarshal(pub.data, &got); err != nil {
		t.Fatalf("unexpected payload: %v", err)
	}
	if got.Kind != KindAssignmentComplete || got.Stage != 3 {
		t.Fatalf("unexpected event %+v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Publish(ctx, Event{RunID: "run-1"}); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}

type hubRecorder struct {
	mu  sync.Mutex
	got int
}

func (h *hubRecorder) Send([]byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got++
	return nil
}

func (h *hubRecorder) Close() {}

func TestHubSink(t *testing.T) {
	hub := ws.NewHub(4)
	defer hub.Close()
	rec := &hubRecorder{}
	hub.Register("run-1", rec)
	if err := NewHub(hub).Publish(context.Background(), Event{RunID: "run-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec.mu.Lock()
		n := rec.got
		rec.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected subscriber to receive the event")
}
