package progress

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const publishTimeout = 2 * time.Second

// Async decouples publishers from a slow sink with a bounded buffer. Publish
// never blocks: when the buffer is full the event is dropped and counted.
type Async struct {
	sink    Sink
	logger  *slog.Logger
	queue   chan Event
	dropped atomic.Int64
	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
}

// NewAsync starts the delivery worker for sink.
func NewAsync(sink Sink, buffer int, logger *slog.Logger) *Async {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{sink: sink, logger: logger, queue: make(chan Event, buffer), done: make(chan struct{})}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := a.sink.Publish(ctx, e); err != nil {
			a.logger.Warn("progress publish failed", "run_id", e.RunID, "kind", e.Kind, "error", err)
		}
		cancel()
	}
}

// Publish queues e. It always returns nil.
func (a *Async) Publish(_ context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return nil
	}
	select {
	case a.queue <- e:
	default:
		a.dropped.Add(1)
	}
	return nil
}

// Dropped reports how many events were discarded.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be delivered or
// for ctx to end.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
