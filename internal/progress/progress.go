// Package progress reports pipeline progress to observers. Publishing is
// best effort: sinks may fail or drop events without affecting a run.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// Kind names a progress event.
type Kind string

const (
	KindStageStarted       Kind = "stage_started"
	KindStageCompleted     Kind = "stage_completed"
	KindStageFailed        Kind = "stage_failed"
	KindDegraded           Kind = "degraded"
	KindAssignmentComplete Kind = "assignment_complete"
)

// Event is one progress notification.
type Event struct {
	RunID   string         `json:"run_id"`
	Stage   int            `json:"stage"`
	Kind    Kind           `json:"kind"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	At      time.Time      `json:"at"`
}

// Encode renders e as JSON.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Sink receives progress events.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// Noop discards every event.
type Noop struct{}

// Publish implements Sink.
func (Noop) Publish(context.Context, Event) error { return nil }

// Log writes events to a logger.
type Log struct {
	Logger *slog.Logger
}

// Publish implements Sink.
func (l Log) Publish(ctx context.Context, e Event) error {
	l.Logger.InfoContext(ctx, "match progress", "run_id", e.RunID, "stage", e.Stage, "kind", e.Kind, "message", e.Message)
	return nil
}

// Multi publishes to every sink and joins their errors.
type Multi []Sink

// Publish implements Sink.
func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
