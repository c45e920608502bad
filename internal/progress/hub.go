package progress

import (
	"context"
	"fmt"

	"github.com/qbeka/matchmaking-nat/internal/ws"
)

// Hub forwards events to websocket and SSE subscribers of the run.
type Hub struct {
	hub *ws.Hub
}

// NewHub wraps a ws.Hub.
func NewHub(h *ws.Hub) Hub {
	return Hub{hub: h}
}

// Publish implements Sink.
func (h Hub) Publish(_ context.Context, e Event) error {
	payload, err := e.Encode()
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if !h.hub.Broadcast(e.RunID, payload) {
		return fmt.Errorf("progress hub full, event for run %s dropped", e.RunID)
	}
	return nil
}
