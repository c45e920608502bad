package progress

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix prefixes the per-run NATS subject.
const DefaultSubjectPrefix = "match.progress"

// Publisher is the subset of *nats.Conn used for progress.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// NATS publishes events on <prefix>.<run id>.
type NATS struct {
	conn   Publisher
	prefix string
}

// NewNATS constructs a NATS sink. An empty prefix uses DefaultSubjectPrefix.
func NewNATS(conn Publisher, prefix string) *NATS {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATS{conn: conn, prefix: prefix}
}

// Subject returns the subject events for runID are published on.
func (n *NATS) Subject(runID string) string {
	return n.prefix + "." + runID
}

// Publish implements Sink.
func (n *NATS) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := e.Encode()
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := n.conn.Publish(n.Subject(e.RunID), payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}
