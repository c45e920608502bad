package progress

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the pub/sub channel progress is published on.
const DefaultRedisChannel = "match_progress"

// Redis publishes events on a redis pub/sub channel.
type Redis struct {
	client  redis.UniversalClient
	channel string
}

// NewRedis constructs a Redis sink. An empty channel uses DefaultRedisChannel.
func NewRedis(client redis.UniversalClient, channel string) *Redis {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &Redis{client: client, channel: channel}
}

// Publish implements Sink.
func (r *Redis) Publish(ctx context.Context, e Event) error {
	payload, err := e.Encode()
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
