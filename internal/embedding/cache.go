package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "embedding:"

// Cached memoises another provider in redis, keyed by model and text.
type Cached struct {
	next   Provider
	client redis.UniversalClient
	model  string
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached wraps next. Cache failures fall through to next.
func NewCached(next Provider, client redis.UniversalClient, model string, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{next: next, client: client, model: model, ttl: ttl, logger: logger}
}

// Key returns the redis key for text.
func (c *Cached) Key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Embed implements Provider.
func (c *Cached) Embed(ctx context.Context, text string) ([]float64, bool, error) {
	key := c.Key(text)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vec []float64
		if jsonErr := json.Unmarshal(raw, &vec); jsonErr == nil && len(vec) > 0 {
			return vec, true, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("embedding cache read failed", "error", err)
	}

	vec, ok, err := c.next.Embed(ctx, text)
	if err != nil || !ok {
		return vec, ok, err
	}
	if payload, jsonErr := json.Marshal(vec); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.logger.Warn("embedding cache write failed", "error", setErr)
		}
	}
	return vec, true, nil
}
