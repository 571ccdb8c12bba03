package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyCache holds the serialised booking each checkout session
// confirmed into, keyed by session id.
type IdempotencyCache struct {
	client *goredis.Client
	prefix string
}

// NewIdempotencyCache creates a new Redis-backed confirmed-booking cache.
func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{
		client: client,
		prefix: "checkout:confirmed:",
	}
}

// Get returns the cached booking JSON for a session, or nil, nil on a miss.
func (c *IdempotencyCache) Get(ctx context.Context, sessionID string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+sessionID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis confirmed booking get %s: %w", sessionID, err)
	}
	return val, nil
}

// Set records the booking for a session with SET NX. A session that already
// has a booking keeps it.
func (c *IdempotencyCache) Set(ctx context.Context, sessionID string, booking []byte, ttl time.Duration) error {
	if err := c.client.SetNX(ctx, c.prefix+sessionID, booking, ttl).Err(); err != nil {
		return fmt.Errorf("redis confirmed booking set %s: %w", sessionID, err)
	}
	return nil
}
