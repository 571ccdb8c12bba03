package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ConfirmGuard implements ports.ConfirmGuard with Redis SET NX, so only one
// replica at a time can settle a given checkout session.
type ConfirmGuard struct {
	client *goredis.Client
	prefix string
}

// NewConfirmGuard creates a new Redis-backed confirmation guard.
func NewConfirmGuard(client *goredis.Client) *ConfirmGuard {
	return &ConfirmGuard{
		client: client,
		prefix: "checkout:confirming:",
	}
}

// Acquire returns true if the caller now holds the session. The TTL frees
// the session if the holder dies before Release.
func (g *ConfirmGuard) Acquire(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	result, err := g.client.SetArgs(ctx, g.prefix+sessionID, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis confirm guard acquire: %w", err)
	}
	return result == "OK", nil
}

// Release frees the session.
func (g *ConfirmGuard) Release(ctx context.Context, sessionID string) error {
	if err := g.client.Del(ctx, g.prefix+sessionID).Err(); err != nil {
		return fmt.Errorf("redis confirm guard release: %w", err)
	}
	return nil
}
