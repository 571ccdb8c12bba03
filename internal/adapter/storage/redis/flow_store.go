package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"zimba-booking/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// FlowStore implements ports.FlowStore. Flows are JSON values that expire
// when a checkout is abandoned.
type FlowStore struct {
	client *goredis.Client
	prefix string
}

// NewFlowStore creates a new Redis-backed checkout flow store.
func NewFlowStore(client *goredis.Client) *FlowStore {
	return &FlowStore{
		client: client,
		prefix: "checkout:flow:",
	}
}

// Save writes the flow and resets its TTL.
func (s *FlowStore) Save(ctx context.Context, flow *domain.BookingFlow, ttl time.Duration) error {
	raw, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("marshal flow: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+flow.ID, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis flow set: %w", err)
	}
	return nil
}

// Get loads a flow. Returns nil, nil when it is absent or expired.
func (s *FlowStore) Get(ctx context.Context, sessionID string) (*domain.BookingFlow, error) {
	raw, err := s.client.Get(ctx, s.prefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis flow get: %w", err)
	}
	var flow domain.BookingFlow
	if err := json.Unmarshal(raw, &flow); err != nil {
		return nil, fmt.Errorf("unmarshal flow: %w", err)
	}
	return &flow, nil
}
