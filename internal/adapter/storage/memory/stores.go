package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"zimba-booking/internal/core/domain"
	"zimba-booking/internal/core/ports"
)

type expiring struct {
	value     []byte
	expiresAt time.Time
}

func (e expiring) live(now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// FlowStore implements ports.FlowStore. Flows are stored as JSON so callers
// never share a pointer with the store.
type FlowStore struct {
	mu    sync.Mutex
	flows map[string]expiring
	now   func() time.Time
}

// NewFlowStore creates an empty checkout flow store.
func NewFlowStore() *FlowStore {
	return &FlowStore{flows: make(map[string]expiring), now: time.Now}
}

func (s *FlowStore) Save(ctx context.Context, flow *domain.BookingFlow, ttl time.Duration) error {
	raw, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("marshal flow: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[flow.ID] = expiring{value: raw, expiresAt: expiry(s.now(), ttl)}
	return nil
}

func (s *FlowStore) Get(ctx context.Context, sessionID string) (*domain.BookingFlow, error) {
	s.mu.Lock()
	entry, ok := s.flows[sessionID]
	if ok && !entry.live(s.now()) {
		delete(s.flows, sessionID)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var flow domain.BookingFlow
	if err := json.Unmarshal(entry.value, &flow); err != nil {
		return nil, fmt.Errorf("unmarshal flow: %w", err)
	}
	return &flow, nil
}

// ConfirmGuard implements ports.ConfirmGuard for a single process.
type ConfirmGuard struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewConfirmGuard creates an empty guard.
func NewConfirmGuard() *ConfirmGuard {
	return &ConfirmGuard{held: make(map[string]time.Time), now: time.Now}
}

func (g *ConfirmGuard) Acquire(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if until, ok := g.held[sessionID]; ok && (until.IsZero() || now.Before(until)) {
		return false, nil
	}
	g.held[sessionID] = expiry(now, ttl)
	return true, nil
}

func (g *ConfirmGuard) Release(ctx context.Context, sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, sessionID)
	return nil
}

// IdempotencyCache implements ports.IdempotencyCache.
type IdempotencyCache struct {
	mu      sync.Mutex
	entries map[string]expiring
	now     func() time.Time
}

// NewIdempotencyCache creates an empty cache.
func NewIdempotencyCache() *IdempotencyCache {
	return &IdempotencyCache{entries: make(map[string]expiring), now: time.Now}
}

func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if !entry.live(c.now()) {
		delete(c.entries, key)
		return nil, nil
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok && entry.live(c.now()) {
		return nil
	}
	c.entries[key] = expiring{value: stored, expiresAt: expiry(c.now(), ttl)}
	return nil
}

// RateLimitStore implements ports.RateLimitStore with fixed windows, the
// same scheme as the Redis store. Buckets whose window has closed are swept
// at most once a second, so one-off keys do not accumulate.
type RateLimitStore struct {
	mu        sync.Mutex
	counts    map[string]*rateBucket
	lastSweep int64
	now       func() time.Time
}

type rateBucket struct {
	windowID int64
	count    int64
	resetAt  int64
}

// NewRateLimitStore creates an empty rate limit store.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{counts: make(map[string]*rateBucket), now: time.Now}
}

func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*ports.RateLimitResult, error) {
	windowSecs := int64(window.Seconds())
	if windowSecs < 1 {
		windowSecs = 1
	}
	now := s.now().Unix()
	windowID := now / windowSecs
	resetAt := (windowID + 1) * windowSecs

	s.mu.Lock()
	s.sweep(now)
	b, ok := s.counts[key]
	if !ok || b.windowID != windowID {
		b = &rateBucket{windowID: windowID, resetAt: resetAt}
		s.counts[key] = b
	}
	b.count++
	count := b.count
	s.mu.Unlock()

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &ports.RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// sweep drops closed windows. Callers hold mu.
func (s *RateLimitStore) sweep(now int64) {
	if now == s.lastSweep {
		return
	}
	s.lastSweep = now
	for key, b := range s.counts {
		if b.resetAt <= now {
			delete(s.counts, key)
		}
	}
}
