// Package settlement holds the payment providers that move a renter's money
// into escrow when a checkout is confirmed.
package settlement

import (
	"context"
	"fmt"
	"time"

	"zimba-booking/internal/core/ports"

	"github.com/google/uuid"
)

// DeclineFunc decides whether the simulated provider should refuse a request.
type DeclineFunc func(req ports.SettlementRequest) (reason string, declined bool)

// Simulated settles every request after a fixed delay. It stands in for a
// real provider in local runs and tests.
type Simulated struct {
	delay   time.Duration
	decline DeclineFunc
}

// NewSimulated creates a simulated settler. A nil decline approves everything.
func NewSimulated(delay time.Duration, decline DeclineFunc) *Simulated {
	return &Simulated{delay: delay, decline: decline}
}

func (s *Simulated) Name() string { return "simulated" }

// Settle waits for the configured delay, or returns early with ctx's error.
func (s *Simulated) Settle(ctx context.Context, req ports.SettlementRequest) (*ports.SettlementResult, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("simulated settlement: %w", ctx.Err())
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("simulated settlement: %w", err)
	}

	if s.decline != nil {
		if reason, declined := s.decline(req); declined {
			return &ports.SettlementResult{Status: ports.SettlementDeclined, FailureReason: reason}, nil
		}
	}

	return &ports.SettlementResult{
		Status:    ports.SettlementSucceeded,
		Reference: "sim_" + uuid.NewString(),
	}, nil
}
