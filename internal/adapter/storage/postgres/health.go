package postgres

import (
	"context"
	"errors"
	"fmt"
)

var errSchemaMissing = errors.New("bookings table missing, migrations not applied")

// HealthCheck reports whether PostgreSQL is reachable and migrated.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping fails when the server is unreachable or the bookings table is absent.
func (h *HealthCheck) Ping(ctx context.Context) error {
	if err := h.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	var migrated bool
	if err := h.pool.QueryRow(ctx, `SELECT to_regclass('public.bookings') IS NOT NULL`).Scan(&migrated); err != nil {
		return fmt.Errorf("postgres schema check: %w", err)
	}
	if !migrated {
		return errSchemaMissing
	}
	return nil
}

func (h *HealthCheck) Name() string { return "postgresql" }
