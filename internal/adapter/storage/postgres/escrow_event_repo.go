package postgres

import (
	"context"
	"fmt"

	"zimba-booking/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// EscrowEventRepo implements ports.EscrowEventRepository. Rows are only ever inserted.
type EscrowEventRepo struct {
	pool Pool
}

// NewEscrowEventRepo creates a new EscrowEventRepo.
func NewEscrowEventRepo(pool Pool) *EscrowEventRepo {
	return &EscrowEventRepo{pool: pool}
}

// Append records an escrow state change within a database transaction.
func (r *EscrowEventRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.EscrowEvent) error {
	query := `INSERT INTO escrow_events (id, booking_id, from_state, to_state, actor, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query, e.ID, e.BookingID, e.FromState, e.ToState, e.Actor, e.Reason, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert escrow event: %w", err)
	}
	return nil
}

// ListByBooking returns a booking's escrow history, oldest first.
func (r *EscrowEventRepo) ListByBooking(ctx context.Context, bookingID string) ([]domain.EscrowEvent, error) {
	query := `SELECT id, booking_id, from_state, to_state, actor, reason, occurred_at
		FROM escrow_events WHERE booking_id = $1 ORDER BY occurred_at ASC`

	rows, err := r.pool.Query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list escrow events: %w", err)
	}
	defer rows.Close()

	var events []domain.EscrowEvent
	for rows.Next() {
		var e domain.EscrowEvent
		if err := rows.Scan(&e.ID, &e.BookingID, &e.FromState, &e.ToState, &e.Actor, &e.Reason, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan escrow event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escrow events: %w", err)
	}
	return events, nil
}
