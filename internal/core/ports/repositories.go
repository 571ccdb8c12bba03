package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"zimba-booking/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// PropertyRepository is the read-only view of the property catalog.
type PropertyRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Property, error)
}

// BookingRepository defines persistence operations for bookings.
// Methods accepting pgx.Tx run inside a transaction; GetByIDForUpdate takes a row lock.
type BookingRepository interface {
	Create(ctx context.Context, tx pgx.Tx, booking *domain.BookingRecord) error
	GetByID(ctx context.Context, id string) (*domain.BookingRecord, error)
	GetBySessionID(ctx context.Context, sessionID string) (*domain.BookingRecord, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.BookingRecord, error)
	UpdateEscrowState(ctx context.Context, tx pgx.Tx, id string, state domain.EscrowState, updatedAt time.Time) error
	// Reporting queries
	List(ctx context.Context, params BookingListParams) ([]domain.BookingRecord, int64, error)
	GetStats(ctx context.Context, landlordID *string, periodStart *time.Time) (*BookingStats, error)
}

// BookingListParams holds filter + pagination for listing bookings.
type BookingListParams struct {
	LandlordID  *string
	RenterID    *string
	EscrowState *domain.EscrowState
	From        *time.Time
	To          *time.Time
	Page        int
	PageSize    int
}

// BookingStats holds aggregated booking figures for the dashboard.
type BookingStats struct {
	TotalBookings int64
	ByState       map[domain.EscrowState]int64
	Totals        []CurrencyTotals // one row per currency, amounts are never converted
}

// CurrencyTotals sums booking amounts that share a currency.
type CurrencyTotals struct {
	Currency         string
	Booked           decimal.Decimal // sum of total prices
	HeldInEscrow     decimal.Decimal // payment_confirmed + move_in_pending
	CommissionEarned decimal.Decimal
}

// EscrowEventRepository is the append-only escrow history.
type EscrowEventRepository interface {
	Append(ctx context.Context, tx pgx.Tx, event *domain.EscrowEvent) error
	ListByBooking(ctx context.Context, bookingID string) ([]domain.EscrowEvent, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
