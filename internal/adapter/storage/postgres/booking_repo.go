package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"zimba-booking/internal/core/domain"
	"zimba-booking/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

const bookingColumns = `id, session_id, property_id, property_name, landlord_id, landlord_name, renter_id,
		start_date, end_date, currency, base_price, commission_amount, diaspora_fee_amount, total_price,
		escrow_state, settlement_provider, settlement_ref, booked_at, updated_at`

// BookingRepo implements ports.BookingRepository.
type BookingRepo struct {
	pool Pool
}

// NewBookingRepo creates a new BookingRepo.
func NewBookingRepo(pool Pool) *BookingRepo {
	return &BookingRepo{pool: pool}
}

// Create inserts a booking within a database transaction. A second booking
// for the same checkout session yields domain.ErrDuplicateBooking.
func (r *BookingRepo) Create(ctx context.Context, tx pgx.Tx, b *domain.BookingRecord) error {
	query := `INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := tx.Exec(ctx, query,
		b.ID, b.SessionID, b.PropertyID, b.PropertyName, b.LandlordID, b.LandlordName, b.RenterID,
		b.StartDate, b.EndDate, b.TotalPrice.Currency,
		b.BasePrice.Amount, b.CommissionAmount.Amount, b.DiasporaFeeAmount.Amount, b.TotalPrice.Amount,
		b.EscrowState, b.SettlementProvider, b.SettlementRef, b.BookedAt, b.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateBooking
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// GetByID fetches a booking by id.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*domain.BookingRecord, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBooking(r.pool.QueryRow(ctx, query, id))
}

// GetBySessionID fetches the booking a checkout session produced, if any.
func (r *BookingRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.BookingRecord, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE session_id = $1`
	return scanBooking(r.pool.QueryRow(ctx, query, sessionID))
}

// GetByIDForUpdate fetches a booking and locks its row until tx ends.
func (r *BookingRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.BookingRecord, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	return scanBooking(tx.QueryRow(ctx, query, id))
}

// UpdateEscrowState sets the escrow state within a database transaction.
func (r *BookingRepo) UpdateEscrowState(ctx context.Context, tx pgx.Tx, id string, state domain.EscrowState, updatedAt time.Time) error {
	query := `UPDATE bookings SET escrow_state = $1, updated_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, state, updatedAt, id)
	if err != nil {
		return fmt.Errorf("update escrow state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("booking not found: %s", id)
	}
	return nil
}

// List fetches bookings with filtering and pagination, newest first.
func (r *BookingRepo) List(ctx context.Context, params ports.BookingListParams) ([]domain.BookingRecord, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	add := func(cond string, v any) {
		conditions = append(conditions, fmt.Sprintf(cond, argIdx))
		args = append(args, v)
		argIdx++
	}
	if params.LandlordID != nil {
		add("landlord_id = $%d", *params.LandlordID)
	}
	if params.RenterID != nil {
		add("renter_id = $%d", *params.RenterID)
	}
	if params.EscrowState != nil {
		add("escrow_state = $%d", *params.EscrowState)
	}
	if params.From != nil {
		add("booked_at >= $%d", *params.From)
	}
	if params.To != nil {
		add("booked_at <= $%d", *params.To)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM bookings %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM bookings %s ORDER BY booked_at DESC LIMIT $%d OFFSET $%d`,
		bookingColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []domain.BookingRecord
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate booking rows: %w", err)
	}
	return bookings, total, nil
}

// GetStats aggregates bookings, optionally for one landlord and from periodStart on.
// Amounts are summed per currency.
func (r *BookingRepo) GetStats(ctx context.Context, landlordID *string, periodStart *time.Time) (*ports.BookingStats, error) {
	var conditions []string
	var args []any
	if landlordID != nil {
		args = append(args, *landlordID)
		conditions = append(conditions, fmt.Sprintf("landlord_id = $%d", len(args)))
	}
	if periodStart != nil {
		args = append(args, *periodStart)
		conditions = append(conditions, fmt.Sprintf("booked_at >= $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	stats := &ports.BookingStats{ByState: make(map[domain.EscrowState]int64)}

	stateRows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT escrow_state, COUNT(*) FROM bookings %s GROUP BY escrow_state`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("count bookings by state: %w", err)
	}
	defer stateRows.Close()
	for stateRows.Next() {
		var state domain.EscrowState
		var n int64
		if err := stateRows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan state count: %w", err)
		}
		stats.ByState[state] = n
		stats.TotalBookings += n
	}
	if err := stateRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state counts: %w", err)
	}

	totalRows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT
		currency,
		COALESCE(SUM(total_price), 0) AS booked,
		COALESCE(SUM(total_price) FILTER (WHERE escrow_state IN ('payment_confirmed', 'move_in_pending')), 0) AS held,
		COALESCE(SUM(commission_amount) FILTER (WHERE escrow_state = 'completed'), 0) AS commission
		FROM bookings %s GROUP BY currency ORDER BY currency`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("sum bookings by currency: %w", err)
	}
	defer totalRows.Close()
	for totalRows.Next() {
		var t ports.CurrencyTotals
		if err := totalRows.Scan(&t.Currency, &t.Booked, &t.HeldInEscrow, &t.CommissionEarned); err != nil {
			return nil, fmt.Errorf("scan currency totals: %w", err)
		}
		stats.Totals = append(stats.Totals, t)
	}
	if err := totalRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate currency totals: %w", err)
	}
	return stats, nil
}

// scanBooking reads one booking row. Returns nil, nil on no rows.
func scanBooking(row pgx.Row) (*domain.BookingRecord, error) {
	b := &domain.BookingRecord{}
	var currency string
	var base, commission, diaspora, total decimal.Decimal
	err := row.Scan(
		&b.ID, &b.SessionID, &b.PropertyID, &b.PropertyName, &b.LandlordID, &b.LandlordName, &b.RenterID,
		&b.StartDate, &b.EndDate, &currency, &base, &commission, &diaspora, &total,
		&b.EscrowState, &b.SettlementProvider, &b.SettlementRef, &b.BookedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan booking: %w", err)
	}
	b.BasePrice = domain.Money{Amount: base, Currency: currency}
	b.CommissionAmount = domain.Money{Amount: commission, Currency: currency}
	b.DiasporaFeeAmount = domain.Money{Amount: diaspora, Currency: currency}
	b.TotalPrice = domain.Money{Amount: total, Currency: currency}
	return b, nil
}
