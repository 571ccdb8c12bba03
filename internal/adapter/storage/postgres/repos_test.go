package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"zimba-booking/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPropertyRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM properties WHERE id").
		WithArgs("prop-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "landlord_id", "landlord_name", "price", "currency"}).
			AddRow("prop-1", "East Legon Apartment", "landlord-1", "Kwame Mensah", decimal.RequireFromString("2500"), "GHS"))

	p, err := repo.GetByID(context.Background(), "prop-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "landlord-1", p.LandlordID)
	assert.Equal(t, "GHS", p.Price.Currency)
	assert.True(t, p.Price.Amount.Equal(decimal.NewFromInt(2500)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPropertyRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPropertyRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM properties WHERE id").
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "landlord_id", "landlord_name", "price", "currency"}))

	p, err := repo.GetByID(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestPropertyRepo_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPropertyRepo(mock)
	prop := domain.Property{
		ID:           "prop-1",
		Name:         "East Legon Apartment",
		LandlordID:   "landlord-1",
		LandlordName: "Kwame Mensah",
		Price:        domain.Money{Amount: decimal.NewFromInt(2500), Currency: "GHS"},
	}

	mock.ExpectExec("INSERT INTO properties").
		WithArgs("prop-1", "East Legon Apartment", "landlord-1", "Kwame Mensah", pgxmock.AnyArg(), "GHS").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO properties").
		WithArgs("prop-2", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	require.NoError(t, repo.Upsert(context.Background(), prop))

	prop.ID = "prop-2"
	err = repo.Upsert(context.Background(), prop)
	assert.ErrorContains(t, err, "upsert property prop-2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscrowEventRepo_AppendAndList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEscrowEventRepo(mock)
	now := time.Now().UTC()
	event := &domain.EscrowEvent{
		ID:         uuid.New(),
		BookingID:  "booking_1",
		FromState:  domain.EscrowStatePaymentConfirmed,
		ToState:    domain.EscrowStateMoveInPending,
		Actor:      "landlord-1",
		OccurredAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO escrow_events").
		WithArgs(event.ID, event.BookingID, event.FromState, event.ToState, event.Actor, event.Reason, event.OccurredAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, repo.Append(context.Background(), dbTx, event))

	mock.ExpectQuery("SELECT .+ FROM escrow_events WHERE booking_id").
		WithArgs("booking_1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "booking_id", "from_state", "to_state", "actor", "reason", "occurred_at"}).
			AddRow(event.ID, event.BookingID, event.FromState, event.ToState, event.Actor, event.Reason, event.OccurredAt))

	events, err := repo.ListByBooking(context.Background(), "booking_1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EscrowStateMoveInPending, events[0].ToState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	actor := "renter-1"
	entry := &domain.AuditLog{
		ID:           uuid.New(),
		ActorID:      &actor,
		Action:       domain.AuditActionBookingConfirmed,
		ResourceType: "booking",
		ResourceID:   "booking_1",
		IPAddress:    "10.0.0.1",
		CreatedAt:    time.Now(),
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, entry.ActorID, string(entry.Action), entry.ResourceType,
			entry.ResourceID, entry.Details, entry.IPAddress, entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck(t *testing.T) {
	schemaQuery := regexp.QuoteMeta(`SELECT to_regclass('public.bookings') IS NOT NULL`)

	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr string
	}{
		{
			name: "migrated",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectPing()
				mock.ExpectQuery(schemaQuery).WillReturnRows(pgxmock.NewRows([]string{"migrated"}).AddRow(true))
			},
		},
		{
			name: "unreachable",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectPing().WillReturnError(errors.New("connection refused"))
			},
			wantErr: "postgres ping",
		},
		{
			name: "schema missing",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectPing()
				mock.ExpectQuery(schemaQuery).WillReturnRows(pgxmock.NewRows([]string{"migrated"}).AddRow(false))
			},
			wantErr: "migrations not applied",
		},
		{
			name: "schema query fails",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectPing()
				mock.ExpectQuery(schemaQuery).WillReturnError(errors.New("permission denied"))
			},
			wantErr: "schema check",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.setup(mock)

			hc := NewHealthCheck(mock)
			assert.Equal(t, "postgresql", hc.Name())
			err = hc.Ping(context.Background())
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTransactor_BeginReadCommitted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	tx, err := NewTransactor(mock).Begin(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tx)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}).
		WillReturnError(errors.New("too many connections"))
	_, err = NewTransactor(mock).Begin(context.Background())
	assert.ErrorContains(t, err, "begin escrow transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS properties").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, RunMigrations(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}
