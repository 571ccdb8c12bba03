package service

import (
	"context"
	"io"
	"testing"
	"time"

	"zimba-booking/internal/core/domain"
	"zimba-booking/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

var (
	testNow    = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	testRenter = domain.Actor{UserID: "renter-1", Role: domain.RoleRenter}
)

func testProperty() domain.Property {
	return domain.Property{
		ID:           "prop-1",
		Name:         "East Legon Apartment",
		LandlordID:   "landlord-1",
		LandlordName: "Kwame Mensah",
		Price:        domain.Money{Amount: decimal.NewFromInt(2500), Currency: "GHS"},
	}
}

func testOptions() CheckoutOptions {
	return CheckoutOptions{
		CommissionRate:  0.05,
		DiasporaFeeRate: 0.02,
		SessionTTL:      30 * time.Minute,
		ConfirmTimeout:  time.Second,
		IdempotencyTTL:  24 * time.Hour,
	}
}

// testFlow returns a fresh flow for session sess-1 sitting at step.
func testFlow(t *testing.T, step domain.BookingStep) *domain.BookingFlow {
	t.Helper()
	p := testProperty()
	fees, err := domain.ComputeFeeBreakdown(p.Price, 0.05, false, 0.02)
	require.NoError(t, err)
	flow := domain.NewBookingFlow(testRenter.UserID, p, false, testNow.AddDate(0, 1, 0), testNow.AddDate(0, 2, 0), fees, testNow)
	flow.ID = "sess-1"
	flow.Step = step
	return flow
}

func testBookingRecord(state domain.EscrowState) *domain.BookingRecord {
	return &domain.BookingRecord{
		ID:          "booking_prop-1_1777888800000_abcd1234",
		SessionID:   "sess-1",
		PropertyID:  "prop-1",
		LandlordID:  "landlord-1",
		RenterID:    "renter-1",
		TotalPrice:  domain.Money{Amount: decimal.NewFromInt(2625), Currency: "GHS"},
		EscrowState: state,
		BookedAt:    testNow,
		UpdatedAt:   testNow,
	}
}
