package domain

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMoney(t *testing.T, amount float64, currency string) Money {
	t.Helper()
	m, err := NewMoneyFromFloat(amount, currency)
	require.NoError(t, err)
	return m
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ==================== Fee Calculator ====================

func TestComputeFeeBreakdown_NoDiaspora(t *testing.T) {
	fees, err := ComputeFeeBreakdown(mustMoney(t, 2500, "GHS"), 0.05, false, DefaultDiasporaFeeRate)
	require.NoError(t, err)

	assert.True(t, fees.CommissionAmount.Amount.Equal(dec("125")))
	assert.True(t, fees.DiasporaFeeAmount.Amount.IsZero())
	assert.False(t, fees.DiasporaFeeApplied)
	assert.True(t, fees.Total.Amount.Equal(dec("2625")))
	assert.Equal(t, "GHS", fees.Total.Currency)
}

func TestComputeFeeBreakdown_WithDiaspora(t *testing.T) {
	fees, err := ComputeFeeBreakdown(mustMoney(t, 2500, "NGN"), 0.05, true, 0.02)
	require.NoError(t, err)

	assert.True(t, fees.CommissionAmount.Amount.Equal(dec("125")))
	assert.True(t, fees.DiasporaFeeAmount.Amount.Equal(dec("50")))
	assert.True(t, fees.Total.Amount.Equal(dec("2675")))
}

func TestComputeFeeBreakdown_InvalidInputs(t *testing.T) {
	tests := []struct {
		name           string
		base           Money
		commissionRate float64
		diasporaRate   float64
		wantField      string
	}{
		{"negative price", Money{Amount: dec("-100"), Currency: "NGN"}, 0.05, 0.02, "basePrice.amount"},
		{"commission above one", Money{Amount: dec("2500"), Currency: "NGN"}, 1.5, 0.02, "commissionRate"},
		{"commission negative", Money{Amount: dec("2500"), Currency: "NGN"}, -0.01, 0.02, "commissionRate"},
		{"commission NaN", Money{Amount: dec("2500"), Currency: "NGN"}, math.NaN(), 0.02, "commissionRate"},
		{"diaspora rate above one", Money{Amount: dec("2500"), Currency: "NGN"}, 0.05, 2, "diasporaFeeRate"},
		{"diaspora rate infinite", Money{Amount: dec("2500"), Currency: "NGN"}, 0.05, math.Inf(1), "diasporaFeeRate"},
		{"lower-case currency", Money{Amount: dec("2500"), Currency: "ngn"}, 0.05, 0.02, "basePrice.currency"},
		{"empty currency", Money{Amount: dec("2500")}, 0.05, 0.02, "basePrice.currency"},
		{"huge exponent", Money{Amount: dec("1e2000000"), Currency: "GHS"}, 0.05, 0.02, "basePrice.amount"},
		{"tiny exponent", Money{Amount: dec("1e-2000000"), Currency: "GHS"}, 0.05, 0.02, "basePrice.amount"},
		{"too many digits", Money{Amount: dec("1234567890123456789012345678901"), Currency: "GHS"}, 0.05, 0.02, "basePrice.amount"},
		{"sub-atomic commission", Money{Amount: dec("2500"), Currency: "NGN"}, 1e-300, 0.02, "commissionRate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fees, err := ComputeFeeBreakdown(tt.base, tt.commissionRate, false, tt.diasporaRate)
			assert.Nil(t, fees)

			var inputErr *InvalidInputError
			require.True(t, errors.As(err, &inputErr))
			assert.Equal(t, tt.wantField, inputErr.Field)
		})
	}
}

func TestComputeFeeBreakdown_BoundaryRates(t *testing.T) {
	base := mustMoney(t, 1000, "KES")

	zero, err := ComputeFeeBreakdown(base, 0, true, 0)
	require.NoError(t, err)
	assert.True(t, zero.Total.Amount.Equal(dec("1000")))

	full, err := ComputeFeeBreakdown(base, 1, true, 1)
	require.NoError(t, err)
	assert.True(t, full.Total.Amount.Equal(dec("3000")))
}

func TestComputeFeeBreakdown_ZeroPrice(t *testing.T) {
	fees, err := ComputeFeeBreakdown(mustMoney(t, 0, "USD"), 0.05, true, 0.02)
	require.NoError(t, err)
	assert.True(t, fees.Total.Amount.IsZero())
}

func TestComputeFeeBreakdown_TotalIsExactSum(t *testing.T) {
	prices := []string{"0", "0.01", "1", "99.99", "1234.5678", "2500", "1000000.07"}
	rates := []float64{0, 0.01, 0.025, 0.05, 0.1, 0.333, 1}

	for _, p := range prices {
		for _, cr := range rates {
			for _, dr := range rates {
				base := Money{Amount: dec(p), Currency: "ZAR"}

				plain, err := ComputeFeeBreakdown(base, cr, false, dr)
				require.NoError(t, err)
				wantPlain := base.Amount.Add(base.Amount.Mul(decimal.NewFromFloat(cr)))
				assert.True(t, plain.Total.Amount.Equal(wantPlain), "price=%s cr=%v", p, cr)

				withFee, err := ComputeFeeBreakdown(base, cr, true, dr)
				require.NoError(t, err)
				factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(cr)).Add(decimal.NewFromFloat(dr))
				assert.True(t, withFee.Total.Amount.Equal(base.Amount.Mul(factor)), "price=%s cr=%v dr=%v", p, cr, dr)

				sum := withFee.BasePrice.Amount.Add(withFee.CommissionAmount.Amount).Add(withFee.DiasporaFeeAmount.Amount)
				assert.True(t, withFee.Total.Amount.Equal(sum))
			}
		}
	}
}

func TestComputeFeeBreakdown_Deterministic(t *testing.T) {
	base := mustMoney(t, 1999.99, "GHS")
	first, err := ComputeFeeBreakdown(base, 0.07, true, 0.02)
	require.NoError(t, err)
	second, err := ComputeFeeBreakdown(base, 0.07, true, 0.02)
	require.NoError(t, err)

	assert.Equal(t, first.Total.Amount.String(), second.Total.Amount.String())
	assert.Equal(t, first.CommissionAmount.Amount.String(), second.CommissionAmount.Amount.String())
	assert.Equal(t, first.DiasporaFeeAmount.Amount.String(), second.DiasporaFeeAmount.Amount.String())
}

func TestNewMoneyFromFloat_RejectsNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := NewMoneyFromFloat(v, "USD")
		var inputErr *InvalidInputError
		require.True(t, errors.As(err, &inputErr))
		assert.Equal(t, "basePrice.amount", inputErr.Field)
	}
}

func TestNewMoney_AmountBounds(t *testing.T) {
	tests := []struct {
		amount string
		ok     bool
	}{
		{"0", true},
		{"89250.525", true},
		{"1e18", true},
		{"0.000000000000000001", true},
		{"123456789012345678901234567890", true},
		{"1e19", false},
		{"1e2000000", false},
		{"0.0000000000000000001", false},
		{"1234567890123456789012345678901", false},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			_, err := NewMoney(dec(tt.amount), "GHS")
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var inputErr *InvalidInputError
			require.True(t, errors.As(err, &inputErr))
			assert.Equal(t, "basePrice.amount", inputErr.Field)
		})
	}
}

func TestMoney_MinorUnits(t *testing.T) {
	assert.Equal(t, int64(262500), Money{Amount: dec("2625"), Currency: "GHS"}.MinorUnits(2))
	assert.Equal(t, int64(1235), Money{Amount: dec("12.345"), Currency: "GHS"}.MinorUnits(2))
	assert.Equal(t, int64(89251), Money{Amount: dec("89250.525"), Currency: "XOF"}.MinorUnits(0))
}

// ==================== Booking Flow ====================

func newTestFlow(t *testing.T) *BookingFlow {
	t.Helper()
	price := mustMoney(t, 2500, "GHS")
	fees, err := ComputeFeeBreakdown(price, 0.05, false, DefaultDiasporaFeeRate)
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return NewBookingFlow("renter-1", Property{
		ID:           "prop-1",
		Name:         "East Legon Apartment",
		LandlordID:   "landlord-1",
		LandlordName: "Kwame Mensah",
		Price:        price,
	}, false, now.AddDate(0, 0, 7), now.AddDate(0, 1, 7), fees, now)
}

func TestBookingFlow_HappyPath(t *testing.T) {
	f := newTestFlow(t)
	assert.Equal(t, BookingStepDetails, f.Step)

	require.NoError(t, f.Advance())
	assert.Equal(t, BookingStepPayment, f.Step)

	require.NoError(t, f.BeginConfirm())
	assert.True(t, f.Confirming)

	record, err := NewBookingRecord(f, "simulated", "sim_123", time.Now())
	require.NoError(t, err)
	require.NoError(t, f.CompleteConfirm(record.ID))

	assert.Equal(t, BookingStepConfirmed, f.Step)
	assert.False(t, f.Confirming)
	require.NotNil(t, f.BookingID)
	assert.Equal(t, record.ID, *f.BookingID)
	assert.Equal(t, EscrowStatePaymentConfirmed, record.EscrowState)
	assert.True(t, record.TotalPrice.Amount.Equal(dec("2625")))
}

func TestBookingFlow_AdvanceThenRetreat(t *testing.T) {
	f := newTestFlow(t)
	fees := f.Fees

	require.NoError(t, f.Advance())
	require.NoError(t, f.Retreat())

	assert.Equal(t, BookingStepDetails, f.Step)
	assert.Nil(t, f.BookingID)
	assert.Same(t, fees, f.Fees)
}

func TestBookingFlow_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *BookingFlow)
		act   func(f *BookingFlow) error
	}{
		{"retreat from details", func(f *BookingFlow) {}, (*BookingFlow).Retreat},
		{"confirm from details", func(f *BookingFlow) {}, (*BookingFlow).BeginConfirm},
		{"advance from payment", func(f *BookingFlow) { _ = f.Advance() }, (*BookingFlow).Advance},
		{"advance from confirmed", func(f *BookingFlow) {
			_ = f.Advance()
			_ = f.BeginConfirm()
			_ = f.CompleteConfirm("booking_x")
		}, (*BookingFlow).Advance},
		{"confirm from confirmed", func(f *BookingFlow) {
			_ = f.Advance()
			_ = f.BeginConfirm()
			_ = f.CompleteConfirm("booking_x")
		}, (*BookingFlow).BeginConfirm},
		{"retreat while confirming", func(f *BookingFlow) {
			_ = f.Advance()
			_ = f.BeginConfirm()
		}, (*BookingFlow).Retreat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFlow(t)
			tt.setup(f)
			err := tt.act(f)

			var transErr *InvalidTransitionError
			require.True(t, errors.As(err, &transErr))
			assert.True(t, errors.Is(err, ErrInvalidTransition))
		})
	}
}

func TestBookingFlow_AdvanceRequiresFees(t *testing.T) {
	f := newTestFlow(t)
	f.Fees = nil
	assert.ErrorIs(t, f.Advance(), ErrInvalidTransition)
}

func TestBookingFlow_DoubleBeginConfirm(t *testing.T) {
	f := newTestFlow(t)
	require.NoError(t, f.Advance())
	require.NoError(t, f.BeginConfirm())
	assert.ErrorIs(t, f.BeginConfirm(), ErrConfirmInFlight)
}

func TestBookingFlow_AbortConfirmKeepsPayment(t *testing.T) {
	f := newTestFlow(t)
	require.NoError(t, f.Advance())
	require.NoError(t, f.BeginConfirm())

	f.AbortConfirm()

	assert.Equal(t, BookingStepPayment, f.Step)
	assert.False(t, f.Confirming)
	assert.Nil(t, f.BookingID)
	require.NoError(t, f.BeginConfirm(), "a failed settlement can be retried")
}

func TestBookingFlow_SettlementKeys(t *testing.T) {
	f := newTestFlow(t)
	require.NoError(t, f.Advance())

	require.NoError(t, f.BeginConfirm())
	assert.Equal(t, f.ID+":1", f.SettlementKey())

	// declined: next attempt gets a new key
	f.AbortConfirm()
	require.NoError(t, f.BeginConfirm())
	assert.Equal(t, f.ID+":2", f.SettlementKey())

	// answer lost: next attempt repeats the key
	f.AbortUnsettled()
	assert.False(t, f.Confirming)
	require.NoError(t, f.BeginConfirm())
	assert.Equal(t, f.ID+":2", f.SettlementKey())

	// crashed owner: resumed under the same key
	require.NoError(t, f.ResumeConfirm())
	assert.Equal(t, f.ID+":2", f.SettlementKey())
}

func TestBookingFlow_ResumeConfirmRequiresInFlight(t *testing.T) {
	f := newTestFlow(t)
	require.NoError(t, f.Advance())

	var transErr *InvalidTransitionError
	require.ErrorAs(t, f.ResumeConfirm(), &transErr)
	assert.Equal(t, "resume confirmation", transErr.Action)
}

func TestBookingFlow_AbortClearsRecordedSettlement(t *testing.T) {
	f := newTestFlow(t)
	require.NoError(t, f.Advance())
	require.NoError(t, f.BeginConfirm())
	f.RecordSettlement("pi_1")
	assert.Equal(t, "pi_1", f.SettlementRef)

	f.AbortConfirm()
	assert.Empty(t, f.SettlementRef)
}

func TestNewBookingID_Format(t *testing.T) {
	now := time.UnixMilli(1767225600000)
	id := NewBookingID("prop-9", now)
	assert.True(t, strings.HasPrefix(id, "booking_prop-9_1767225600000_"))
	assert.NotEqual(t, id, NewBookingID("prop-9", now))
}

// ==================== Escrow Timeline ====================

func TestEscrowTimeline_Indices(t *testing.T) {
	tests := []struct {
		state EscrowState
		index int
	}{
		{EscrowStateInitiated, 0},
		{EscrowStatePaymentPending, 1},
		{EscrowStatePaymentConfirmed, 2},
		{EscrowStateMoveInPending, 3},
		{EscrowStateCompleted, 4},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			idx, ok := CurrentStepIndex(tt.state)
			assert.True(t, ok)
			assert.Equal(t, tt.index, idx)
		})
	}

	_, ok := CurrentStepIndex(EscrowStateDispute)
	assert.False(t, ok, "dispute is not on the linear timeline")
}

func TestIsStepComplete(t *testing.T) {
	initiated, _ := IndexOf(EscrowStateInitiated)
	completed, _ := IndexOf(EscrowStateCompleted)

	assert.True(t, IsStepComplete(EscrowStatePaymentConfirmed, initiated))
	assert.False(t, IsStepComplete(EscrowStateInitiated, completed))

	for i := 0; i <= 3; i++ {
		assert.True(t, IsStepComplete(EscrowStateMoveInPending, i), "step %d", i)
	}
	assert.False(t, IsStepComplete(EscrowStateMoveInPending, 4))

	for i := range EscrowTimeline {
		assert.False(t, IsStepComplete(EscrowStateDispute, i))
	}
	assert.False(t, IsStepComplete(EscrowStateCompleted, -1))
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 20, ProgressPercent(EscrowStateInitiated))
	assert.Equal(t, 80, ProgressPercent(EscrowStateMoveInPending))
	assert.Equal(t, 100, ProgressPercent(EscrowStateCompleted))
	assert.Equal(t, 0, ProgressPercent(EscrowStateDispute))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to EscrowState
		want     bool
	}{
		{EscrowStateInitiated, EscrowStatePaymentPending, true},
		{EscrowStatePaymentConfirmed, EscrowStateMoveInPending, true},
		{EscrowStateMoveInPending, EscrowStateCompleted, true},
		{EscrowStatePaymentConfirmed, EscrowStateCompleted, false},
		{EscrowStateMoveInPending, EscrowStatePaymentConfirmed, false},
		{EscrowStateMoveInPending, EscrowStateDispute, true},
		{EscrowStateInitiated, EscrowStateDispute, true},
		{EscrowStateCompleted, EscrowStateDispute, false},
		{EscrowStateDispute, EscrowStateCompleted, false},
		{EscrowStateDispute, EscrowStateDispute, false},
		{EscrowState("bogus"), EscrowStateDispute, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestBuildTimelineView(t *testing.T) {
	view := BuildTimelineView(EscrowStateMoveInPending)
	require.Len(t, view.Steps, 5)
	assert.False(t, view.Disputed)
	assert.Equal(t, 80, view.Progress)
	assert.True(t, view.Steps[3].Current)
	assert.True(t, view.Steps[3].Complete)
	assert.False(t, view.Steps[4].Complete)

	disputed := BuildTimelineView(EscrowStateDispute)
	assert.True(t, disputed.Disputed)
	for _, step := range disputed.Steps {
		assert.False(t, step.Complete)
		assert.False(t, step.Current)
	}
}
