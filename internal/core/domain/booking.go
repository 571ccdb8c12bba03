package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BookingStep is the position of a checkout in the booking flow.
type BookingStep string

const (
	BookingStepDetails   BookingStep = "DETAILS"
	BookingStepPayment   BookingStep = "PAYMENT"
	BookingStepConfirmed BookingStep = "CONFIRMED"
)

// BookingFlow is one checkout session: DETAILS -> PAYMENT -> CONFIRMED.
// Every field is exported so the flow can be persisted between requests.
// Attempt counts settlement attempts, each with its own provider key.
// SettlementRef is set when funds moved but the booking is not stored yet.
type BookingFlow struct {
	ID            string        `json:"id"`
	RenterID      string        `json:"renter_id"`
	Property      Property      `json:"property"`
	DiasporaUser  bool          `json:"diaspora_user"`
	StartDate     time.Time     `json:"start_date"`
	EndDate       time.Time     `json:"end_date"`
	Fees          *FeeBreakdown `json:"fees"`
	Step          BookingStep   `json:"step"`
	Confirming    bool          `json:"confirming"`
	Attempt       int           `json:"attempt"`
	SettlementRef string        `json:"settlement_ref,omitempty"`
	BookingID     *string       `json:"booking_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewBookingFlow starts a flow in DETAILS with the breakdown already priced.
func NewBookingFlow(renterID string, property Property, diasporaUser bool, start, end time.Time, fees *FeeBreakdown, now time.Time) *BookingFlow {
	return &BookingFlow{
		ID:           uuid.NewString(),
		RenterID:     renterID,
		Property:     property,
		DiasporaUser: diasporaUser,
		StartDate:    start,
		EndDate:      end,
		Fees:         fees,
		Step:         BookingStepDetails,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Advance moves DETAILS -> PAYMENT. The breakdown must have been computed.
func (f *BookingFlow) Advance() error {
	if f.Step != BookingStepDetails || f.Fees == nil {
		return f.invalid("advance")
	}
	f.Step = BookingStepPayment
	return nil
}

// Retreat moves PAYMENT -> DETAILS and keeps every input.
func (f *BookingFlow) Retreat() error {
	if f.Step != BookingStepPayment || f.Confirming {
		return f.invalid("retreat")
	}
	f.Step = BookingStepDetails
	return nil
}

// BeginConfirm marks a confirmation as in flight. Only one may run at a time.
func (f *BookingFlow) BeginConfirm() error {
	if f.Step != BookingStepPayment {
		return f.invalid("confirm payment")
	}
	if f.Confirming {
		return ErrConfirmInFlight
	}
	f.Confirming = true
	f.Attempt++
	return nil
}

// ResumeConfirm takes over a confirmation whose previous owner is gone. The
// attempt number is kept so the provider sees the same settlement key and
// cannot charge twice for one attempt.
func (f *BookingFlow) ResumeConfirm() error {
	if f.Step != BookingStepPayment || !f.Confirming {
		return f.invalid("resume confirmation")
	}
	return nil
}

// SettlementKey identifies the current attempt to the payment provider.
func (f *BookingFlow) SettlementKey() string {
	return fmt.Sprintf("%s:%d", f.ID, f.Attempt)
}

// RecordSettlement remembers funds that moved before the booking was stored.
func (f *BookingFlow) RecordSettlement(ref string) {
	f.SettlementRef = ref
}

// AbortConfirm clears the in-flight flag after a failed settlement.
// The flow stays in PAYMENT so the renter can retry.
func (f *BookingFlow) AbortConfirm() {
	f.Confirming = false
	f.SettlementRef = ""
}

// AbortUnsettled clears the in-flight flag when the provider's answer was
// lost. The next BeginConfirm reuses this attempt's key, so a charge that did
// go through is returned by the provider instead of repeated.
func (f *BookingFlow) AbortUnsettled() {
	f.AbortConfirm()
	if f.Attempt > 0 {
		f.Attempt--
	}
}

// CompleteConfirm moves PAYMENT -> CONFIRMED once the booking exists.
func (f *BookingFlow) CompleteConfirm(bookingID string) error {
	if f.Step != BookingStepPayment || !f.Confirming {
		return f.invalid("complete confirmation")
	}
	f.Confirming = false
	f.Step = BookingStepConfirmed
	f.BookingID = &bookingID
	return nil
}

func (f *BookingFlow) invalid(action string) error {
	return &InvalidTransitionError{From: string(f.Step), Action: action}
}

// BookingRecord is created exactly once, when payment settles.
type BookingRecord struct {
	ID                 string      `json:"id"`
	SessionID          string      `json:"session_id"`
	PropertyID         string      `json:"property_id"`
	PropertyName       string      `json:"property_name"`
	LandlordID         string      `json:"landlord_id"`
	LandlordName       string      `json:"landlord_name"`
	RenterID           string      `json:"renter_id"`
	StartDate          time.Time   `json:"start_date"`
	EndDate            time.Time   `json:"end_date"`
	BasePrice          Money       `json:"base_price"`
	CommissionAmount   Money       `json:"commission_amount"`
	DiasporaFeeAmount  Money       `json:"diaspora_fee_amount"`
	TotalPrice         Money       `json:"total_price"`
	EscrowState        EscrowState `json:"escrow_state"`
	SettlementProvider string      `json:"settlement_provider"`
	SettlementRef      string      `json:"settlement_ref"`
	BookedAt           time.Time   `json:"booked_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// NewBookingID builds booking_{propertyId}_{unixMillis}_{suffix}.
func NewBookingID(propertyID string, now time.Time) string {
	return fmt.Sprintf("booking_%s_%d_%s", propertyID, now.UnixMilli(), uuid.NewString()[:8])
}

// NewBookingRecord snapshots a settled flow. Funds are held, so the escrow
// starts at payment_confirmed.
func NewBookingRecord(f *BookingFlow, provider, settlementRef string, now time.Time) (*BookingRecord, error) {
	if f.Fees == nil || f.Step != BookingStepPayment {
		return nil, f.invalid("create booking")
	}
	return &BookingRecord{
		ID:                 NewBookingID(f.Property.ID, now),
		SessionID:          f.ID,
		PropertyID:         f.Property.ID,
		PropertyName:       f.Property.Name,
		LandlordID:         f.Property.LandlordID,
		LandlordName:       f.Property.LandlordName,
		RenterID:           f.RenterID,
		StartDate:          f.StartDate,
		EndDate:            f.EndDate,
		BasePrice:          f.Fees.BasePrice,
		CommissionAmount:   f.Fees.CommissionAmount,
		DiasporaFeeAmount:  f.Fees.DiasporaFeeAmount,
		TotalPrice:         f.Fees.Total,
		EscrowState:        EscrowStatePaymentConfirmed,
		SettlementProvider: provider,
		SettlementRef:      settlementRef,
		BookedAt:           now,
		UpdatedAt:          now,
	}, nil
}
