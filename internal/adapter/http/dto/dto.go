package dto

import (
	"time"

	"zimba-booking/internal/core/domain"
	"zimba-booking/internal/core/ports"
	"zimba-booking/pkg/moneyfmt"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format accepted for stay dates.
const DateLayout = "2006-01-02"

// FeeQuoteRequest is the request body for a fee quote.
// Range and currency checks happen in the fee calculator so they surface as FEE_001.
type FeeQuoteRequest struct {
	Amount             *decimal.Decimal `json:"amount" binding:"required"`
	Currency           string           `json:"currency" binding:"required,max=8"`
	CommissionRate     *float64         `json:"commission_rate,omitempty"`
	DiasporaFeeApplied bool             `json:"diaspora_fee_applied"`
	DiasporaFeeRate    *float64         `json:"diaspora_fee_rate,omitempty"`
	Locale             string           `json:"locale,omitempty" binding:"max=35"`
}

// StartCheckoutRequest is the request body for opening a checkout.
type StartCheckoutRequest struct {
	PropertyID string `json:"property_id" binding:"required,max=100,safe_id"`
	StartDate  string `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" binding:"required,datetime=2006-01-02"`
}

// DisputeRequest is the request body for opening a dispute. An empty reason is
// rejected by the escrow service.
type DisputeRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// BookingListQuery holds the query string of the booking listing.
type BookingListQuery struct {
	EscrowState string `form:"escrow_state" binding:"omitempty,escrow_state"`
	From        string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To          string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// MoneyResponse is an amount with its display rendering.
type MoneyResponse struct {
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Formatted string `json:"formatted"`
}

// FeeBreakdownResponse is the rendered fee breakdown.
type FeeBreakdownResponse struct {
	BasePrice          MoneyResponse `json:"base_price"`
	CommissionRate     string        `json:"commission_rate"`
	CommissionAmount   MoneyResponse `json:"commission_amount"`
	DiasporaFeeApplied bool          `json:"diaspora_fee_applied"`
	DiasporaFeeRate    string        `json:"diaspora_fee_rate"`
	DiasporaFeeAmount  MoneyResponse `json:"diaspora_fee_amount"`
	Total              MoneyResponse `json:"total"`
	Locale             string        `json:"locale"`
}

// CheckoutResponse is the rendered checkout flow.
type CheckoutResponse struct {
	SessionID    string                `json:"session_id"`
	Step         string                `json:"step"`
	PropertyID   string                `json:"property_id"`
	PropertyName string                `json:"property_name"`
	LandlordName string                `json:"landlord_name"`
	StartDate    string                `json:"start_date"`
	EndDate      string                `json:"end_date"`
	DiasporaUser bool                  `json:"diaspora_user"`
	Fees         *FeeBreakdownResponse `json:"fees,omitempty"`
	BookingID    *string               `json:"booking_id,omitempty"`
	UpdatedAt    string                `json:"updated_at"`
}

// BookingResponse is the rendered booking record.
type BookingResponse struct {
	ID                 string        `json:"id"`
	SessionID          string        `json:"session_id"`
	PropertyID         string        `json:"property_id"`
	PropertyName       string        `json:"property_name"`
	LandlordID         string        `json:"landlord_id"`
	LandlordName       string        `json:"landlord_name"`
	RenterID           string        `json:"renter_id"`
	StartDate          string        `json:"start_date"`
	EndDate            string        `json:"end_date"`
	BasePrice          MoneyResponse `json:"base_price"`
	CommissionAmount   MoneyResponse `json:"commission_amount"`
	DiasporaFeeAmount  MoneyResponse `json:"diaspora_fee_amount"`
	TotalPrice         MoneyResponse `json:"total_price"`
	EscrowState        string        `json:"escrow_state"`
	SettlementProvider string        `json:"settlement_provider"`
	SettlementRef      string        `json:"settlement_ref"`
	BookedAt           string        `json:"booked_at"`
	UpdatedAt          string        `json:"updated_at"`
}

// TimelineStepResponse is one step of the escrow timeline.
type TimelineStepResponse struct {
	State    string `json:"state"`
	Index    int    `json:"index"`
	Complete bool   `json:"complete"`
	Current  bool   `json:"current"`
}

// EscrowEventResponse is one recorded escrow transition.
type EscrowEventResponse struct {
	FromState  string `json:"from_state,omitempty"`
	ToState    string `json:"to_state"`
	Actor      string `json:"actor"`
	Reason     string `json:"reason,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// TimelineResponse is a booking's escrow timeline and history.
type TimelineResponse struct {
	BookingID string                 `json:"booking_id"`
	State     string                 `json:"state"`
	Progress  int                    `json:"progress"`
	Disputed  bool                   `json:"disputed"`
	Steps     []TimelineStepResponse `json:"steps"`
	History   []EscrowEventResponse  `json:"history"`
}

// CurrencyTotalsResponse holds dashboard sums for one currency.
type CurrencyTotalsResponse struct {
	Currency         string `json:"currency"`
	Booked           string `json:"booked"`
	HeldInEscrow     string `json:"held_in_escrow"`
	CommissionEarned string `json:"commission_earned"`
}

// DashboardStatsResponse is the response body for dashboard statistics.
type DashboardStatsResponse struct {
	Period        string                   `json:"period"`
	TotalBookings int64                    `json:"total_bookings"`
	ByState       map[string]int64         `json:"by_state"`
	Totals        []CurrencyTotalsResponse `json:"totals"`
}

// ToMoneyResponse renders m with f.
func ToMoneyResponse(m domain.Money, f *moneyfmt.Formatter) MoneyResponse {
	return MoneyResponse{
		Amount:    m.Amount.String(),
		Currency:  m.Currency,
		Formatted: f.Format(m.Amount, m.Currency),
	}
}

// ToFeeBreakdownResponse renders a breakdown for the formatter's locale.
func ToFeeBreakdownResponse(b *domain.FeeBreakdown, f *moneyfmt.Formatter) *FeeBreakdownResponse {
	if b == nil {
		return nil
	}
	return &FeeBreakdownResponse{
		BasePrice:          ToMoneyResponse(b.BasePrice, f),
		CommissionRate:     b.CommissionRate.String(),
		CommissionAmount:   ToMoneyResponse(b.CommissionAmount, f),
		DiasporaFeeApplied: b.DiasporaFeeApplied,
		DiasporaFeeRate:    b.DiasporaFeeRate.String(),
		DiasporaFeeAmount:  ToMoneyResponse(b.DiasporaFeeAmount, f),
		Total:              ToMoneyResponse(b.Total, f),
		Locale:             f.Locale(),
	}
}

// ToCheckoutResponse renders a checkout flow.
func ToCheckoutResponse(flow *domain.BookingFlow, f *moneyfmt.Formatter) CheckoutResponse {
	return CheckoutResponse{
		SessionID:    flow.ID,
		Step:         string(flow.Step),
		PropertyID:   flow.Property.ID,
		PropertyName: flow.Property.Name,
		LandlordName: flow.Property.LandlordName,
		StartDate:    flow.StartDate.Format(DateLayout),
		EndDate:      flow.EndDate.Format(DateLayout),
		DiasporaUser: flow.DiasporaUser,
		Fees:         ToFeeBreakdownResponse(flow.Fees, f),
		BookingID:    flow.BookingID,
		UpdatedAt:    flow.UpdatedAt.Format(time.RFC3339),
	}
}

// ToBookingResponse renders a booking record.
func ToBookingResponse(b *domain.BookingRecord, f *moneyfmt.Formatter) BookingResponse {
	return BookingResponse{
		ID:                 b.ID,
		SessionID:          b.SessionID,
		PropertyID:         b.PropertyID,
		PropertyName:       b.PropertyName,
		LandlordID:         b.LandlordID,
		LandlordName:       b.LandlordName,
		RenterID:           b.RenterID,
		StartDate:          b.StartDate.Format(DateLayout),
		EndDate:            b.EndDate.Format(DateLayout),
		BasePrice:          ToMoneyResponse(b.BasePrice, f),
		CommissionAmount:   ToMoneyResponse(b.CommissionAmount, f),
		DiasporaFeeAmount:  ToMoneyResponse(b.DiasporaFeeAmount, f),
		TotalPrice:         ToMoneyResponse(b.TotalPrice, f),
		EscrowState:        string(b.EscrowState),
		SettlementProvider: b.SettlementProvider,
		SettlementRef:      b.SettlementRef,
		BookedAt:           b.BookedAt.Format(time.RFC3339),
		UpdatedAt:          b.UpdatedAt.Format(time.RFC3339),
	}
}

// ToTimelineResponse renders a booking's escrow timeline.
func ToTimelineResponse(t *ports.BookingTimeline) TimelineResponse {
	steps := make([]TimelineStepResponse, 0, len(t.View.Steps))
	for _, s := range t.View.Steps {
		steps = append(steps, TimelineStepResponse{
			State:    string(s.State),
			Index:    s.Index,
			Complete: s.Complete,
			Current:  s.Current,
		})
	}
	history := make([]EscrowEventResponse, 0, len(t.Events))
	for _, e := range t.Events {
		history = append(history, EscrowEventResponse{
			FromState:  string(e.FromState),
			ToState:    string(e.ToState),
			Actor:      e.Actor,
			Reason:     e.Reason,
			OccurredAt: e.OccurredAt.Format(time.RFC3339),
		})
	}
	return TimelineResponse{
		BookingID: t.Booking.ID,
		State:     string(t.View.State),
		Progress:  t.View.Progress,
		Disputed:  t.View.Disputed,
		Steps:     steps,
		History:   history,
	}
}

// ToDashboardStatsResponse renders aggregated stats.
func ToDashboardStatsResponse(period string, s *ports.BookingStats) DashboardStatsResponse {
	byState := make(map[string]int64, len(s.ByState))
	for state, n := range s.ByState {
		byState[string(state)] = n
	}
	totals := make([]CurrencyTotalsResponse, 0, len(s.Totals))
	for _, t := range s.Totals {
		totals = append(totals, CurrencyTotalsResponse{
			Currency:         t.Currency,
			Booked:           t.Booked.String(),
			HeldInEscrow:     t.HeldInEscrow.String(),
			CommissionEarned: t.CommissionEarned.String(),
		})
	}
	if period == "" {
		period = "all"
	}
	return DashboardStatsResponse{
		Period:        period,
		TotalBookings: s.TotalBookings,
		ByState:       byState,
		Totals:        totals,
	}
}
