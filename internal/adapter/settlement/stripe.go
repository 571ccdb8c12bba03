package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zimba-booking/internal/core/domain"
	"zimba-booking/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/paymentintent"
)

// PaymentIntentCreator is the slice of the Stripe client the settler uses.
type PaymentIntentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// Stripe settles by creating and confirming a PaymentIntent.
type Stripe struct {
	intents       PaymentIntentCreator
	paymentMethod string
	log           zerolog.Logger
}

// NewStripeClient builds the PaymentIntent client for secretKey.
func NewStripeClient(secretKey string) paymentintent.Client {
	return paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}
}

// NewStripe creates a Stripe settler. paymentMethod is charged on confirm.
func NewStripe(intents PaymentIntentCreator, paymentMethod string, log zerolog.Logger) *Stripe {
	return &Stripe{intents: intents, paymentMethod: paymentMethod, log: log}
}

// Currencies Stripe takes in whole units. Everything else is sent in
// hundredths.
var stripeZeroDecimal = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true, "KMF": true,
	"KRW": true, "MGA": true, "PYG": true, "RWF": true, "UGX": true, "VND": true,
	"VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

func stripeAmount(m domain.Money) int64 {
	if stripeZeroDecimal[m.Currency] {
		return m.MinorUnits(0)
	}
	return m.MinorUnits(2)
}

func (s *Stripe) Name() string { return "stripe" }

// Settle charges the total in Stripe's smallest unit for the currency. The
// request's idempotency key goes to Stripe, so resending one attempt never
// charges twice while a new attempt after a decline is evaluated afresh.
func (s *Stripe) Settle(ctx context.Context, req ports.SettlementRequest) (*ports.SettlementResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("stripe settlement: %w", err)
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(stripeAmount(req.Amount)),
		Currency:      stripe.String(strings.ToLower(req.Amount.Currency)),
		Confirm:       stripe.Bool(true),
		PaymentMethod: stripe.String(s.paymentMethod),
		Description:   stripe.String(req.Description),
	}
	params.Context = ctx
	key := req.IdempotencyKey
	if key == "" {
		key = req.SessionID
	}
	params.SetIdempotencyKey(key)
	params.AddMetadata("session_id", req.SessionID)
	params.AddMetadata("renter_id", req.RenterID)
	params.AddMetadata("property_id", req.PropertyID)

	intent, err := s.intents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			s.log.Warn().
				Str("session_id", req.SessionID).
				Str("decline_code", string(stripeErr.DeclineCode)).
				Msg("Card declined")
			return &ports.SettlementResult{Status: ports.SettlementDeclined, FailureReason: stripeErr.Msg}, nil
		}
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		reason := string(intent.Status)
		if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			reason = intent.LastPaymentError.Msg
		}
		return &ports.SettlementResult{
			Status:        ports.SettlementDeclined,
			Reference:     intent.ID,
			FailureReason: reason,
		}, nil
	}

	return &ports.SettlementResult{Status: ports.SettlementSucceeded, Reference: intent.ID}, nil
}
