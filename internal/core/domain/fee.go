package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// DefaultDiasporaFeeRate applies when no explicit diaspora rate is configured.
const DefaultDiasporaFeeRate = 0.02

// FeeBreakdown is derived from a base price and is never stored on its own.
// Total is always the exact sum of the three components.
type FeeBreakdown struct {
	BasePrice          Money           `json:"base_price"`
	CommissionRate     decimal.Decimal `json:"commission_rate"`
	CommissionAmount   Money           `json:"commission_amount"`
	DiasporaFeeApplied bool            `json:"diaspora_fee_applied"`
	DiasporaFeeRate    decimal.Decimal `json:"diaspora_fee_rate"`
	DiasporaFeeAmount  Money           `json:"diaspora_fee_amount"`
	Total              Money           `json:"total"`
}

// ComputeFeeBreakdown prices a booking. It is pure: identical inputs give
// identical output, and nothing is rounded.
func ComputeFeeBreakdown(base Money, commissionRate float64, diasporaFeeApplied bool, diasporaFeeRate float64) (*FeeBreakdown, error) {
	if err := validateAmount("basePrice.amount", base.Amount); err != nil {
		return nil, err
	}
	if !currencyCodeRe.MatchString(base.Currency) {
		return nil, &InvalidInputError{Field: "basePrice.currency", Reason: "must be a 3-letter upper-case code"}
	}
	commission, err := parseRate("commissionRate", commissionRate)
	if err != nil {
		return nil, err
	}
	diasporaRate, err := parseRate("diasporaFeeRate", diasporaFeeRate)
	if err != nil {
		return nil, err
	}

	commissionAmount := base.Mul(commission)
	diasporaAmount := base.Zero()
	if diasporaFeeApplied {
		diasporaAmount = base.Mul(diasporaRate)
	}

	return &FeeBreakdown{
		BasePrice:          base,
		CommissionRate:     commission,
		CommissionAmount:   commissionAmount,
		DiasporaFeeApplied: diasporaFeeApplied,
		DiasporaFeeRate:    diasporaRate,
		DiasporaFeeAmount:  diasporaAmount,
		Total:              base.Add(commissionAmount).Add(diasporaAmount),
	}, nil
}

// ValidateRate checks that a rate is finite and within [0,1].
func ValidateRate(field string, rate float64) error {
	_, err := parseRate(field, rate)
	return err
}

func parseRate(field string, rate float64) (decimal.Decimal, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return decimal.Zero, &InvalidInputError{Field: field, Reason: "must be a finite number"}
	}
	if rate < 0 || rate > 1 {
		return decimal.Zero, &InvalidInputError{Field: field, Reason: "must be within [0,1]"}
	}
	d := decimal.NewFromFloat(rate)
	if d.Exponent() < -maxAmountExponent {
		return decimal.Zero, &InvalidInputError{Field: field, Reason: "has too many decimal places"}
	}
	return d, nil
}
