package domain

import (
	"math"
	"regexp"

	"github.com/shopspring/decimal"
)

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// Amounts are bounded so that rendering and arithmetic stay cheap. A decimal
// like 1e2000000 parses in constant space but expands to millions of digits.
const (
	maxAmountExponent = 18
	maxAmountDigits   = 30
)

func validateAmount(field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &InvalidInputError{Field: field, Reason: "must be >= 0"}
	}
	if exp := amount.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent {
		return &InvalidInputError{Field: field, Reason: "has too many decimal places or too large an exponent"}
	}
	if amount.NumDigits() > maxAmountDigits {
		return &InvalidInputError{Field: field, Reason: "has too many digits"}
	}
	return nil
}

// Money is a non-negative amount paired with a 3-letter currency code.
// The code is only used for display; amounts are never converted.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney validates and builds a Money value.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if err := validateAmount("basePrice.amount", amount); err != nil {
		return Money{}, err
	}
	if !currencyCodeRe.MatchString(currency) {
		return Money{}, &InvalidInputError{Field: "basePrice.currency", Reason: "must be a 3-letter upper-case code"}
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// NewMoneyFromFloat builds Money from a float, rejecting NaN and infinities.
func NewMoneyFromFloat(amount float64, currency string) (Money, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Money{}, &InvalidInputError{Field: "basePrice.amount", Reason: "must be a finite number"}
	}
	return NewMoney(decimal.NewFromFloat(amount), currency)
}

// Add returns m + other. Both must share a currency; the caller guarantees it.
func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}
}

// Mul returns m scaled by rate without rounding.
func (m Money) Mul(rate decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(rate), Currency: m.Currency}
}

// Zero returns a zero amount in the same currency.
func (m Money) Zero() Money {
	return Money{Amount: decimal.Zero, Currency: m.Currency}
}

// Equal compares amount and currency; 125 and 125.00 are equal.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

// MinorUnits returns the amount shifted by scale decimal places and rounded
// half away from zero. Settlement providers that take integer amounts pick
// the scale for the currency.
func (m Money) MinorUnits(scale int32) int64 {
	return m.Amount.Shift(scale).Round(0).IntPart()
}
