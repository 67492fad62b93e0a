package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MicrosPerUnit is the number of stored micros in one internal currency unit.
const MicrosPerUnit = 1_000_000

var (
	microsFactor = decimal.NewFromInt(MicrosPerUnit)
	maxMicros    = decimal.NewFromInt(math.MaxInt64)
	minMicros    = decimal.NewFromInt(math.MinInt64)
)

// Money is an amount of the internal currency.
// Amount is stored as BIGINT micros (10^-6) to avoid floating point errors.
type Money struct {
	Amount int64 // micros
}

// NewMoney creates a new Money instance from micros.
func NewMoney(amount int64) Money {
	return Money{Amount: amount}
}

// ToDecimal converts the int64 micros to a shopspring/decimal.Decimal.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount).Div(microsFactor)
}

// FromDecimal converts a decimal.Decimal to int64 micros, truncating extra precision.
// The result wraps outside the int64 range; user input goes through ParseAmount.
func FromDecimal(d decimal.Decimal) int64 {
	return d.Mul(microsFactor).IntPart()
}

// ParseAmount parses a user supplied decimal string ("12.5", "0,3") into micros.
func ParseAmount(raw string) (int64, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if raw == "" {
		return 0, NewValidationError("amount", "amount is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, NewValidationError("amount", fmt.Sprintf("%q is not a decimal number", raw))
	}
	if d.Exponent() < -6 {
		return 0, NewValidationError("amount", "amount supports at most 6 decimal places")
	}
	if micros := d.Mul(microsFactor); micros.GreaterThan(maxMicros) || micros.LessThan(minMicros) {
		return 0, NewValidationError("amount", "amount is too large")
	}
	return FromDecimal(d), nil
}

// String returns the amount with two decimal places.
func (m Money) String() string {
	return m.ToDecimal().StringFixed(2)
}

// FormatMicros renders micros as a plain decimal string without trailing zeros.
func FormatMicros(amount int64) string {
	return NewMoney(amount).ToDecimal().String()
}
