// Package core holds the domain model shared by the API, the store and the
// import pipeline: entities, validation rules and money handling.
package core

import (
	"github.com/shopspring/decimal"
)

var centsPerUnit = decimal.NewFromInt(100)

// ParsePrice converts a decimal string to Money with exact arithmetic.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up on the third decimal place. Negative amounts are rejected here;
// whether zero is acceptable depends on the caller (imports default absent
// prices to zero, the API requires a positive price).
func ParsePrice(s string) (Money, error) {
	d, err := decimal.NewFromString(normalizeDecimal(s))
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Mul(centsPerUnit).Round(0)
	if cents.IntPart() > MaxPriceCents {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// MoneyFromFloat converts an amount expressed in currency units (as it appears
// in JSON payloads) to cents, rounding half-up on fractions of a cent.
func MoneyFromFloat(v float64) (Money, error) {
	d := decimal.NewFromFloat(v)
	if d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Mul(centsPerUnit).Round(0)
	if cents.IntPart() > MaxPriceCents {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Amount returns the value in currency units for JSON responses.
// Calculations stay in cents; this is a presentation conversion only.
func (m Money) Amount() float64 {
	f, _ := decimal.NewFromInt(m.Cents).Div(centsPerUnit).Float64()
	return f
}

// String formats the amount with two decimal places.
func (m Money) String() string {
	return decimal.NewFromInt(m.Cents).Div(centsPerUnit).StringFixed(2)
}

func normalizeDecimal(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case ' ', '\t':
			continue
		case ',':
			out = append(out, '.')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
