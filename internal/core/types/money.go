// Package types provides common value types and helpers.
package types

import (
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept for amounts (MRU).
const MoneyScale int32 = 2

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// RoundMoney rounds to MoneyScale digits, half away from zero.
func RoundMoney(m Money) Money {
	return m.Round(MoneyScale)
}

// PercentOf returns round(amount * pct / 100).
func PercentOf(amount, pct Money) Money {
	return RoundMoney(amount.Mul(pct).Div(hundred))
}

// IsPercentage reports whether v lies within [0, 100].
func IsPercentage(v Money) bool {
	return !v.IsNegative() && v.LessThanOrEqual(hundred)
}

// MaxZero returns m, or zero when m is negative.
func MaxZero(m Money) Money {
	if m.IsNegative() {
		return decimal.Zero
	}
	return m
}
