// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places every derived monetary value is rounded to.
const MoneyScale int32 = 2

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Quantity is a document line quantity. Legacy rows store fractional quantities
// (kilograms, meters), so it shares the decimal representation with Money.
type Quantity = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

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

// RoundMoney rounds to cents using round-half-away-from-zero (2.345 -> 2.35, -2.345 -> -2.35).
func RoundMoney(m Money) Money {
	return m.Round(MoneyScale)
}

// PercentOf returns base*pct/100 without rounding.
func PercentOf(base Money, pct decimal.Decimal) Money {
	return base.Mul(pct).Div(hundred)
}

// Hundred returns 100 as a decimal, the upper bound of a discount percentage.
func Hundred() decimal.Decimal {
	return hundred
}
