// Package core provides the ledger domain types and the pure balance
// arithmetic shared by every other package.
//
// Money is fixed-point (cents in an int64); the same representation is
// used for amounts, balances and balance snapshots so no cross-type
// rounding can drift across long transaction histories.
package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a signed fixed-point monetary value in cents. Transaction
// amounts are validated to be strictly positive; balances and deltas
// use the full signed range.
type Money struct {
	Cents int64
}

var centsFactor = decimal.NewFromInt(100)

// ParseAmount converts a decimal string (e.g. "12.34") into a strictly
// positive Money. Anything past two decimal places is rounded half-up.
func ParseAmount(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return amountFromDecimal(d)
}

// AmountFromFloat converts a JSON number into a strictly positive Money.
func AmountFromFloat(f float64) (Money, error) {
	return amountFromDecimal(decimal.NewFromFloat(f))
}

func amountFromDecimal(d decimal.Decimal) (Money, error) {
	if !d.IsPositive() {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Mul(centsFactor).Round(0)
	if !cents.IsInteger() || cents.IntPart() <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

func (m Money) Neg() Money {
	return Money{Cents: -m.Cents}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

// Decimal returns the value in currency units, e.g. 1234 cents -> 12.34.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON emits the value in currency units as a JSON number, the
// shape API consumers expect for amounts and balances.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().StringFixed(2)), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("parse money %q: %w", data, ErrInvalidAmount)
	}
	cents := d.Mul(centsFactor).Round(0)
	m.Cents = cents.IntPart()
	return nil
}
