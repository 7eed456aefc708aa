/*
Package finance provides the core types for the ledger and payroll engine.

PURPOSE:
  This package contains the domain vocabulary shared by every other
  package: the Money value type, typed identifiers, the five record
  types (Transaction, Salary, SalaryItem, Invoice, InvoiceItem), the
  error taxonomy, document number generation, and the store interfaces.

KEY CONCEPTS IN THIS FILE (money.go):
  - Money: A fixed-precision currency amount backed by decimal.Decimal

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal avoids floating-point drift in totals
  2. Single currency: the platform bills in one currency; no unit field
  3. Signed amounts: refunds and deductions are modeled with sign at the
     ledger level, Money itself is just a number

USAGE:
  price := finance.NewMoney(150)
  total := price.Mul(3)          // 450
  total.Equal(finance.NewMoney(450)) // true

SEE ALSO:
  - types.go: Records that carry Money fields
  - errors.go: Error taxonomy
*/
package finance

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-precision currency amount
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func NewMoneyFromInt(value int64) Money {
	return Money{Value: decimal.NewFromInt(value)}
}

// ParseMoney parses a decimal string. Returns an error for malformed input.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{Value: d}, nil
}

// MustParseMoney parses a decimal string, returning zero on failure.
// Intended for constants and store round-trips of values we wrote ourselves.
func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}
	}
	return Money{Value: d}
}

func Zero() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(o Money) Money          { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money          { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Neg() Money                 { return Money{Value: m.Value.Neg()} }
func (m Money) Mul(n int64) Money          { return Money{Value: m.Value.Mul(decimal.NewFromInt(n))} }
func (m Money) IsZero() bool               { return m.Value.IsZero() }
func (m Money) IsNegative() bool           { return m.Value.IsNegative() }
func (m Money) IsPositive() bool           { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool         { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool   { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool      { return m.Value.LessThan(o.Value) }

// String returns the canonical decimal representation (used for storage).
func (m Money) String() string { return m.Value.String() }

func (m Money) Float64() float64 {
	f, _ := m.Value.Float64()
	return f
}

// MarshalJSON emits the amount as a JSON number, matching the wire format
// the admin UI expects ({"amount": 500} rather than {"amount": "500"}).
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Value.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	m.Value = d
	return nil
}
