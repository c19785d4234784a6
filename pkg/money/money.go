// Package money provides the monetary value object used across the core.
//
// It is a thin wrapper around a fixed-point decimal. The system is
// denominated in a single unit of account, so there is no currency
// dimension; what the type buys us is:
//   - no float arithmetic anywhere near a balance,
//   - construction-time validation (no NaN-equivalents, no silent negatives
//     where a non-negative value is required),
//   - half-up rounding to two decimal places as the single rounding rule.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned when an amount string cannot be parsed.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNegativeAmount is returned when a negative value is supplied where
	// only a non-negative one is allowed (balances, fees).
	ErrNegativeAmount = errors.New("amount must not be negative")
)

// Scale is the number of decimal places carried by every stored amount.
const Scale = 2

// Money is a fixed-point monetary value in the system's unit of account.
// The zero value is usable and equals Zero().
type Money struct {
	amount decimal.Decimal
}

// Zero returns a zero amount.
func Zero() Money {
	return Money{amount: decimal.Zero}
}

// New builds a Money from a decimal, rounding half-up to two places.
func New(d decimal.Decimal) Money {
	return Money{amount: d.Round(Scale)}
}

// NewFromString parses a decimal string ("10.50") into a Money.
func NewFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return New(d), nil
}

// NewNonNegative is New with a ErrNegativeAmount guard, for balances.
func NewNonNegative(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	return New(d), nil
}

// Decimal returns the underlying decimal value.
func (m Money) Decimal() decimal.Decimal {
	return m.amount
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// Sub returns m - other. The result may be negative; callers enforcing a
// non-negative invariant must check before applying.
func (m Money) Sub(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// Mul multiplies by a bare decimal factor (fee rates), rounding half-up.
func (m Money) Mul(factor decimal.Decimal) Money {
	return New(m.amount.Mul(factor))
}

// IsPositive reports whether m > 0.
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// IsZero reports whether m == 0.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// Equals reports whether two amounts are numerically equal.
func (m Money) Equals(other Money) bool {
	return m.amount.Equal(other.amount)
}

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) bool {
	return m.amount.LessThan(other.amount)
}

// GreaterThan reports whether m > other.
func (m Money) GreaterThan(other Money) bool {
	return m.amount.GreaterThan(other.amount)
}

// Min returns the smaller of the two amounts.
func Min(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Abs returns the absolute value.
func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs()}
}

// String renders the amount with its full stored precision.
func (m Money) String() string {
	return m.amount.StringFixed(Scale)
}

// MarshalJSON encodes the amount as a JSON string to avoid float precision
// loss on the wire.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both quoted and bare decimal representations.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, data)
	}
	*m = New(d)
	return nil
}

// Value implements driver.Valuer so Money can be persisted directly.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(value any) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return err
	}
	*m = New(d)
	return nil
}
