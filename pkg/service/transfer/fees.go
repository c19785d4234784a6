package transfer

import (
	"github.com/payvault/payvault/pkg/money"
	"github.com/shopspring/decimal"
)

// FeeStrategy computes the fee for an operation amount. Strategies are pure
// functions; the fee is recorded on the transaction but not netted from
// either leg.
type FeeStrategy interface {
	Compute(amount money.Money) money.Money
}

// PercentageWithCap charges amount * Rate, capped at Cap, rounded half-up
// to two decimals.
type PercentageWithCap struct {
	Rate decimal.Decimal
	Cap  money.Money
}

// Compute implements FeeStrategy.
func (p PercentageWithCap) Compute(amount money.Money) money.Money {
	return money.Min(amount.Mul(p.Rate), p.Cap)
}

// NoFee charges nothing. Used for internal movements.
type NoFee struct{}

// Compute implements FeeStrategy.
func (NoFee) Compute(money.Money) money.Money { return money.Zero() }
