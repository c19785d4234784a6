package fraud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/domain/transaction"
	"github.com/payvault/payvault/pkg/dto"
	"github.com/shopspring/decimal"
)

// History is the read-only slice of transaction history the rules consult.
// Rules never mutate state; everything here is a query.
type History interface {
	CountByKindsSince(ctx context.Context, walletID uuid.UUID, kinds []transaction.Kind, since time.Time) (int64, error)
	ListByKindsSince(ctx context.Context, walletID uuid.UUID, kinds []transaction.Kind, since time.Time) ([]dto.TransactionRead, error)
	LastBefore(ctx context.Context, walletID uuid.UUID, before time.Time, excludeID uuid.UUID) (*dto.TransactionRead, error)
	AverageAmount(ctx context.Context, walletID uuid.UUID) (avg decimal.Decimal, count int64, err error)
}

// Rule is one independent fraud predicate over a transaction and its
// wallet's history. Evaluate reports whether the rule fires; Explain
// produces the reason recorded for compliance review.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, tx dto.TransactionRead) (bool, error)
	Explain(tx dto.TransactionRead) string
}

// NewWalletPolicy decides whether a wallet counts as "new" given its total
// transaction count. New wallets are exempt from the unusual-amount rule.
type NewWalletPolicy func(transactionCount int64) bool

// DefaultNewWalletPolicy treats wallets with fewer than 3 transactions as new.
func DefaultNewWalletPolicy(transactionCount int64) bool {
	return transactionCount < 3
}

// trailingWindow is the look-back window shared by the velocity rules,
// anchored at the evaluated transaction's timestamp.
const trailingWindow = 24 * time.Hour

// DormantReactivation fires when a long-dormant wallet suddenly sees a
// burst of deposits: the wallet's previous transaction is more than
// DormancyMonths ago AND more than DepositThreshold deposits landed in the
// trailing 24 hours.
type DormantReactivation struct {
	History          History
	DormancyMonths   int
	DepositThreshold int64
}

// NewDormantReactivation builds the rule with the policy thresholds:
// 6 months dormancy, 5 deposits.
func NewDormantReactivation(history History) *DormantReactivation {
	return &DormantReactivation{
		History:          history,
		DormancyMonths:   6,
		DepositThreshold: 5,
	}
}

// Name implements Rule.
func (r *DormantReactivation) Name() string { return "dormant_account_reactivation" }

// Evaluate implements Rule.
func (r *DormantReactivation) Evaluate(ctx context.Context, tx dto.TransactionRead) (bool, error) {
	last, err := r.History.LastBefore(ctx, tx.WalletID, tx.CreatedAt, tx.ID)
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound) {
			// no prior activity means nothing to reactivate
			return false, nil
		}
		return false, err
	}
	cutoff := tx.CreatedAt.AddDate(0, -r.DormancyMonths, 0)
	if !last.CreatedAt.Before(cutoff) {
		return false, nil
	}
	deposits, err := r.History.CountByKindsSince(
		ctx, tx.WalletID,
		[]transaction.Kind{transaction.KindDeposit},
		tx.CreatedAt.Add(-trailingWindow),
	)
	if err != nil {
		return false, err
	}
	return deposits > r.DepositThreshold, nil
}

// Explain implements Rule.
func (r *DormantReactivation) Explain(tx dto.TransactionRead) string {
	return fmt.Sprintf(
		"wallet dormant for over %d months received more than %d deposits within 24 hours",
		r.DormancyMonths, r.DepositThreshold,
	)
}

// FrequentTransfers fires when more than Threshold TRANSFER operations
// occurred on the wallet in the trailing 24 hours.
type FrequentTransfers struct {
	History   History
	Threshold int64
}

// NewFrequentTransfers builds the rule with the policy threshold of 10.
func NewFrequentTransfers(history History) *FrequentTransfers {
	return &FrequentTransfers{History: history, Threshold: 10}
}

// Name implements Rule.
func (r *FrequentTransfers) Name() string { return "frequent_transfers" }

// Evaluate implements Rule.
func (r *FrequentTransfers) Evaluate(ctx context.Context, tx dto.TransactionRead) (bool, error) {
	count, err := r.History.CountByKindsSince(
		ctx, tx.WalletID,
		[]transaction.Kind{transaction.KindTransfer},
		tx.CreatedAt.Add(-trailingWindow),
	)
	if err != nil {
		return false, err
	}
	return count > r.Threshold, nil
}

// Explain implements Rule.
func (r *FrequentTransfers) Explain(tx dto.TransactionRead) string {
	return fmt.Sprintf("more than %d transfers within 24 hours", r.Threshold)
}

// RapidFlow fires when deposits and withdrawals combined exceed
// CountThreshold in the trailing 24 hours AND every one of those
// transactions moves more than AmountFloor units.
type RapidFlow struct {
	History        History
	CountThreshold int
	AmountFloor    decimal.Decimal
}

// NewRapidFlow builds the rule with the policy thresholds: count 5, amount
// floor 5000 units.
func NewRapidFlow(history History) *RapidFlow {
	return &RapidFlow{
		History:        history,
		CountThreshold: 5,
		AmountFloor:    decimal.NewFromInt(5000),
	}
}

// Name implements Rule.
func (r *RapidFlow) Name() string { return "rapid_deposit_withdrawal" }

// Evaluate implements Rule.
func (r *RapidFlow) Evaluate(ctx context.Context, tx dto.TransactionRead) (bool, error) {
	txs, err := r.History.ListByKindsSince(
		ctx, tx.WalletID,
		[]transaction.Kind{transaction.KindDeposit, transaction.KindWithdrawal},
		tx.CreatedAt.Add(-trailingWindow),
	)
	if err != nil {
		return false, err
	}
	if len(txs) <= r.CountThreshold {
		return false, nil
	}
	for _, t := range txs {
		if !t.Amount.Decimal().GreaterThan(r.AmountFloor) {
			return false, nil
		}
	}
	return true, nil
}

// Explain implements Rule.
func (r *RapidFlow) Explain(tx dto.TransactionRead) string {
	return fmt.Sprintf(
		"more than %d large deposits/withdrawals (each above %s) within 24 hours",
		r.CountThreshold, r.AmountFloor,
	)
}

// UnusualAmount fires when a transaction deviates from the wallet's
// historical average by more than DeviationFactor times that average.
// Skipped entirely for new wallets (per NewWallet policy) and inapplicable
// when the wallet has no usable history, so brand-new wallets never
// produce false positives.
type UnusualAmount struct {
	History         History
	DeviationFactor decimal.Decimal
	NewWallet       NewWalletPolicy
}

// NewUnusualAmount builds the rule with the policy deviation factor of 0.5.
func NewUnusualAmount(history History, policy NewWalletPolicy) *UnusualAmount {
	if policy == nil {
		policy = DefaultNewWalletPolicy
	}
	return &UnusualAmount{
		History:         history,
		DeviationFactor: decimal.RequireFromString("0.5"),
		NewWallet:       policy,
	}
}

// Name implements Rule.
func (r *UnusualAmount) Name() string { return "unusual_amount" }

// Evaluate implements Rule.
func (r *UnusualAmount) Evaluate(ctx context.Context, tx dto.TransactionRead) (bool, error) {
	avg, count, err := r.History.AverageAmount(ctx, tx.WalletID)
	if err != nil {
		return false, err
	}
	if count == 0 || avg.IsZero() {
		return false, nil
	}
	if r.NewWallet(count) {
		return false, nil
	}
	deviation := tx.Amount.Decimal().Sub(avg).Abs()
	return deviation.GreaterThan(avg.Mul(r.DeviationFactor)), nil
}

// Explain implements Rule.
func (r *UnusualAmount) Explain(tx dto.TransactionRead) string {
	return fmt.Sprintf(
		"amount %s deviates from the wallet's historical average by more than %s of it",
		tx.Amount, r.DeviationFactor,
	)
}

// DefaultRules returns the full rule set in its startup order. Order does
// not affect outcomes; rules are independent.
func DefaultRules(history History, policy NewWalletPolicy) []Rule {
	return []Rule{
		NewDormantReactivation(history),
		NewFrequentTransfers(history),
		NewRapidFlow(history),
		NewUnusualAmount(history, policy),
	}
}
