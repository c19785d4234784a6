// Package transaction defines the transaction record, its lifecycle states
// and the append-only audit and compliance entries attached to it.
package transaction

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/money"
)

var (
	// ErrTransactionNotFound is returned when a transaction cannot be found.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrDuplicateReference is returned when persisting a transaction with a
	// reference that already exists. Callers regenerate the reference and
	// retry; the same value is never retried.
	ErrDuplicateReference = errors.New("duplicate transaction reference")

	// ErrAlreadyTerminal is returned when a transition targets a transaction
	// already resolved to a different terminal status.
	ErrAlreadyTerminal = errors.New("transaction already in terminal status")

	// ErrInvalidStatus is returned for a status outside the known set.
	ErrInvalidStatus = errors.New("invalid transaction status")
)

// Kind is the operation kind of a transaction.
type Kind string

const (
	KindDeposit    Kind = "DEPOSIT"
	KindWithdrawal Kind = "WITHDRAWAL"
	KindTransfer   Kind = "TRANSFER"
)

// Status is the lifecycle status of a transaction.
// The only permitted transitions are PENDING -> SUCCESS and PENDING -> FAILED.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Terminal reports whether s is an end state.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// RefundImpact classifies how a transaction affects refundable-balance
// accounting.
type RefundImpact string

const (
	RefundImpactNone          RefundImpact = "NONE"
	RefundImpactRefundable    RefundImpact = "REFUNDABLE"
	RefundImpactNonRefundable RefundImpact = "NON_REFUNDABLE"
)

// Transaction is an immutable (once terminal) record of a single money
// movement. CounterpartWalletID is nil for deposits and withdrawals.
// Reference is assigned once and never changes.
type Transaction struct {
	ID                  uuid.UUID
	WalletID            uuid.UUID
	CounterpartWalletID *uuid.UUID
	Kind                Kind
	Amount              money.Money
	Fee                 money.Money
	Status              Status
	Reference           string
	Flagged             bool
	RefundImpact        RefundImpact
	PaymentID           string
	CreatedAt           time.Time
}

// StatusEntry is one append-only row of the audit trail: a status the
// transaction passed through, with a note and timestamp. Entries are never
// mutated or deleted and are kept independent of the current-status field.
type StatusEntry struct {
	Status    Status
	Note      string
	Reference string
	CreatedAt time.Time
}

// FlagReason records why the fraud engine flagged a transaction. Retained
// for compliance review, never mutated.
type FlagReason struct {
	Reason    string
	Reference string
	CreatedAt time.Time
}

// NewReference generates a globally unique transaction reference. The time
// prefix keeps references roughly sortable for operators; the UUID suffix
// carries the uniqueness.
func NewReference() string {
	ts := time.Now().UTC().Format("20060102150405")
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("TXN-%s-%s", ts, suffix[:12])
}
