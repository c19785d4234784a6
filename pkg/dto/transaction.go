package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/domain/transaction"
	"github.com/payvault/payvault/pkg/money"
)

// TransactionRead is the read model for a transaction.
type TransactionRead struct {
	ID                  uuid.UUID
	WalletID            uuid.UUID
	CounterpartWalletID *uuid.UUID
	Kind                transaction.Kind
	Amount              money.Money
	Fee                 money.Money
	Status              transaction.Status
	Reference           string
	Flagged             bool
	RefundImpact        transaction.RefundImpact
	PaymentID           string
	CreatedAt           time.Time
}

// TransactionCreate creates a new transaction record.
type TransactionCreate struct {
	ID                  uuid.UUID
	WalletID            uuid.UUID
	CounterpartWalletID *uuid.UUID
	Kind                transaction.Kind
	Amount              money.Money
	Fee                 money.Money
	Status              transaction.Status
	Reference           string
	RefundImpact        transaction.RefundImpact
}

// TransactionUpdate applies a partial update; nil fields are untouched.
// Amount, kind and reference are immutable and deliberately absent.
type TransactionUpdate struct {
	Status       *transaction.Status
	Flagged      *bool
	PaymentID    *string
	RefundImpact *transaction.RefundImpact
}

// StatusEntryCreate appends one audit-trail row.
type StatusEntryCreate struct {
	Status    transaction.Status
	Note      string
	Reference string
}

// StatusEntryRead is the read model for an audit-trail row.
type StatusEntryRead struct {
	Status    transaction.Status
	Note      string
	Reference string
	CreatedAt time.Time
}

// FlagReasonCreate records one fraud-flag reason.
type FlagReasonCreate struct {
	Reason    string
	Reference string
}

// FlagReasonRead is the read model for a fraud-flag reason.
type FlagReasonRead struct {
	Reason    string
	Reference string
	CreatedAt time.Time
}
