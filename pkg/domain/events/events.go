// Package events holds the domain events emitted after committed state
// transitions.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/domain/transaction"
	"github.com/payvault/payvault/pkg/money"
)

const (
	// EventTransactionStatusChanged routes status-transition events.
	EventTransactionStatusChanged = "transaction.status_changed"

	// EventTransactionFlagged routes fraud-flagging events.
	EventTransactionFlagged = "transaction.flagged"
)

// TransactionStatusChanged is emitted after a transaction status transition
// has committed, exactly once per transition, in commit order.
type TransactionStatusChanged struct {
	TransactionID uuid.UUID
	WalletID      uuid.UUID
	Reference     string
	Kind          transaction.Kind
	Amount        money.Money
	OldStatus     transaction.Status
	NewStatus     transaction.Status
	Note          string
	OccurredAt    time.Time
}

// Type implements eventbus.Event.
func (TransactionStatusChanged) Type() string { return EventTransactionStatusChanged }

// TransactionFlagged is emitted after the fraud engine has recorded one or
// more flag reasons for a transaction.
type TransactionFlagged struct {
	TransactionID uuid.UUID
	WalletID      uuid.UUID
	Reference     string
	Reasons       []string
	OccurredAt    time.Time
}

// Type implements eventbus.Event.
func (TransactionFlagged) Type() string { return EventTransactionFlagged }
