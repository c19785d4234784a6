// Package repository defines the persistence ports the core depends on.
// Implementations live in infra/repository; services only ever see these
// interfaces, reached through a UnitOfWork so every multi-write operation
// shares one transaction.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/domain/transaction"
	"github.com/payvault/payvault/pkg/dto"
	"github.com/payvault/payvault/pkg/money"
	"github.com/shopspring/decimal"
)

// WalletRepository persists wallets. Balance writes are version-guarded:
// UpdateBalance must check the expected version and increment it in the
// same atomic update, returning wallet.ErrConcurrentModification when the
// guard fails.
type WalletRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*dto.WalletRead, error)
	Create(ctx context.Context, create dto.WalletCreate) error
	UpdateBalance(ctx context.Context, id uuid.UUID, expectedVersion int64, balance money.Money) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]dto.WalletRead, error)
}

// TransactionRepository persists transaction records. Create maps a unique
// violation on the reference column to transaction.ErrDuplicateReference.
type TransactionRepository interface {
	Create(ctx context.Context, create dto.TransactionCreate) error
	Get(ctx context.Context, id uuid.UUID) (*dto.TransactionRead, error)
	GetByReference(ctx context.Context, reference string) (*dto.TransactionRead, error)
	Update(ctx context.Context, id uuid.UUID, update dto.TransactionUpdate) error
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]dto.TransactionRead, error)
	ListFlagged(ctx context.Context, limit, offset int) ([]dto.TransactionRead, error)

	// History queries backing the fraud rules. All are read-only.
	CountByKindsSince(ctx context.Context, walletID uuid.UUID, kinds []transaction.Kind, since time.Time) (int64, error)
	ListByKindsSince(ctx context.Context, walletID uuid.UUID, kinds []transaction.Kind, since time.Time) ([]dto.TransactionRead, error)
	LastBefore(ctx context.Context, walletID uuid.UUID, before time.Time, excludeID uuid.UUID) (*dto.TransactionRead, error)
	AverageAmount(ctx context.Context, walletID uuid.UUID) (avg decimal.Decimal, count int64, err error)
}

// StatusHistoryRepository appends and reads the audit trail. Entries are
// append-only; there is no update or delete.
type StatusHistoryRepository interface {
	Append(ctx context.Context, entry dto.StatusEntryCreate) error
	ListByReference(ctx context.Context, reference string) ([]dto.StatusEntryRead, error)
}

// FlagReasonRepository persists fraud-flag reasons for compliance review.
type FlagReasonRepository interface {
	Create(ctx context.Context, create dto.FlagReasonCreate) error
	ListByReference(ctx context.Context, reference string) ([]dto.FlagReasonRead, error)
	List(ctx context.Context, limit, offset int) ([]dto.FlagReasonRead, error)
}

// ScheduledTransferRepository persists scheduled transfer definitions.
type ScheduledTransferRepository interface {
	Create(ctx context.Context, create dto.ScheduledTransferCreate) error
	Get(ctx context.Context, id uuid.UUID) (*dto.ScheduledTransferRead, error)
	Update(ctx context.Context, id uuid.UUID, update dto.ScheduledTransferUpdate) error
	ListBySender(ctx context.Context, senderWalletID uuid.UUID, limit, offset int) ([]dto.ScheduledTransferRead, error)

	// ListDue returns pending, unprocessed, first-attempt transfers whose
	// scheduled time is at or before now, oldest first, bounded by limit.
	// Oldest-first ordering is what recovers transfers missed while the
	// process was down.
	ListDue(ctx context.Context, now time.Time, limit int) ([]dto.ScheduledTransferRead, error)

	// ListRetryable returns pending, unprocessed transfers with at least one
	// failed attempt and fewer than maxRetries, oldest first. Backoff
	// eligibility is evaluated by the caller per row.
	ListRetryable(ctx context.Context, maxRetries int, limit int) ([]dto.ScheduledTransferRead, error)

	// Claim atomically flips processed from false to true and sets status
	// EXECUTED, returning false when another scan already claimed the row.
	// The processed flag is the exactly-once source of truth.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)

	// CancelPending sets status CANCELLED only while the row is still
	// pending and unprocessed, returning false when it no longer is. The
	// guard closes the race against a concurrent Claim.
	CancelPending(ctx context.Context, id uuid.UUID) (bool, error)
}

// UnitOfWork provides transaction boundaries and repository access bound to
// the active transaction, so multi-record writes commit or roll back as one
// atomic unit.
//
// Do runs fn inside a transaction; the UnitOfWork handed to fn resolves
// repositories against that transaction's session. If fn returns an error
// the transaction rolls back. Accessors called outside Do resolve against
// the base session, which is fine for single-statement reads.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	Wallets() WalletRepository
	Transactions() TransactionRepository
	StatusHistory() StatusHistoryRepository
	FlagReasons() FlagReasonRepository
	ScheduledTransfers() ScheduledTransferRepository
}
