// Package repository provides the gorm implementations of the persistence
// ports declared in pkg/repository.
package repository

import (
	"context"

	"github.com/payvault/payvault/pkg/repository"
	"gorm.io/gorm"
)

// UoW provides transaction boundaries and repository access in one
// abstraction. Repositories resolved through a UoW handed to Do are bound
// to that transaction's session, which is what makes multi-record writes
// (both transfer legs, transaction row, audit row) a single atomic unit.
type UoW struct {
	db *gorm.DB
	tx *gorm.DB
}

// NewUoW creates a UoW over the given *gorm.DB.
func NewUoW(db *gorm.DB) *UoW {
	return &UoW{db: db}
}

// Do runs fn inside a gorm transaction. A nested Do reuses the outer
// transaction session rather than opening a savepoint, so services can
// compose in-transaction helpers freely.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if u.tx != nil {
		return fn(u)
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&UoW{db: u.db, tx: tx})
	})
}

func (u *UoW) session() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

// Wallets returns the wallet repository bound to the current session.
func (u *UoW) Wallets() repository.WalletRepository {
	return NewWalletRepository(u.session())
}

// Transactions returns the transaction repository bound to the current session.
func (u *UoW) Transactions() repository.TransactionRepository {
	return NewTransactionRepository(u.session())
}

// StatusHistory returns the audit-trail repository bound to the current session.
func (u *UoW) StatusHistory() repository.StatusHistoryRepository {
	return NewStatusHistoryRepository(u.session())
}

// FlagReasons returns the flag-reason repository bound to the current session.
func (u *UoW) FlagReasons() repository.FlagReasonRepository {
	return NewFlagReasonRepository(u.session())
}

// ScheduledTransfers returns the scheduled-transfer repository bound to the
// current session.
func (u *UoW) ScheduledTransfers() repository.ScheduledTransferRepository {
	return NewScheduledTransferRepository(u.session())
}

var _ repository.UnitOfWork = (*UoW)(nil)
