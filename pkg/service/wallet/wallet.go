// Package wallet provides wallet account management and read paths: the
// webapi-facing operations that do not move money. Money movement lives in
// the transfer engine.
package wallet

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	walletdomain "github.com/payvault/payvault/pkg/domain/wallet"
	"github.com/payvault/payvault/pkg/dto"
	"github.com/payvault/payvault/pkg/repository"
)

// Service manages wallet records and their read models.
type Service struct {
	uow    repository.UnitOfWork
	logger *slog.Logger
}

// NewService creates a wallet service.
func NewService(uow repository.UnitOfWork, logger *slog.Logger) *Service {
	return &Service{uow: uow, logger: logger.With("service", "wallet")}
}

// CreateWallet opens a wallet for userID with a zero balance.
func (s *Service) CreateWallet(ctx context.Context, userID uuid.UUID) (*dto.WalletRead, error) {
	w, err := walletdomain.New().WithUserID(userID).Build()
	if err != nil {
		return nil, err
	}
	var created *dto.WalletRead
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		if err := uow.Wallets().Create(ctx, dto.WalletCreate{
			ID:      w.ID,
			UserID:  w.UserID,
			Balance: w.Balance,
		}); err != nil {
			return err
		}
		var err error
		created, err = uow.Wallets().Get(ctx, w.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("wallet created", "wallet", created.ID, "user", userID)
	return created, nil
}

// Get returns the wallet, owner-checked.
func (s *Service) Get(ctx context.Context, walletID, userID uuid.UUID) (*dto.WalletRead, error) {
	w, err := s.uow.Wallets().Get(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if userID != uuid.Nil && w.UserID != userID {
		return nil, walletdomain.ErrNotOwner
	}
	return w, nil
}

// ListForUser returns all wallets owned by userID.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]dto.WalletRead, error) {
	return s.uow.Wallets().ListByUser(ctx, userID)
}

// Deactivate marks a wallet inactive. Wallets are never deleted.
func (s *Service) Deactivate(ctx context.Context, walletID, userID uuid.UUID) error {
	if _, err := s.Get(ctx, walletID, userID); err != nil {
		return err
	}
	if err := s.uow.Wallets().Deactivate(ctx, walletID); err != nil {
		return err
	}
	s.logger.Info("wallet deactivated", "wallet", walletID)
	return nil
}

// ListTransactions returns the wallet's transactions, owner-checked,
// newest first.
func (s *Service) ListTransactions(
	ctx context.Context,
	walletID, userID uuid.UUID,
	limit, offset int,
) ([]dto.TransactionRead, error) {
	if _, err := s.Get(ctx, walletID, userID); err != nil {
		return nil, err
	}
	return s.uow.Transactions().ListByWallet(ctx, walletID, limit, offset)
}

// AuditTrail returns the append-only status history of a transaction.
func (s *Service) AuditTrail(ctx context.Context, reference string) ([]dto.StatusEntryRead, error) {
	return s.uow.StatusHistory().ListByReference(ctx, reference)
}

// ListFlagged returns flagged transactions for operator review, newest
// first.
func (s *Service) ListFlagged(ctx context.Context, limit, offset int) ([]dto.TransactionRead, error) {
	return s.uow.Transactions().ListFlagged(ctx, limit, offset)
}

// FlagReasons returns the recorded fraud reasons for a transaction.
func (s *Service) FlagReasons(ctx context.Context, reference string) ([]dto.FlagReasonRead, error) {
	return s.uow.FlagReasons().ListByReference(ctx, reference)
}
