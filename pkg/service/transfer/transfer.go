// Package transfer implements the wallet transfer engine: the single code
// path through which balances change.
//
// Every operation is all-or-nothing: both legs of a transfer, the
// transaction record and its audit rows commit in one unit of work. Wallet
// writes are version-guarded; a lost race surfaces as
// wallet.ErrConcurrentModification and the engine restarts the whole
// attempt (reads included) a bounded number of times before giving up.
package transfer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/domain/events"
	"github.com/payvault/payvault/pkg/domain/transaction"
	"github.com/payvault/payvault/pkg/domain/wallet"
	"github.com/payvault/payvault/pkg/dto"
	"github.com/payvault/payvault/pkg/money"
	"github.com/payvault/payvault/pkg/repository"
	"github.com/payvault/payvault/pkg/service/lifecycle"
)

// Command describes a wallet-to-wallet transfer request. UserID is the
// caller's identity for ownership checks; uuid.Nil marks an internal caller
// (the scheduled transfer processor) that acts without one.
type Command struct {
	UserID           uuid.UUID
	SenderWalletID   uuid.UUID
	ReceiverWalletID uuid.UUID
	Amount           money.Money
	Note             string
}

// DepositCommand describes a deposit initiation. The resulting transaction
// stays PENDING until the payment gateway confirms via webhook.
type DepositCommand struct {
	UserID   uuid.UUID
	WalletID uuid.UUID
	Amount   money.Money
}

// WithdrawCommand describes a withdrawal request.
type WithdrawCommand struct {
	UserID   uuid.UUID
	WalletID uuid.UUID
	Amount   money.Money
}

// Engine applies debit/credit pairs atomically against the ledger store.
type Engine struct {
	uow       repository.UnitOfWork
	lifecycle *lifecycle.Service
	fees      FeeStrategy
	logger    *slog.Logger
}

// NewEngine creates a transfer engine.
func NewEngine(
	uow repository.UnitOfWork,
	lc *lifecycle.Service,
	fees FeeStrategy,
	logger *slog.Logger,
) *Engine {
	if fees == nil {
		fees = NoFee{}
	}
	return &Engine{
		uow:       uow,
		lifecycle: lc,
		fees:      fees,
		logger:    logger.With("service", "transfer"),
	}
}

// Transfer atomically moves cmd.Amount from the sender wallet to the
// receiver wallet and records one SUCCESS transaction. On a version
// conflict the whole attempt is retried with short exponential backoff,
// then surfaced as wallet.ErrConcurrentModification.
func (e *Engine) Transfer(ctx context.Context, cmd Command) (*dto.TransactionRead, error) {
	if !cmd.Amount.IsPositive() {
		return nil, wallet.ErrAmountMustBePositive
	}
	if cmd.SenderWalletID == cmd.ReceiverWalletID {
		return nil, wallet.ErrSameWalletTransfer
	}

	var (
		created *dto.TransactionRead
		evs     []*events.TransactionStatusChanged
	)
	operation := func() error {
		created, evs = nil, nil
		err := e.uow.Do(ctx, func(uow repository.UnitOfWork) error {
			var err error
			created, evs, err = e.TransferIn(ctx, uow, cmd)
			return err
		})
		if err != nil {
			if errors.Is(err, wallet.ErrConcurrentModification) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}
	if err := backoff.Retry(operation, conflictBackoff(ctx)); err != nil {
		return nil, err
	}

	e.lifecycle.Publish(ctx, evs...)
	e.logger.Info("transfer completed",
		"reference", created.Reference,
		"sender", cmd.SenderWalletID,
		"receiver", cmd.ReceiverWalletID,
		"amount", cmd.Amount,
	)
	return created, nil
}

// TransferIn runs both legs and the record writes inside the caller's unit
// of work. The scheduled transfer processor uses this to bind a transfer to
// the same atomic unit as its processed-flag claim. Returned events must be
// published by the caller only after its transaction commits.
func (e *Engine) TransferIn(
	ctx context.Context,
	uow repository.UnitOfWork,
	cmd Command,
) (*dto.TransactionRead, []*events.TransactionStatusChanged, error) {
	sender, receiver, err := e.loadPair(ctx, uow, cmd.SenderWalletID, cmd.ReceiverWalletID)
	if err != nil {
		return nil, nil, err
	}
	if err := sender.ValidateOwner(cmd.UserID); err != nil {
		return nil, nil, err
	}
	if err := sender.ValidateTransfer(receiver, cmd.Amount); err != nil {
		return nil, nil, err
	}

	// Apply legs in canonical (lexicographic wallet id) order so two
	// concurrent transfers over the same pair in opposite directions cannot
	// deadlock on a row-locking backend. Conservation holds by construction:
	// one leg subtracts exactly what the other adds.
	debit := func() error {
		return uow.Wallets().UpdateBalance(ctx, sender.ID, sender.Version, sender.Balance.Sub(cmd.Amount))
	}
	credit := func() error {
		return uow.Wallets().UpdateBalance(ctx, receiver.ID, receiver.Version, receiver.Balance.Add(cmd.Amount))
	}
	first, second := debit, credit
	if receiver.ID.String() < sender.ID.String() {
		first, second = credit, debit
	}
	if err := first(); err != nil {
		return nil, nil, err
	}
	if err := second(); err != nil {
		return nil, nil, err
	}

	counterpart := cmd.ReceiverWalletID
	created, err := e.lifecycle.CreateIn(ctx, uow, dto.TransactionCreate{
		WalletID:            cmd.SenderWalletID,
		CounterpartWalletID: &counterpart,
		Kind:                transaction.KindTransfer,
		Amount:              cmd.Amount,
		Fee:                 e.fees.Compute(cmd.Amount),
	})
	if err != nil {
		return nil, nil, err
	}

	note := cmd.Note
	if note == "" {
		note = "transfer completed"
	}
	ev, err := e.lifecycle.TransitionIn(ctx, uow, created.ID, transaction.StatusSuccess, note)
	if err != nil {
		return nil, nil, err
	}
	created, err = uow.Transactions().Get(ctx, created.ID)
	if err != nil {
		return nil, nil, err
	}
	return created, []*events.TransactionStatusChanged{ev}, nil
}

// Deposit creates a PENDING deposit transaction. No balance changes until
// the payment gateway confirms and lifecycle.CompleteDeposit credits the
// wallet.
func (e *Engine) Deposit(ctx context.Context, cmd DepositCommand) (*dto.TransactionRead, error) {
	if !cmd.Amount.IsPositive() {
		return nil, wallet.ErrAmountMustBePositive
	}

	var created *dto.TransactionRead
	err := e.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		w, err := uow.Wallets().Get(ctx, cmd.WalletID)
		if err != nil {
			return err
		}
		dw, err := toDomain(w)
		if err != nil {
			return err
		}
		if err := dw.ValidateOwner(cmd.UserID); err != nil {
			return err
		}
		if err := dw.ValidateDeposit(cmd.Amount); err != nil {
			return err
		}
		created, err = e.lifecycle.CreateIn(ctx, uow, dto.TransactionCreate{
			WalletID:     cmd.WalletID,
			Kind:         transaction.KindDeposit,
			Amount:       cmd.Amount,
			Fee:          e.fees.Compute(cmd.Amount),
			RefundImpact: transaction.RefundImpactRefundable,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("deposit initiated", "reference", created.Reference, "wallet", cmd.WalletID)
	return created, nil
}

// Withdraw atomically debits the wallet and records one SUCCESS withdrawal
// transaction.
func (e *Engine) Withdraw(ctx context.Context, cmd WithdrawCommand) (*dto.TransactionRead, error) {
	if !cmd.Amount.IsPositive() {
		return nil, wallet.ErrAmountMustBePositive
	}

	var (
		created *dto.TransactionRead
		evs     []*events.TransactionStatusChanged
	)
	operation := func() error {
		created, evs = nil, nil
		err := e.uow.Do(ctx, func(uow repository.UnitOfWork) error {
			w, err := uow.Wallets().Get(ctx, cmd.WalletID)
			if err != nil {
				return err
			}
			dw, err := toDomain(w)
			if err != nil {
				return err
			}
			if err := dw.ValidateOwner(cmd.UserID); err != nil {
				return err
			}
			if err := dw.ValidateWithdraw(cmd.Amount); err != nil {
				return err
			}
			if err := uow.Wallets().UpdateBalance(
				ctx, w.ID, w.Version, w.Balance.Sub(cmd.Amount),
			); err != nil {
				return err
			}
			created, err = e.lifecycle.CreateIn(ctx, uow, dto.TransactionCreate{
				WalletID:     cmd.WalletID,
				Kind:         transaction.KindWithdrawal,
				Amount:       cmd.Amount,
				Fee:          e.fees.Compute(cmd.Amount),
				RefundImpact: transaction.RefundImpactNonRefundable,
			})
			if err != nil {
				return err
			}
			ev, err := e.lifecycle.TransitionIn(ctx, uow, created.ID, transaction.StatusSuccess, "withdrawal completed")
			if err != nil {
				return err
			}
			evs = append(evs, ev)
			created, err = uow.Transactions().Get(ctx, created.ID)
			return err
		})
		if err != nil {
			if errors.Is(err, wallet.ErrConcurrentModification) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}
	if err := backoff.Retry(operation, conflictBackoff(ctx)); err != nil {
		return nil, err
	}

	e.lifecycle.Publish(ctx, evs...)
	return created, nil
}

// TransactionByReference looks up a transaction by its reference number.
func (e *Engine) TransactionByReference(ctx context.Context, reference string) (*dto.TransactionRead, error) {
	return e.uow.Transactions().GetByReference(ctx, reference)
}

// loadPair loads both wallets in canonical id order and maps them to domain
// values.
func (e *Engine) loadPair(
	ctx context.Context,
	uow repository.UnitOfWork,
	senderID, receiverID uuid.UUID,
) (sender, receiver *wallet.Wallet, err error) {
	firstID, secondID := senderID, receiverID
	if secondID.String() < firstID.String() {
		firstID, secondID = secondID, firstID
	}
	first, err := uow.Wallets().Get(ctx, firstID)
	if err != nil {
		return nil, nil, err
	}
	second, err := uow.Wallets().Get(ctx, secondID)
	if err != nil {
		return nil, nil, err
	}

	reads := map[uuid.UUID]*dto.WalletRead{first.ID: first, second.ID: second}
	if sender, err = toDomain(reads[senderID]); err != nil {
		return nil, nil, err
	}
	if receiver, err = toDomain(reads[receiverID]); err != nil {
		return nil, nil, err
	}
	return sender, receiver, nil
}

func toDomain(r *dto.WalletRead) (*wallet.Wallet, error) {
	return wallet.New().
		WithID(r.ID).
		WithUserID(r.UserID).
		WithBalance(r.Balance).
		WithActive(r.Active).
		WithVersion(r.Version).
		WithCreatedAt(r.CreatedAt).
		WithUpdatedAt(r.UpdatedAt).
		Build()
}

// conflictBackoff bounds optimistic-concurrency retries: short exponential
// waits, at most 3 re-attempts of the whole operation.
func conflictBackoff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond
	return backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx)
}
