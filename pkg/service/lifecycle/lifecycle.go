// Package lifecycle implements the transaction state machine.
//
// The only permitted transitions are PENDING -> SUCCESS and
// PENDING -> FAILED. Every committed transition appends one audit-trail row
// in the same atomic unit as the status write, then emits a status-changed
// event on the bus. Event handlers are best-effort: their failures are
// logged and swallowed, never propagated to the caller of a transition.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/domain/events"
	"github.com/payvault/payvault/pkg/domain/transaction"
	"github.com/payvault/payvault/pkg/domain/wallet"
	"github.com/payvault/payvault/pkg/dto"
	"github.com/payvault/payvault/pkg/eventbus"
	"github.com/payvault/payvault/pkg/repository"
)

// maxReferenceAttempts bounds reference regeneration on collision. A
// collision means the generator produced a value already in the store; the
// same value is never retried.
const maxReferenceAttempts = 3

// Service drives transaction records through their lifecycle.
type Service struct {
	uow    repository.UnitOfWork
	bus    eventbus.Bus
	logger *slog.Logger
}

// New creates a lifecycle service.
func New(uow repository.UnitOfWork, bus eventbus.Bus, logger *slog.Logger) *Service {
	return &Service{
		uow:    uow,
		bus:    bus,
		logger: logger.With("service", "lifecycle"),
	}
}

// Create persists a new PENDING transaction in its own transaction boundary.
func (s *Service) Create(ctx context.Context, create dto.TransactionCreate) (*dto.TransactionRead, error) {
	var created *dto.TransactionRead
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		var err error
		created, err = s.CreateIn(ctx, uow, create)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateIn persists a new PENDING transaction inside the caller's unit of
// work and appends the initial audit-trail row. A missing ID or reference
// is filled in; a reference collision regenerates and retries, bounded by
// maxReferenceAttempts.
func (s *Service) CreateIn(
	ctx context.Context,
	uow repository.UnitOfWork,
	create dto.TransactionCreate,
) (*dto.TransactionRead, error) {
	if create.ID == uuid.Nil {
		create.ID = uuid.New()
	}
	if create.Status == "" {
		create.Status = transaction.StatusPending
	}
	if create.RefundImpact == "" {
		create.RefundImpact = transaction.RefundImpactNone
	}
	if !create.Amount.IsPositive() {
		return nil, wallet.ErrAmountMustBePositive
	}

	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		if create.Reference == "" {
			create.Reference = transaction.NewReference()
		}
		err := uow.Transactions().Create(ctx, create)
		if err == nil {
			break
		}
		if errors.Is(err, transaction.ErrDuplicateReference) {
			s.logger.Warn("transaction reference collision, regenerating",
				"reference", create.Reference,
			)
			create.Reference = ""
			continue
		}
		return nil, err
	}
	if create.Reference == "" {
		return nil, fmt.Errorf("could not create transaction: %w", transaction.ErrDuplicateReference)
	}

	if err := uow.StatusHistory().Append(ctx, dto.StatusEntryCreate{
		Status:    create.Status,
		Note:      "transaction created",
		Reference: create.Reference,
	}); err != nil {
		return nil, err
	}

	return uow.Transactions().Get(ctx, create.ID)
}

// Transition moves a transaction to newStatus in its own transaction
// boundary and publishes the resulting event after commit.
func (s *Service) Transition(
	ctx context.Context,
	id uuid.UUID,
	newStatus transaction.Status,
	note string,
) error {
	var ev *events.TransactionStatusChanged
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		var err error
		ev, err = s.TransitionIn(ctx, uow, id, newStatus, note)
		return err
	})
	if err != nil {
		return err
	}
	s.Publish(ctx, ev)
	return nil
}

// TransitionIn applies a status transition inside the caller's unit of
// work: it re-reads the current status under the transaction (so two
// racing callers cannot both observe PENDING), rejects transitions out of
// a different terminal state, treats re-application of the same status as
// an idempotent no-op, and otherwise writes the new status plus one
// audit-trail row.
//
// The returned event is nil for no-ops. The caller must publish it only
// after its transaction commits.
func (s *Service) TransitionIn(
	ctx context.Context,
	uow repository.UnitOfWork,
	id uuid.UUID,
	newStatus transaction.Status,
	note string,
) (*events.TransactionStatusChanged, error) {
	if !newStatus.Valid() {
		return nil, transaction.ErrInvalidStatus
	}

	tx, err := uow.Transactions().Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if tx.Status == newStatus {
		return nil, nil
	}
	if tx.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s, cannot move to %s",
			transaction.ErrAlreadyTerminal, tx.Reference, tx.Status, newStatus)
	}

	if err := uow.Transactions().Update(ctx, id, dto.TransactionUpdate{Status: &newStatus}); err != nil {
		return nil, err
	}
	if err := uow.StatusHistory().Append(ctx, dto.StatusEntryCreate{
		Status:    newStatus,
		Note:      note,
		Reference: tx.Reference,
	}); err != nil {
		return nil, err
	}

	return &events.TransactionStatusChanged{
		TransactionID: tx.ID,
		WalletID:      tx.WalletID,
		Reference:     tx.Reference,
		Kind:          tx.Kind,
		Amount:        tx.Amount,
		OldStatus:     tx.Status,
		NewStatus:     newStatus,
		Note:          note,
		OccurredAt:    time.Now(),
	}, nil
}

// CompleteDeposit resolves a PENDING deposit identified by its reference,
// crediting the wallet, attaching the external payment reference and the
// refund-impact classification in one atomic unit.
//
// Webhook delivery is at-least-once, so completion is idempotent: a repeat
// call for an already-successful reference returns nil without touching
// anything. A deposit already FAILED cannot be completed.
func (s *Service) CompleteDeposit(
	ctx context.Context,
	reference string,
	paymentID string,
	impact transaction.RefundImpact,
) error {
	var ev *events.TransactionStatusChanged

	operation := func() error {
		ev = nil
		err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
			tx, err := uow.Transactions().GetByReference(ctx, reference)
			if err != nil {
				return err
			}
			if tx.Kind != transaction.KindDeposit {
				return fmt.Errorf("transaction %s is not a deposit", reference)
			}
			if tx.Status == transaction.StatusSuccess {
				// duplicate webhook delivery
				return nil
			}
			if tx.Status.Terminal() {
				return fmt.Errorf("%w: deposit %s already %s",
					transaction.ErrAlreadyTerminal, reference, tx.Status)
			}

			w, err := uow.Wallets().Get(ctx, tx.WalletID)
			if err != nil {
				return err
			}
			if err := uow.Wallets().UpdateBalance(
				ctx, w.ID, w.Version, w.Balance.Add(tx.Amount),
			); err != nil {
				return err
			}

			success := transaction.StatusSuccess
			if err := uow.Transactions().Update(ctx, tx.ID, dto.TransactionUpdate{
				Status:       &success,
				PaymentID:    &paymentID,
				RefundImpact: &impact,
			}); err != nil {
				return err
			}
			if err := uow.StatusHistory().Append(ctx, dto.StatusEntryCreate{
				Status:    success,
				Note:      "deposit completed, payment " + paymentID,
				Reference: tx.Reference,
			}); err != nil {
				return err
			}

			ev = &events.TransactionStatusChanged{
				TransactionID: tx.ID,
				WalletID:      tx.WalletID,
				Reference:     tx.Reference,
				Kind:          tx.Kind,
				Amount:        tx.Amount,
				OldStatus:     tx.Status,
				NewStatus:     success,
				Note:          "deposit completed",
				OccurredAt:    time.Now(),
			}
			return nil
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
		return err
	}
	s.Publish(ctx, ev)
	return nil
}

// Publish emits events after commit. Emission failures are side-channel
// failures: logged, never returned.
func (s *Service) Publish(ctx context.Context, evs ...*events.TransactionStatusChanged) {
	for _, ev := range evs {
		if ev == nil {
			continue
		}
		if err := s.bus.Emit(ctx, *ev); err != nil {
			s.logger.Error("failed to emit status-changed event",
				"reference", ev.Reference,
				"error", err,
			)
		}
	}
}

// conflictBackoff bounds optimistic-concurrency retries: short exponential
// waits, at most 3 re-attempts.
func conflictBackoff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond
	return backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx)
}
