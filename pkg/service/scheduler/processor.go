// Package scheduler implements the scheduled transfer processor: a polling
// worker that executes due one-time and recurring transfers exactly once,
// retries recoverable failures under a bounded backoff policy and recovers
// cleanly from downtime.
//
// The exactly-once guarantee rests on the processed flag: a guarded update
// flips it false to true inside the same database transaction as the money
// movement, so a transfer either fully executed and is claimed, or left
// untouched for the next tick. Nothing depends on in-memory queues that a
// restart could repopulate.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/config"
	"github.com/payvault/payvault/pkg/domain/events"
	"github.com/payvault/payvault/pkg/domain/schedule"
	"github.com/payvault/payvault/pkg/domain/wallet"
	"github.com/payvault/payvault/pkg/dto"
	"github.com/payvault/payvault/pkg/money"
	"github.com/payvault/payvault/pkg/repository"
	"github.com/payvault/payvault/pkg/service/lifecycle"
	"github.com/payvault/payvault/pkg/service/transfer"
)

// CreateCommand describes a user request to defer a transfer.
type CreateCommand struct {
	UserID           uuid.UUID
	SenderWalletID   uuid.UUID
	ReceiverWalletID uuid.UUID
	Amount           money.Money
	Recurrence       schedule.Recurrence
	ScheduledAt      time.Time
}

// Processor polls for due scheduled transfers and executes them through the
// transfer engine.
type Processor struct {
	uow       repository.UnitOfWork
	engine    *transfer.Engine
	lifecycle *lifecycle.Service
	cfg       config.Scheduler
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a processor. The clock is injectable for tests via WithClock.
func New(
	uow repository.UnitOfWork,
	engine *transfer.Engine,
	lc *lifecycle.Service,
	cfg config.Scheduler,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		uow:       uow,
		engine:    engine,
		lifecycle: lc,
		cfg:       cfg,
		logger:    logger.With("service", "scheduler"),
		now:       time.Now,
	}
}

// WithClock replaces the processor's clock. For tests.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// Run polls until ctx is cancelled. Each transfer's execution is its own
// atomic unit, so interruption mid-batch never leaves a half-applied
// transfer; the next tick simply resumes.
func (p *Processor) Run(ctx context.Context) {
	p.logger.Info("scheduled transfer processor started",
		"interval", p.cfg.Interval,
		"max_retries", p.cfg.MaxRetries,
	)
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("scheduled transfer processor stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one full pass: the due-unprocessed scan (which, being ordered
// oldest first, doubles as the overdue catch-up after downtime) followed by
// the retry scan.
func (p *Processor) Tick(ctx context.Context) {
	p.runDue(ctx)
	p.runRetries(ctx)
}

func (p *Processor) runDue(ctx context.Context) {
	due, err := p.uow.ScheduledTransfers().ListDue(ctx, p.now(), p.cfg.PageSize)
	if err != nil {
		p.logger.Error("due scan failed", "error", err)
		return
	}
	for _, st := range due {
		if ctx.Err() != nil {
			return
		}
		if err := p.executeOne(ctx, st); err != nil {
			p.recordFailure(ctx, st, err)
		}
	}
}

func (p *Processor) runRetries(ctx context.Context) {
	candidates, err := p.uow.ScheduledTransfers().ListRetryable(ctx, p.cfg.MaxRetries, p.cfg.PageSize)
	if err != nil {
		p.logger.Error("retry scan failed", "error", err)
		return
	}
	now := p.now()
	for _, st := range candidates {
		if ctx.Err() != nil {
			return
		}
		eligible := schedule.Transfer{RetryCount: st.RetryCount, LastRetryAt: st.LastRetryAt}
		if !eligible.RetryEligible(now, p.cfg.RetryBackoffBase) {
			continue
		}
		if err := p.executeOne(ctx, st); err != nil {
			p.recordFailure(ctx, st, err)
		}
	}
}

// executeOne claims the definition and runs the transfer in one atomic
// unit. A failed claim means another scan already processed the row and is
// not an error. On recurring definitions the next occurrence is inserted
// in the same transaction, so a crash can never execute without spawning.
func (p *Processor) executeOne(ctx context.Context, st dto.ScheduledTransferRead) error {
	var (
		evs     []*events.TransactionStatusChanged
		skipped bool
	)
	operation := func() error {
		evs, skipped = nil, false
		err := p.uow.Do(ctx, func(uow repository.UnitOfWork) error {
			claimed, err := uow.ScheduledTransfers().Claim(ctx, st.ID)
			if err != nil {
				return err
			}
			if !claimed {
				skipped = true
				return nil
			}
			_, evs, err = p.engine.TransferIn(ctx, uow, transfer.Command{
				SenderWalletID:   st.SenderWalletID,
				ReceiverWalletID: st.ReceiverWalletID,
				Amount:           st.Amount,
				Note:             fmt.Sprintf("scheduled transfer %s", st.ID),
			})
			if err != nil {
				return err
			}
			return p.spawnNext(ctx, uow, st)
		})
		if err != nil {
			if errors.Is(err, wallet.ErrConcurrentModification) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx)); err != nil {
		return err
	}
	if skipped {
		return nil
	}

	p.lifecycle.Publish(ctx, evs...)
	p.logger.Info("scheduled transfer executed",
		"id", st.ID,
		"sender", st.SenderWalletID,
		"receiver", st.ReceiverWalletID,
		"amount", st.Amount,
	)
	return nil
}

// spawnNext inserts the next occurrence of a recurring definition. The
// child points at the chain root, so recurrence chains stay forward-only
// scalar references with no cycles.
func (p *Processor) spawnNext(
	ctx context.Context,
	uow repository.UnitOfWork,
	st dto.ScheduledTransferRead,
) error {
	if st.Recurrence == schedule.RecurrenceNone || !st.Recurrence.Valid() {
		return nil
	}
	chain := schedule.Transfer{ID: st.ID, ParentID: st.ParentID}
	root := chain.RootID()
	return uow.ScheduledTransfers().Create(ctx, dto.ScheduledTransferCreate{
		ID:               uuid.New(),
		SenderWalletID:   st.SenderWalletID,
		ReceiverWalletID: st.ReceiverWalletID,
		Amount:           st.Amount,
		Recurrence:       st.Recurrence,
		ScheduledAt:      st.Recurrence.Next(st.ScheduledAt),
		ParentID:         &root,
	})
}

// recordFailure books one failed attempt. Failures are retryable while
// RetryCount stays under MaxRetries; the attempt that reaches it marks the
// definition permanently FAILED for operator follow-up.
func (p *Processor) recordFailure(ctx context.Context, st dto.ScheduledTransferRead, cause error) {
	retryCount := st.RetryCount + 1
	now := p.now()
	update := dto.ScheduledTransferUpdate{
		RetryCount:  &retryCount,
		LastRetryAt: &now,
	}
	permanent := retryCount >= p.cfg.MaxRetries
	if permanent {
		failed := schedule.StatusFailed
		update.Status = &failed
	}
	if err := p.uow.ScheduledTransfers().Update(ctx, st.ID, update); err != nil {
		p.logger.Error("failed to record execution failure", "id", st.ID, "error", err)
		return
	}
	if permanent {
		p.logger.Error("scheduled transfer permanently failed",
			"id", st.ID,
			"attempts", retryCount,
			"error", cause,
		)
		return
	}
	p.logger.Warn("scheduled transfer execution failed, will retry",
		"id", st.ID,
		"attempt", retryCount,
		"error", cause,
	)
}

// CreateScheduled registers a new scheduled transfer definition on behalf
// of a user.
func (p *Processor) CreateScheduled(ctx context.Context, cmd CreateCommand) (*dto.ScheduledTransferRead, error) {
	if !cmd.Amount.IsPositive() {
		return nil, wallet.ErrAmountMustBePositive
	}
	if cmd.SenderWalletID == cmd.ReceiverWalletID {
		return nil, wallet.ErrSameWalletTransfer
	}
	if !cmd.Recurrence.Valid() {
		return nil, fmt.Errorf("invalid recurrence %q", cmd.Recurrence)
	}
	if cmd.ScheduledAt.Before(p.now()) {
		return nil, schedule.ErrScheduledInPast
	}

	id := uuid.New()
	err := p.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		sender, err := uow.Wallets().Get(ctx, cmd.SenderWalletID)
		if err != nil {
			return err
		}
		if cmd.UserID != uuid.Nil && sender.UserID != cmd.UserID {
			return wallet.ErrNotOwner
		}
		if !sender.Active {
			return wallet.ErrWalletInactive
		}
		if _, err := uow.Wallets().Get(ctx, cmd.ReceiverWalletID); err != nil {
			return err
		}
		return uow.ScheduledTransfers().Create(ctx, dto.ScheduledTransferCreate{
			ID:               id,
			SenderWalletID:   cmd.SenderWalletID,
			ReceiverWalletID: cmd.ReceiverWalletID,
			Amount:           cmd.Amount,
			Recurrence:       cmd.Recurrence,
			ScheduledAt:      cmd.ScheduledAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return p.uow.ScheduledTransfers().Get(ctx, id)
}

// Cancel marks a still-pending definition CANCELLED. The guarded update
// means cancellation and execution are mutually exclusive outcomes.
func (p *Processor) Cancel(ctx context.Context, id, userID uuid.UUID) error {
	return p.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		st, err := uow.ScheduledTransfers().Get(ctx, id)
		if err != nil {
			return err
		}
		sender, err := uow.Wallets().Get(ctx, st.SenderWalletID)
		if err != nil {
			return err
		}
		if userID != uuid.Nil && sender.UserID != userID {
			return wallet.ErrNotOwner
		}
		cancelled, err := uow.ScheduledTransfers().CancelPending(ctx, id)
		if err != nil {
			return err
		}
		if !cancelled {
			return schedule.ErrNotCancellable
		}
		return nil
	})
}

// ListForWallet returns a wallet's scheduled transfers, owner-checked.
func (p *Processor) ListForWallet(
	ctx context.Context,
	walletID, userID uuid.UUID,
	limit, offset int,
) ([]dto.ScheduledTransferRead, error) {
	w, err := p.uow.Wallets().Get(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if userID != uuid.Nil && w.UserID != userID {
		return nil, wallet.ErrNotOwner
	}
	return p.uow.ScheduledTransfers().ListBySender(ctx, walletID, limit, offset)
}
