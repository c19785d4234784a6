package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	infrarepo "github.com/payvault/payvault/infra/repository"
	"github.com/payvault/payvault/pkg/domain/schedule"
	"github.com/payvault/payvault/pkg/domain/transaction"
	"github.com/payvault/payvault/pkg/domain/wallet"
	"github.com/payvault/payvault/pkg/dto"
	"github.com/payvault/payvault/pkg/repository"
	"github.com/payvault/payvault/pkg/testutils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletRepository_UpdateBalanceVersionGuard(t *testing.T) {
	uow := testutils.NewTestUoW(t)
	ctx := context.Background()
	id := testutils.SeedWallet(t, uow, uuid.New(), "100.00")

	w, err := uow.Wallets().Get(ctx, id)
	require.NoError(t, err)

	require.NoError(t, uow.Wallets().UpdateBalance(
		ctx, id, w.Version, testutils.Amount(t, "80.00")))

	// the stale version must lose
	err = uow.Wallets().UpdateBalance(ctx, id, w.Version, testutils.Amount(t, "999.00"))
	assert.ErrorIs(t, err, wallet.ErrConcurrentModification)

	got, err := uow.Wallets().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "80.00", got.Balance.String())
	assert.Equal(t, w.Version+1, got.Version)
}

func TestWalletRepository_GetUnknown(t *testing.T) {
	uow := testutils.NewTestUoW(t)
	_, err := uow.Wallets().Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, wallet.ErrWalletNotFound)
}

func TestWalletRepository_DeactivateAndList(t *testing.T) {
	uow := testutils.NewTestUoW(t)
	ctx := context.Background()
	userID := uuid.New()
	a := testutils.SeedWallet(t, uow, userID, "1.00")
	testutils.SeedWallet(t, uow, userID, "2.00")
	testutils.SeedWallet(t, uow, uuid.New(), "3.00")

	require.NoError(t, uow.Wallets().Deactivate(ctx, a))
	got, err := uow.Wallets().Get(ctx, a)
	require.NoError(t, err)
	assert.False(t, got.Active)

	mine, err := uow.Wallets().ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestTransactionRepository_DuplicateReference(t *testing.T) {
	uow := testutils.NewTestUoW(t)
	ctx := context.Background()
	walletID := testutils.SeedWallet(t, uow, uuid.New(), "0.00")
	ref := testutils.SeedTransaction(t, uow, walletID, transaction.KindDeposit, "5.00")

	err := uow.Transactions().Create(ctx, dto.TransactionCreate{
		ID:           uuid.New(),
		WalletID:     walletID,
		Kind:         transaction.KindDeposit,
		Amount:       testutils.Amount(t, "5.00"),
		Status:       transaction.StatusPending,
		Reference:    ref,
		RefundImpact: transaction.RefundImpactNone,
	})
	assert.ErrorIs(t, err, transaction.ErrDuplicateReference)
}

func TestTransactionRepository_HistoryQueries(t *testing.T) {
	uow := testutils.NewTestUoW(t)
	ctx := context.Background()
	walletID := testutils.SeedWallet(t, uow, uuid.New(), "0.00")

	testutils.SeedTransaction(t, uow, walletID, transaction.KindDeposit, "10.00")
	testutils.SeedTransaction(t, uow, walletID, transaction.KindDeposit, "20.00")
	testutils.SeedTransaction(t, uow, walletID, transaction.KindWithdrawal, "30.00")
	testutils.SeedTransaction(t, uow, walletID, transaction.KindTransfer, "40.00")

	since := time.Now().Add(-time.Hour)

	count, err := uow.Transactions().CountByKindsSince(
		ctx, walletID, []transaction.Kind{transaction.KindDeposit}, since)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	listed, err := uow.Transactions().ListByKindsSince(
		ctx, walletID,
		[]transaction.Kind{transaction.KindDeposit, transaction.KindWithdrawal},
		since)
	require.NoError(t, err)
	assert.Len(t, listed, 3)

	avg, n, err := uow.Transactions().AverageAmount(ctx, walletID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	assert.True(t, avg.Equal(decimal.NewFromInt(25)), "avg = %s", avg)
}

func TestTransactionRepository_AverageAmountEmptyWallet(t *testing.T) {
	uow := testutils.NewTestUoW(t)
	walletID := testutils.SeedWallet(t, uow, uuid.New(), "0.00")

	avg, n, err := uow.Transactions().AverageAmount(context.Background(), walletID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, avg.IsZero())
}

func TestTransactionRepository_LastBeforeExcludesSelf(t *testing.T) {
	uow := testutils.NewTestUoW(t)
	ctx := context.Background()
	walletID := testutils.SeedWallet(t, uow, uuid.New(), "0.00")

	ref := testutils.SeedTransaction(t, uow, walletID, transaction.KindDeposit, "10.00")
	tx, err := uow.Transactions().GetByReference(ctx, ref)
	require.NoError(t, err)

	_, err = uow.Transactions().LastBefore(
		ctx, walletID, tx.CreatedAt.Add(time.Second), tx.ID)
	assert.ErrorIs(t, err, transaction.ErrTransactionNotFound)
}

func TestStatusHistory_AppendOnlyOrdering(t *testing.T) {
	uow := testutils.NewTestUoW(t)
	ctx := context.Background()
	ref := "TXN-ordering"

	for _, s := range []transaction.Status{
		transaction.StatusPending, transaction.StatusSuccess,
	} {
		require.NoError(t, uow.StatusHistory().Append(ctx, dto.StatusEntryCreate{
			Status:    s,
			Note:      "note " + string(s),
			Reference: ref,
		}))
	}

	trail, err := uow.StatusHistory().ListByReference(ctx, ref)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, transaction.StatusPending, trail[0].Status)
	assert.Equal(t, transaction.StatusSuccess, trail[1].Status)
}

func TestScheduledTransfers_ClaimIsExclusive(t *testing.T) {
	uow := testutils.NewTestUoW(t)
	ctx := context.Background()
	id := seedScheduled(t, uow, time.Now())

	claimed, err := uow.ScheduledTransfers().Claim(ctx, id)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = uow.ScheduledTransfers().Claim(ctx, id)
	require.NoError(t, err)
	assert.False(t, claimed)

	cancelled, err := uow.ScheduledTransfers().CancelPending(ctx, id)
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestScheduledTransfers_CancelBlocksClaim(t *testing.T) {
	uow := testutils.NewTestUoW(t)
	ctx := context.Background()
	id := seedScheduled(t, uow, time.Now())

	cancelled, err := uow.ScheduledTransfers().CancelPending(ctx, id)
	require.NoError(t, err)
	assert.True(t, cancelled)

	claimed, err := uow.ScheduledTransfers().Claim(ctx, id)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestScheduledTransfers_ListDueOldestFirst(t *testing.T) {
	uow := testutils.NewTestUoW(t)
	ctx := context.Background()
	now := time.Now()

	newest := seedScheduled(t, uow, now.Add(-time.Hour))
	oldest := seedScheduled(t, uow, now.Add(-48*time.Hour))
	seedScheduled(t, uow, now.Add(time.Hour)) // future, not due

	due, err := uow.ScheduledTransfers().ListDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, oldest, due[0].ID)
	assert.Equal(t, newest, due[1].ID)
}

func TestUoW_RollsBackOnError(t *testing.T) {
	uow := testutils.NewTestUoW(t)
	ctx := context.Background()
	id := testutils.SeedWallet(t, uow, uuid.New(), "100.00")

	boom := errors.New("boom")
	err := uow.Do(ctx, func(tx repository.UnitOfWork) error {
		w, err := tx.Wallets().Get(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Wallets().UpdateBalance(
			ctx, id, w.Version, testutils.Amount(t, "0.00")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := uow.Wallets().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "100.00", got.Balance.String())
}

func TestUoW_NestedDoSharesTransaction(t *testing.T) {
	uow := testutils.NewTestUoW(t)
	ctx := context.Background()
	id := testutils.SeedWallet(t, uow, uuid.New(), "100.00")

	boom := errors.New("boom")
	err := uow.Do(ctx, func(outer repository.UnitOfWork) error {
		return outer.Do(ctx, func(inner repository.UnitOfWork) error {
			w, err := inner.Wallets().Get(ctx, id)
			if err != nil {
				return err
			}
			if err := inner.Wallets().UpdateBalance(
				ctx, id, w.Version, testutils.Amount(t, "0.00")); err != nil {
				return err
			}
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	// the inner failure rolls back the shared transaction
	got, err := uow.Wallets().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "100.00", got.Balance.String())
}

func seedScheduled(t *testing.T, uow *infrarepo.UoW, at time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, uow.ScheduledTransfers().Create(context.Background(), dto.ScheduledTransferCreate{
		ID:               id,
		SenderWalletID:   uuid.New(),
		ReceiverWalletID: uuid.New(),
		Amount:           testutils.Amount(t, "10.00"),
		Recurrence:       schedule.RecurrenceNone,
		ScheduledAt:      at,
	}))
	return id
}
