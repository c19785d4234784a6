package lifecycle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	infraeventbus "github.com/payvault/payvault/infra/eventbus"
	infrarepo "github.com/payvault/payvault/infra/repository"
	"github.com/payvault/payvault/pkg/domain/events"
	"github.com/payvault/payvault/pkg/domain/transaction"
	"github.com/payvault/payvault/pkg/dto"
	"github.com/payvault/payvault/pkg/eventbus"
	"github.com/payvault/payvault/pkg/service/lifecycle"
	"github.com/payvault/payvault/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	uow *infrarepo.UoW
	bus *infraeventbus.MemoryEventBus
	svc *lifecycle.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	uow := testutils.NewTestUoW(t)
	bus := testutils.NewTestBus()
	return &fixture{
		uow: uow,
		bus: bus,
		svc: lifecycle.New(uow, bus, testutils.NewTestLogger()),
	}
}

func (f *fixture) createPending(t *testing.T, walletID uuid.UUID) *dto.TransactionRead {
	t.Helper()
	tx, err := f.svc.Create(context.Background(), dto.TransactionCreate{
		WalletID: walletID,
		Kind:     transaction.KindDeposit,
		Amount:   testutils.Amount(t, "50.00"),
	})
	require.NoError(t, err)
	return tx
}

func TestCreate_DefaultsToPendingWithAuditRow(t *testing.T) {
	f := newFixture(t)
	walletID := testutils.SeedWallet(t, f.uow, uuid.New(), "0.00")

	tx := f.createPending(t, walletID)
	assert.Equal(t, transaction.StatusPending, tx.Status)
	assert.NotEmpty(t, tx.Reference)
	assert.Equal(t, transaction.RefundImpactNone, tx.RefundImpact)

	trail, err := f.uow.StatusHistory().ListByReference(context.Background(), tx.Reference)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, transaction.StatusPending, trail[0].Status)
	assert.Equal(t, "transaction created", trail[0].Note)
}

func TestCreate_RegeneratesReferenceOnCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	walletID := testutils.SeedWallet(t, f.uow, uuid.New(), "0.00")
	taken := testutils.SeedTransaction(t, f.uow, walletID, transaction.KindDeposit, "5.00")

	tx, err := f.svc.Create(ctx, dto.TransactionCreate{
		WalletID:  walletID,
		Kind:      transaction.KindDeposit,
		Amount:    testutils.Amount(t, "5.00"),
		Reference: taken,
	})
	require.NoError(t, err)
	assert.NotEqual(t, taken, tx.Reference)
}

func TestCreate_RejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t)
	walletID := testutils.SeedWallet(t, f.uow, uuid.New(), "0.00")

	_, err := f.svc.Create(context.Background(), dto.TransactionCreate{
		WalletID: walletID,
		Kind:     transaction.KindDeposit,
		Amount:   testutils.Amount(t, "0.00"),
	})
	require.Error(t, err)
}

func TestTransition_PendingToTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	walletID := testutils.SeedWallet(t, f.uow, uuid.New(), "0.00")
	tx := f.createPending(t, walletID)

	require.NoError(t, f.svc.Transition(ctx, tx.ID, transaction.StatusSuccess, "settled"))

	got, err := f.uow.Transactions().Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusSuccess, got.Status)

	trail, err := f.uow.StatusHistory().ListByReference(ctx, tx.Reference)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, transaction.StatusSuccess, trail[1].Status)
	assert.Equal(t, "settled", trail[1].Note)
}

func TestTransition_TerminalStatesAreImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	walletID := testutils.SeedWallet(t, f.uow, uuid.New(), "0.00")
	tx := f.createPending(t, walletID)
	require.NoError(t, f.svc.Transition(ctx, tx.ID, transaction.StatusFailed, "declined"))

	err := f.svc.Transition(ctx, tx.ID, transaction.StatusSuccess, "oops")
	assert.ErrorIs(t, err, transaction.ErrAlreadyTerminal)

	got, err := f.uow.Transactions().Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusFailed, got.Status)
}

func TestTransition_SameStatusIsIdempotentNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	walletID := testutils.SeedWallet(t, f.uow, uuid.New(), "0.00")
	tx := f.createPending(t, walletID)
	require.NoError(t, f.svc.Transition(ctx, tx.ID, transaction.StatusSuccess, "settled"))
	f.bus.ClearPublished()

	require.NoError(t, f.svc.Transition(ctx, tx.ID, transaction.StatusSuccess, "again"))

	// no second audit row, no second event
	trail, err := f.uow.StatusHistory().ListByReference(ctx, tx.Reference)
	require.NoError(t, err)
	assert.Len(t, trail, 2)
	assert.Empty(t, f.bus.Published())
}

func TestTransition_RejectsInvalidStatus(t *testing.T) {
	f := newFixture(t)
	walletID := testutils.SeedWallet(t, f.uow, uuid.New(), "0.00")
	tx := f.createPending(t, walletID)

	err := f.svc.Transition(context.Background(), tx.ID, transaction.Status("SETTLED"), "")
	assert.ErrorIs(t, err, transaction.ErrInvalidStatus)
}

func TestTransition_HandlerErrorDoesNotSurfaceToCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.bus.Register(events.EventTransactionStatusChanged, func(context.Context, eventbus.Event) error {
		return errors.New("observer exploded")
	})
	walletID := testutils.SeedWallet(t, f.uow, uuid.New(), "0.00")
	tx := f.createPending(t, walletID)

	require.NoError(t, f.svc.Transition(ctx, tx.ID, transaction.StatusSuccess, "settled"))

	got, err := f.uow.Transactions().Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusSuccess, got.Status)
}

func TestCompleteDeposit_CreditsWalletOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	walletID := testutils.SeedWallet(t, f.uow, uuid.New(), "10.00")
	tx := f.createPending(t, walletID)

	require.NoError(t, f.svc.CompleteDeposit(ctx, tx.Reference, "pay_123", transaction.RefundImpactRefundable))

	w, err := f.uow.Wallets().Get(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, "60.00", w.Balance.String())

	got, err := f.uow.Transactions().GetByReference(ctx, tx.Reference)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusSuccess, got.Status)
	assert.Equal(t, "pay_123", got.PaymentID)
	assert.Equal(t, transaction.RefundImpactRefundable, got.RefundImpact)

	// duplicate webhook delivery must not double-credit
	require.NoError(t, f.svc.CompleteDeposit(ctx, tx.Reference, "pay_123", transaction.RefundImpactRefundable))
	w, err = f.uow.Wallets().Get(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, "60.00", w.Balance.String())
}

func TestCompleteDeposit_FailedDepositCannotComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	walletID := testutils.SeedWallet(t, f.uow, uuid.New(), "10.00")
	tx := f.createPending(t, walletID)
	require.NoError(t, f.svc.Transition(ctx, tx.ID, transaction.StatusFailed, "declined"))

	err := f.svc.CompleteDeposit(ctx, tx.Reference, "pay_123", transaction.RefundImpactRefundable)
	assert.ErrorIs(t, err, transaction.ErrAlreadyTerminal)

	w, err := f.uow.Wallets().Get(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", w.Balance.String())
}

func TestCompleteDeposit_UnknownReference(t *testing.T) {
	f := newFixture(t)
	err := f.svc.CompleteDeposit(context.Background(), "TXN-nope", "pay_123", transaction.RefundImpactRefundable)
	assert.ErrorIs(t, err, transaction.ErrTransactionNotFound)
}

func TestPublish_OrderFollowsCommitOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	walletID := testutils.SeedWallet(t, f.uow, uuid.New(), "0.00")

	first := f.createPending(t, walletID)
	second := f.createPending(t, walletID)
	require.NoError(t, f.svc.Transition(ctx, first.ID, transaction.StatusSuccess, ""))
	require.NoError(t, f.svc.Transition(ctx, second.ID, transaction.StatusFailed, ""))

	published := f.bus.Published()
	require.Len(t, published, 2)
	ev1 := published[0].(events.TransactionStatusChanged)
	ev2 := published[1].(events.TransactionStatusChanged)
	assert.Equal(t, first.Reference, ev1.Reference)
	assert.Equal(t, second.Reference, ev2.Reference)
}
