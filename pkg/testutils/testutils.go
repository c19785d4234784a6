// Package testutils provides the shared test fixtures: an in-memory
// sqlite database with the full schema, a unit of work over it, and seed
// helpers for wallets and transactions.
package testutils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/payvault/payvault/infra"
	infraeventbus "github.com/payvault/payvault/infra/eventbus"
	infrarepo "github.com/payvault/payvault/infra/repository"
	"github.com/payvault/payvault/pkg/domain/transaction"
	"github.com/payvault/payvault/pkg/dto"
	"github.com/payvault/payvault/pkg/money"
	"github.com/payvault/payvault/pkg/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a fresh in-memory sqlite database with the full schema
// migrated. Each call gets its own database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, infra.Migrate(db))
	return db
}

// NewTestUoW returns a unit of work over a fresh test database.
func NewTestUoW(t *testing.T) *infrarepo.UoW {
	t.Helper()
	return infrarepo.NewUoW(NewTestDB(t))
}

// NewTestLogger returns a logger that discards everything.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestBus returns a memory bus with a silent logger.
func NewTestBus() *infraeventbus.MemoryEventBus {
	return infraeventbus.NewWithMemory(NewTestLogger())
}

// SeedWallet inserts a wallet with the given balance and returns its id.
func SeedWallet(t *testing.T, uow repository.UnitOfWork, userID uuid.UUID, balance string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	amount, err := money.NewFromString(balance)
	require.NoError(t, err)
	require.NoError(t, uow.Wallets().Create(context.Background(), dto.WalletCreate{
		ID:      id,
		UserID:  userID,
		Balance: amount,
	}))
	return id
}

// SeedTransaction inserts a SUCCESS transaction of the given kind and
// amount against the wallet and returns its reference.
func SeedTransaction(
	t *testing.T,
	uow repository.UnitOfWork,
	walletID uuid.UUID,
	kind transaction.Kind,
	amount string,
) string {
	t.Helper()
	m, err := money.NewFromString(amount)
	require.NoError(t, err)
	create := dto.TransactionCreate{
		ID:           uuid.New(),
		WalletID:     walletID,
		Kind:         kind,
		Amount:       m,
		Fee:          money.Zero(),
		Status:       transaction.StatusSuccess,
		Reference:    transaction.NewReference(),
		RefundImpact: transaction.RefundImpactNone,
	}
	require.NoError(t, uow.Transactions().Create(context.Background(), create))
	return create.Reference
}

// Dec parses a decimal literal, failing the test on bad input.
func Dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// Amount parses a money literal, failing the test on bad input.
func Amount(t *testing.T, s string) money.Money {
	t.Helper()
	m, err := money.NewFromString(s)
	require.NoError(t, err)
	return m
}
