package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/payvault/payvault/infra/repository/model"
	"github.com/payvault/payvault/pkg/domain/transaction"
	"github.com/payvault/payvault/pkg/dto"
	"github.com/payvault/payvault/pkg/money"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a gorm-backed transaction repository.
func NewTransactionRepository(db *gorm.DB) *transactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, create dto.TransactionCreate) error {
	m := model.Transaction{
		ID:                  create.ID,
		WalletID:            create.WalletID,
		CounterpartWalletID: create.CounterpartWalletID,
		Kind:                string(create.Kind),
		Amount:              create.Amount.Decimal(),
		Fee:                 create.Fee.Decimal(),
		Status:              string(create.Status),
		Reference:           create.Reference,
		RefundImpact:        string(create.RefundImpact),
	}
	if m.RefundImpact == "" {
		m.RefundImpact = string(transaction.RefundImpactNone)
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return transaction.ErrDuplicateReference
		}
		return err
	}
	return nil
}

func (r *transactionRepository) Get(ctx context.Context, id uuid.UUID) (*dto.TransactionRead, error) {
	var m model.Transaction
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, transaction.ErrTransactionNotFound
		}
		return nil, err
	}
	return mapTransactionToRead(&m), nil
}

func (r *transactionRepository) GetByReference(ctx context.Context, reference string) (*dto.TransactionRead, error) {
	var m model.Transaction
	if err := r.db.WithContext(ctx).First(&m, "reference = ?", reference).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, transaction.ErrTransactionNotFound
		}
		return nil, err
	}
	return mapTransactionToRead(&m), nil
}

func (r *transactionRepository) Update(ctx context.Context, id uuid.UUID, update dto.TransactionUpdate) error {
	updates := map[string]any{}
	if update.Status != nil {
		updates["status"] = string(*update.Status)
	}
	if update.Flagged != nil {
		updates["flagged"] = *update.Flagged
	}
	if update.PaymentID != nil {
		updates["payment_id"] = *update.PaymentID
	}
	if update.RefundImpact != nil {
		updates["refund_impact"] = string(*update.RefundImpact)
	}
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return transaction.ErrTransactionNotFound
	}
	return nil
}

func (r *transactionRepository) ListByWallet(
	ctx context.Context,
	walletID uuid.UUID,
	limit, offset int,
) ([]dto.TransactionRead, error) {
	var ms []model.Transaction
	if err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return mapTransactionsToRead(ms), nil
}

func (r *transactionRepository) ListFlagged(ctx context.Context, limit, offset int) ([]dto.TransactionRead, error) {
	var ms []model.Transaction
	if err := r.db.WithContext(ctx).
		Where("flagged = ?", true).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return mapTransactionsToRead(ms), nil
}

func (r *transactionRepository) CountByKindsSince(
	ctx context.Context,
	walletID uuid.UUID,
	kinds []transaction.Kind,
	since time.Time,
) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("wallet_id = ? AND kind IN ? AND created_at >= ?", walletID, kindStrings(kinds), since).
		Count(&count).Error
	return count, err
}

func (r *transactionRepository) ListByKindsSince(
	ctx context.Context,
	walletID uuid.UUID,
	kinds []transaction.Kind,
	since time.Time,
) ([]dto.TransactionRead, error) {
	var ms []model.Transaction
	if err := r.db.WithContext(ctx).
		Where("wallet_id = ? AND kind IN ? AND created_at >= ?", walletID, kindStrings(kinds), since).
		Order("created_at asc").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return mapTransactionsToRead(ms), nil
}

func (r *transactionRepository) LastBefore(
	ctx context.Context,
	walletID uuid.UUID,
	before time.Time,
	excludeID uuid.UUID,
) (*dto.TransactionRead, error) {
	var m model.Transaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ? AND created_at < ? AND id <> ?", walletID, before, excludeID).
		Order("created_at desc").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, transaction.ErrTransactionNotFound
		}
		return nil, err
	}
	return mapTransactionToRead(&m), nil
}

func (r *transactionRepository) AverageAmount(
	ctx context.Context,
	walletID uuid.UUID,
) (decimal.Decimal, int64, error) {
	var row struct {
		Avg   decimal.NullDecimal
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("AVG(amount) as avg, COUNT(*) as count").
		Where("wallet_id = ?", walletID).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, 0, err
	}
	if !row.Avg.Valid {
		return decimal.Zero, row.Count, nil
	}
	return row.Avg.Decimal, row.Count, nil
}

func kindStrings(kinds []transaction.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

func mapTransactionToRead(m *model.Transaction) *dto.TransactionRead {
	return &dto.TransactionRead{
		ID:                  m.ID,
		WalletID:            m.WalletID,
		CounterpartWalletID: m.CounterpartWalletID,
		Kind:                transaction.Kind(m.Kind),
		Amount:              money.New(m.Amount),
		Fee:                 money.New(m.Fee),
		Status:              transaction.Status(m.Status),
		Reference:           m.Reference,
		Flagged:             m.Flagged,
		RefundImpact:        transaction.RefundImpact(m.RefundImpact),
		PaymentID:           m.PaymentID,
		CreatedAt:           m.CreatedAt,
	}
}

func mapTransactionsToRead(ms []model.Transaction) []dto.TransactionRead {
	out := make([]dto.TransactionRead, 0, len(ms))
	for i := range ms {
		out = append(out, *mapTransactionToRead(&ms[i]))
	}
	return out
}
