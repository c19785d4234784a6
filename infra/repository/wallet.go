package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/payvault/payvault/infra/repository/model"
	"github.com/payvault/payvault/pkg/domain/wallet"
	"github.com/payvault/payvault/pkg/dto"
	"github.com/payvault/payvault/pkg/money"
	"gorm.io/gorm"
)

type walletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a gorm-backed wallet repository.
func NewWalletRepository(db *gorm.DB) *walletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) Get(ctx context.Context, id uuid.UUID) (*dto.WalletRead, error) {
	var m model.Wallet
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wallet.ErrWalletNotFound
		}
		return nil, err
	}
	return mapWalletToRead(&m), nil
}

func (r *walletRepository) Create(ctx context.Context, create dto.WalletCreate) error {
	m := model.Wallet{
		ID:      create.ID,
		UserID:  create.UserID,
		Balance: create.Balance.Decimal(),
		Active:  true,
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

// UpdateBalance writes the new balance only if the stored version still
// matches expectedVersion, incrementing it in the same statement. Zero rows
// affected means another writer won the race.
func (r *walletRepository) UpdateBalance(
	ctx context.Context,
	id uuid.UUID,
	expectedVersion int64,
	balance money.Money,
) error {
	res := r.db.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]any{
			"balance":    balance.Decimal(),
			"version":    expectedVersion + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return wallet.ErrConcurrentModification
	}
	return nil
}

func (r *walletRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ?", id).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return wallet.ErrWalletNotFound
	}
	return nil
}

func (r *walletRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]dto.WalletRead, error) {
	var ms []model.Wallet
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]dto.WalletRead, 0, len(ms))
	for i := range ms {
		out = append(out, *mapWalletToRead(&ms[i]))
	}
	return out, nil
}

func mapWalletToRead(m *model.Wallet) *dto.WalletRead {
	return &dto.WalletRead{
		ID:        m.ID,
		UserID:    m.UserID,
		Balance:   money.New(m.Balance),
		Active:    m.Active,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
