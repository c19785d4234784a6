package repository

import (
	"context"

	"github.com/payvault/payvault/infra/repository/model"
	"github.com/payvault/payvault/pkg/domain/transaction"
	"github.com/payvault/payvault/pkg/dto"
	"gorm.io/gorm"
)

type statusHistoryRepository struct {
	db *gorm.DB
}

// NewStatusHistoryRepository creates a gorm-backed audit-trail repository.
func NewStatusHistoryRepository(db *gorm.DB) *statusHistoryRepository {
	return &statusHistoryRepository{db: db}
}

func (r *statusHistoryRepository) Append(ctx context.Context, entry dto.StatusEntryCreate) error {
	m := model.TransactionStatus{
		Reference: entry.Reference,
		Status:    string(entry.Status),
		Note:      entry.Note,
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *statusHistoryRepository) ListByReference(
	ctx context.Context,
	reference string,
) ([]dto.StatusEntryRead, error) {
	var ms []model.TransactionStatus
	if err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		Order("id asc").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]dto.StatusEntryRead, 0, len(ms))
	for _, m := range ms {
		out = append(out, dto.StatusEntryRead{
			Status:    transaction.Status(m.Status),
			Note:      m.Note,
			Reference: m.Reference,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}

type flagReasonRepository struct {
	db *gorm.DB
}

// NewFlagReasonRepository creates a gorm-backed flag-reason repository.
func NewFlagReasonRepository(db *gorm.DB) *flagReasonRepository {
	return &flagReasonRepository{db: db}
}

func (r *flagReasonRepository) Create(ctx context.Context, create dto.FlagReasonCreate) error {
	m := model.FlaggedTransactionReason{
		Reference: create.Reference,
		Reason:    create.Reason,
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *flagReasonRepository) ListByReference(
	ctx context.Context,
	reference string,
) ([]dto.FlagReasonRead, error) {
	var ms []model.FlaggedTransactionReason
	if err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		Order("id asc").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return mapFlagReasons(ms), nil
}

func (r *flagReasonRepository) List(ctx context.Context, limit, offset int) ([]dto.FlagReasonRead, error) {
	var ms []model.FlaggedTransactionReason
	if err := r.db.WithContext(ctx).
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return mapFlagReasons(ms), nil
}

func mapFlagReasons(ms []model.FlaggedTransactionReason) []dto.FlagReasonRead {
	out := make([]dto.FlagReasonRead, 0, len(ms))
	for _, m := range ms {
		out = append(out, dto.FlagReasonRead{
			Reason:    m.Reason,
			Reference: m.Reference,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}
