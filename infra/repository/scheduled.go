package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/payvault/payvault/infra/repository/model"
	"github.com/payvault/payvault/pkg/domain/schedule"
	"github.com/payvault/payvault/pkg/dto"
	"github.com/payvault/payvault/pkg/money"
	"gorm.io/gorm"
)

type scheduledTransferRepository struct {
	db *gorm.DB
}

// NewScheduledTransferRepository creates a gorm-backed scheduled transfer
// repository.
func NewScheduledTransferRepository(db *gorm.DB) *scheduledTransferRepository {
	return &scheduledTransferRepository{db: db}
}

func (r *scheduledTransferRepository) Create(ctx context.Context, create dto.ScheduledTransferCreate) error {
	m := model.ScheduledTransfer{
		ID:               create.ID,
		SenderWalletID:   create.SenderWalletID,
		ReceiverWalletID: create.ReceiverWalletID,
		Amount:           create.Amount.Decimal(),
		Recurrence:       string(create.Recurrence),
		ScheduledAt:      create.ScheduledAt,
		Status:           string(schedule.StatusPending),
		ParentID:         create.ParentID,
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *scheduledTransferRepository) Get(ctx context.Context, id uuid.UUID) (*dto.ScheduledTransferRead, error) {
	var m model.ScheduledTransfer
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, schedule.ErrScheduledTransferNotFound
		}
		return nil, err
	}
	return mapScheduledToRead(&m), nil
}

func (r *scheduledTransferRepository) Update(
	ctx context.Context,
	id uuid.UUID,
	update dto.ScheduledTransferUpdate,
) error {
	updates := map[string]any{}
	if update.Status != nil {
		updates["status"] = string(*update.Status)
	}
	if update.RetryCount != nil {
		updates["retry_count"] = *update.RetryCount
	}
	if update.LastRetryAt != nil {
		updates["last_retry_at"] = *update.LastRetryAt
	}
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.ScheduledTransfer{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return schedule.ErrScheduledTransferNotFound
	}
	return nil
}

func (r *scheduledTransferRepository) ListBySender(
	ctx context.Context,
	senderWalletID uuid.UUID,
	limit, offset int,
) ([]dto.ScheduledTransferRead, error) {
	var ms []model.ScheduledTransfer
	if err := r.db.WithContext(ctx).
		Where("sender_wallet_id = ?", senderWalletID).
		Order("scheduled_at asc").
		Limit(limit).
		Offset(offset).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return mapScheduledListToRead(ms), nil
}

func (r *scheduledTransferRepository) ListDue(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]dto.ScheduledTransferRead, error) {
	var ms []model.ScheduledTransfer
	if err := r.db.WithContext(ctx).
		Where("status = ? AND processed = ? AND retry_count = 0 AND scheduled_at <= ?",
			string(schedule.StatusPending), false, now).
		Order("scheduled_at asc").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return mapScheduledListToRead(ms), nil
}

func (r *scheduledTransferRepository) ListRetryable(
	ctx context.Context,
	maxRetries int,
	limit int,
) ([]dto.ScheduledTransferRead, error) {
	var ms []model.ScheduledTransfer
	if err := r.db.WithContext(ctx).
		Where("status = ? AND processed = ? AND retry_count > 0 AND retry_count < ?",
			string(schedule.StatusPending), false, maxRetries).
		Order("scheduled_at asc").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return mapScheduledListToRead(ms), nil
}

// Claim flips processed false -> true and status to EXECUTED in one guarded
// update. RowsAffected 0 means another scan got there first; the caller
// must then skip the row entirely.
func (r *scheduledTransferRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.ScheduledTransfer{}).
		Where("id = ? AND processed = ? AND status = ?", id, false, string(schedule.StatusPending)).
		Updates(map[string]any{
			"processed":  true,
			"status":     string(schedule.StatusExecuted),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CancelPending is the user-facing counterpart of Claim: the same guarded
// update idiom, flipping a still-pending row to CANCELLED. Exactly one of
// Claim and CancelPending can win on any given row.
func (r *scheduledTransferRepository) CancelPending(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.ScheduledTransfer{}).
		Where("id = ? AND processed = ? AND status = ?", id, false, string(schedule.StatusPending)).
		Updates(map[string]any{
			"status":     string(schedule.StatusCancelled),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func mapScheduledToRead(m *model.ScheduledTransfer) *dto.ScheduledTransferRead {
	return &dto.ScheduledTransferRead{
		ID:               m.ID,
		SenderWalletID:   m.SenderWalletID,
		ReceiverWalletID: m.ReceiverWalletID,
		Amount:           money.New(m.Amount),
		Recurrence:       schedule.Recurrence(m.Recurrence),
		ScheduledAt:      m.ScheduledAt,
		Status:           schedule.Status(m.Status),
		Processed:        m.Processed,
		RetryCount:       m.RetryCount,
		LastRetryAt:      m.LastRetryAt,
		ParentID:         m.ParentID,
		CreatedAt:        m.CreatedAt,
	}
}

func mapScheduledListToRead(ms []model.ScheduledTransfer) []dto.ScheduledTransferRead {
	out := make([]dto.ScheduledTransferRead, 0, len(ms))
	for i := range ms {
		out = append(out, *mapScheduledToRead(&ms[i]))
	}
	return out
}
