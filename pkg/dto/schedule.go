package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/domain/schedule"
	"github.com/payvault/payvault/pkg/money"
)

// ScheduledTransferRead is the read model for a scheduled transfer.
type ScheduledTransferRead struct {
	ID               uuid.UUID
	SenderWalletID   uuid.UUID
	ReceiverWalletID uuid.UUID
	Amount           money.Money
	Recurrence       schedule.Recurrence
	ScheduledAt      time.Time
	Status           schedule.Status
	Processed        bool
	RetryCount       int
	LastRetryAt      *time.Time
	ParentID         *uuid.UUID
	CreatedAt        time.Time
}

// ScheduledTransferCreate creates a new scheduled transfer definition.
type ScheduledTransferCreate struct {
	ID               uuid.UUID
	SenderWalletID   uuid.UUID
	ReceiverWalletID uuid.UUID
	Amount           money.Money
	Recurrence       schedule.Recurrence
	ScheduledAt      time.Time
	ParentID         *uuid.UUID
}

// ScheduledTransferUpdate applies a partial update; nil fields are untouched.
type ScheduledTransferUpdate struct {
	Status      *schedule.Status
	RetryCount  *int
	LastRetryAt *time.Time
}
