// Package model holds the gorm persistence models. They mirror the domain
// entities field-for-field but stay out of the domain packages so gorm tags
// and schema concerns never leak into business logic.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is the persisted form of a wallet. Version is the optimistic
// concurrency token; every balance write is guarded on it.
type Wallet struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID       `gorm:"type:uuid;index;not null"`
	Balance   decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Active    bool            `gorm:"not null;default:true"`
	Version   int64           `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for the Wallet model.
func (Wallet) TableName() string { return "wallets" }

// Transaction is the persisted form of a transaction record.
type Transaction struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey"`
	WalletID            uuid.UUID  `gorm:"type:uuid;index;not null"`
	CounterpartWalletID *uuid.UUID `gorm:"type:uuid"`
	Kind                string     `gorm:"type:varchar(16);not null"`
	Amount              decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Fee                 decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	Status              string          `gorm:"type:varchar(16);not null;default:'PENDING'"`
	Reference           string          `gorm:"type:varchar(64);uniqueIndex;not null"`
	Flagged             bool            `gorm:"not null;default:false"`
	RefundImpact        string          `gorm:"type:varchar(16);not null;default:'NONE'"`
	PaymentID           string          `gorm:"type:varchar(128);index"`
	CreatedAt           time.Time       `gorm:"index"`
}

// TableName specifies the table name for the Transaction model.
func (Transaction) TableName() string { return "transactions" }

// TransactionStatus is one append-only audit-trail row. Rows are inserted
// on every status change and never updated or deleted.
type TransactionStatus struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Reference string `gorm:"type:varchar(64);index;not null"`
	Status    string `gorm:"type:varchar(16);not null"`
	Note      string `gorm:"type:varchar(255)"`
	CreatedAt time.Time
}

// TableName specifies the table name for the TransactionStatus model.
func (TransactionStatus) TableName() string { return "transaction_statuses" }

// FlaggedTransactionReason records one fraud-rule hit, retained for
// compliance review.
type FlaggedTransactionReason struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Reference string `gorm:"type:varchar(64);index;not null"`
	Reason    string `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time
}

// TableName specifies the table name for the FlaggedTransactionReason model.
func (FlaggedTransactionReason) TableName() string { return "flagged_transaction_reasons" }

// ScheduledTransfer is the persisted form of a scheduled transfer
// definition. Processed is the exactly-once guard: it flips false to true
// at most once, inside the same transaction as the resulting money
// movement.
type ScheduledTransfer struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SenderWalletID   uuid.UUID       `gorm:"type:uuid;index;not null"`
	ReceiverWalletID uuid.UUID       `gorm:"type:uuid;not null"`
	Amount           decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Recurrence       string          `gorm:"type:varchar(16);not null;default:'NONE'"`
	ScheduledAt      time.Time       `gorm:"index;not null"`
	Status           string          `gorm:"type:varchar(16);not null;default:'PENDING';index"`
	Processed        bool            `gorm:"not null;default:false;index"`
	RetryCount       int             `gorm:"not null;default:0"`
	LastRetryAt      *time.Time
	ParentID         *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName specifies the table name for the ScheduledTransfer model.
func (ScheduledTransfer) TableName() string { return "scheduled_transfers" }
