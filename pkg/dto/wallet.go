// Package dto holds the data-transfer shapes flowing between services,
// repositories and the web layer. Read structs are query-optimized; Create
// and Update structs carry exactly the writable fields, with pointers
// marking optional partial updates.
package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/money"
)

// WalletRead is the read model for a wallet.
type WalletRead struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Balance   money.Money
	Active    bool
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WalletCreate creates a new wallet.
type WalletCreate struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	Balance money.Money
}
