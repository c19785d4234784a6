package wallet

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/money"
)

var (
	// ErrAmountMustBePositive is returned when an operation amount is not positive.
	ErrAmountMustBePositive = errors.New("amount must be positive")

	// ErrInsufficientFunds is returned when a wallet balance cannot cover a
	// withdrawal or transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWalletNotFound is returned when a wallet cannot be found.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrSameWalletTransfer is returned when a transfer names the same wallet
	// on both legs.
	ErrSameWalletTransfer = errors.New("cannot transfer to same wallet")

	// ErrWalletInactive is returned when an operation targets a deactivated wallet.
	ErrWalletInactive = errors.New("wallet is deactivated")

	// ErrNotOwner is returned when a caller acts on a wallet they do not own.
	ErrNotOwner = errors.New("not wallet owner")

	// ErrConcurrentModification is returned when a version-guarded update
	// loses a race. The caller must restart the whole operation, never just
	// the write.
	ErrConcurrentModification = errors.New("wallet modified concurrently")

	// ErrNilWallet is returned when a nil wallet reaches a validation.
	ErrNilWallet = errors.New("nil wallet")
)

// Wallet is an account holding a non-negative balance in the system's unit
// of account.
//
// Invariants:
//   - Balance is never negative; it changes only through the transfer engine.
//   - Version is the optimistic-concurrency token: every balance write checks
//     and increments it in the same atomic update.
//   - Wallets are deactivated, never deleted.
type Wallet struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Balance   money.Money
	Active    bool
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Builder constructs Wallet instances, validating invariants on Build.
type Builder struct {
	id        uuid.UUID
	userID    uuid.UUID
	balance   money.Money
	active    bool
	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// New creates a Builder with a fresh ID, an active state and a zero balance.
func New() *Builder {
	return &Builder{
		id:        uuid.New(),
		balance:   money.Zero(),
		active:    true,
		createdAt: time.Now(),
	}
}

// WithID sets the wallet ID, for hydration from a data store.
func (b *Builder) WithID(id uuid.UUID) *Builder {
	b.id = id
	return b
}

// WithUserID sets the owning user. Mandatory.
func (b *Builder) WithUserID(userID uuid.UUID) *Builder {
	b.userID = userID
	return b
}

// WithBalance sets the starting balance. For hydration and test setup only;
// live balances move through the transfer engine.
func (b *Builder) WithBalance(balance money.Money) *Builder {
	b.balance = balance
	return b
}

// WithActive sets the activation state.
func (b *Builder) WithActive(active bool) *Builder {
	b.active = active
	return b
}

// WithVersion sets the concurrency token, for hydration.
func (b *Builder) WithVersion(version int64) *Builder {
	b.version = version
	return b
}

// WithCreatedAt sets the creation timestamp, for hydration.
func (b *Builder) WithCreatedAt(t time.Time) *Builder {
	b.createdAt = t
	return b
}

// WithUpdatedAt sets the last-updated timestamp, for hydration.
func (b *Builder) WithUpdatedAt(t time.Time) *Builder {
	b.updatedAt = t
	return b
}

// Build validates invariants and returns the Wallet.
func (b *Builder) Build() (*Wallet, error) {
	if b.userID == uuid.Nil {
		return nil, errors.New("userID is required")
	}
	if b.balance.IsNegative() {
		return nil, money.ErrNegativeAmount
	}
	return &Wallet{
		ID:        b.id,
		UserID:    b.userID,
		Balance:   b.balance,
		Active:    b.active,
		Version:   b.version,
		CreatedAt: b.createdAt,
		UpdatedAt: b.updatedAt,
	}, nil
}

// ValidateOwner checks that userID owns the wallet. A nil userID skips the
// check; internal callers (the scheduler) act without a caller identity.
func (w *Wallet) ValidateOwner(userID uuid.UUID) error {
	if userID != uuid.Nil && w.UserID != userID {
		return ErrNotOwner
	}
	return nil
}

// ValidateDeposit checks invariants for crediting the wallet.
func (w *Wallet) ValidateDeposit(amount money.Money) error {
	if !w.Active {
		return ErrWalletInactive
	}
	if !amount.IsPositive() {
		return ErrAmountMustBePositive
	}
	return nil
}

// ValidateWithdraw checks invariants for debiting the wallet.
//
// Enforced:
//   - wallet is active,
//   - amount is positive,
//   - balance covers the amount (no negative balances, ever).
func (w *Wallet) ValidateWithdraw(amount money.Money) error {
	if !w.Active {
		return ErrWalletInactive
	}
	if !amount.IsPositive() {
		return ErrAmountMustBePositive
	}
	if w.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	return nil
}

// ValidateTransfer checks invariants for a transfer from w to dest.
func (w *Wallet) ValidateTransfer(dest *Wallet, amount money.Money) error {
	if w == nil || dest == nil {
		return ErrNilWallet
	}
	if w.ID == dest.ID {
		return ErrSameWalletTransfer
	}
	if err := w.ValidateWithdraw(amount); err != nil {
		return err
	}
	return dest.ValidateDeposit(amount)
}
