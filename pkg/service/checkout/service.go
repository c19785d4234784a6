// Package checkout orchestrates deposit initiation against the payment
// gateway: it creates the PENDING deposit transaction, starts a hosted
// checkout and tracks the session until the webhook resolves it.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/dto"
	"github.com/payvault/payvault/pkg/money"
	"github.com/payvault/payvault/pkg/provider/payment"
	"github.com/payvault/payvault/pkg/service/transfer"
)

// ErrSessionNotFound is returned when a checkout session is unknown or
// expired.
var ErrSessionNotFound = errors.New("checkout session not found")

// Session is the tracked state of one started checkout.
type Session struct {
	ID          string
	Reference   string
	WalletID    uuid.UUID
	UserID      uuid.UUID
	Amount      money.Money
	CheckoutURL string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Service creates and tracks checkout sessions. The session store is
// in-memory: sessions are a UX convenience, the transaction record is the
// durable source of truth and webhooks resolve by reference, not session.
type Service struct {
	engine   *transfer.Engine
	provider payment.Provider
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New creates a checkout service.
func New(engine *transfer.Engine, provider payment.Provider, logger *slog.Logger) *Service {
	return &Service{
		engine:   engine,
		provider: provider,
		logger:   logger.With("service", "checkout"),
		sessions: make(map[string]*Session),
	}
}

// InitiateDeposit creates a PENDING deposit transaction and a hosted
// checkout for it. A gateway failure is surfaced as payment.ErrGateway and
// leaves the transaction PENDING for later reconciliation.
func (s *Service) InitiateDeposit(
	ctx context.Context,
	userID, walletID uuid.UUID,
	amount money.Money,
	email string,
) (*Session, error) {
	tx, err := s.engine.Deposit(ctx, transfer.DepositCommand{
		UserID:   userID,
		WalletID: walletID,
		Amount:   amount,
	})
	if err != nil {
		return nil, err
	}

	cs, err := s.provider.CreateCheckout(ctx, payment.CheckoutParams{
		Reference: tx.Reference,
		Amount:    amount,
		Email:     email,
	})
	if err != nil {
		s.logger.Error("checkout creation failed, deposit stays pending",
			"reference", tx.Reference,
			"error", err,
		)
		if errors.Is(err, payment.ErrGateway) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", payment.ErrGateway, err)
	}

	session := &Session{
		ID:          cs.SessionID,
		Reference:   tx.Reference,
		WalletID:    walletID,
		UserID:      userID,
		Amount:      amount,
		CheckoutURL: cs.PaymentURL,
		CreatedAt:   time.Now(),
		ExpiresAt:   cs.ExpiresAt,
	}
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.logger.Info("checkout session created",
		"session", session.ID,
		"reference", tx.Reference,
		"amount", amount,
	)
	return session, nil
}

// Session returns a live session by id.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || session.Expired(time.Now()) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Sweep drops expired sessions. Called periodically by the owner.
func (s *Service) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// PendingDeposit re-reads the deposit transaction behind a session.
func (s *Service) PendingDeposit(ctx context.Context, sessionID string) (*dto.TransactionRead, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.engine.TransactionByReference(ctx, session.Reference)
}
