package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/money"
)

// MockProvider is an in-memory gateway for local development and tests.
// CreateCheckout hands back a fake hosted-checkout URL; ParseWebhook
// accepts the JSON shape a real gateway would sign, skipping signature
// verification.
type MockProvider struct {
	mu       sync.Mutex
	sessions map[string]CheckoutParams
}

// NewMockProvider creates a mock payment provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{sessions: make(map[string]CheckoutParams)}
}

// CreateCheckout implements Provider.
func (m *MockProvider) CreateCheckout(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	sessionID := "cs_mock_" + uuid.NewString()
	m.mu.Lock()
	m.sessions[sessionID] = params
	m.mu.Unlock()
	return &CheckoutSession{
		SessionID:  sessionID,
		PaymentURL: "https://checkout.example.com/pay/" + sessionID,
		ExpiresAt:  time.Now().Add(30 * time.Minute),
	}, nil
}

type mockWebhookPayload struct {
	Type      string `json:"type"`
	Reference string `json:"reference"`
	PaymentID string `json:"payment_id"`
	Amount    string `json:"amount"`
}

// ParseWebhook implements Provider.
func (m *MockProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	var p mockWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook payload: %v", ErrGateway, err)
	}
	eventType := EventType(p.Type)
	switch eventType {
	case EventPaymentSucceeded, EventPaymentFailed:
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrGateway, p.Type)
	}
	amount, err := money.NewFromString(p.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: bad amount %q", ErrGateway, p.Amount)
	}
	return &WebhookEvent{
		Type:      eventType,
		Reference: p.Reference,
		PaymentID: p.PaymentID,
		Amount:    amount,
	}, nil
}

var _ Provider = (*MockProvider)(nil)
