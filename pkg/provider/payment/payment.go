// Package payment abstracts the external payment gateway. The core only
// sees this interface: checkout creation and webhook parsing. Webhook
// delivery is at-least-once, so everything downstream of a parsed event
// must be idempotent per transaction reference.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/payvault/payvault/pkg/money"
)

// ErrGateway wraps payment-provider failures. The associated transaction
// stays PENDING for later reconciliation.
var ErrGateway = errors.New("payment gateway error")

// EventType classifies webhook events.
type EventType string

const (
	// EventPaymentSucceeded is delivered when a checkout payment settles.
	EventPaymentSucceeded EventType = "payment.succeeded"
	// EventPaymentFailed is delivered when a checkout payment fails.
	EventPaymentFailed EventType = "payment.failed"
)

// CheckoutParams holds the inputs for creating a hosted checkout.
type CheckoutParams struct {
	Reference string
	Amount    money.Money
	Email     string
}

// CheckoutSession is the provider's handle for a started checkout.
type CheckoutSession struct {
	SessionID  string
	PaymentURL string
	ExpiresAt  time.Time
}

// WebhookEvent is a parsed, verified webhook delivery.
type WebhookEvent struct {
	Type      EventType
	Reference string
	PaymentID string
	Amount    money.Money
}

// Provider is the payment gateway port.
type Provider interface {
	CreateCheckout(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}
