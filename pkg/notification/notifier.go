// Package notification delivers user-facing notifications for domain
// events. The log-backed implementation is the default; real channels
// (email, push) plug in behind the same interface.
package notification

import (
	"context"
	"log/slog"

	"github.com/payvault/payvault/pkg/domain/events"
	"github.com/payvault/payvault/pkg/eventbus"
)

// Notifier sends a notification for an event. Implementations must be
// safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, event eventbus.Event) error
}

// LogNotifier records notifications through the structured logger. It
// stands in for a real delivery channel in development and tests.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a Notifier backed by logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

// Notify logs the event with its domain attributes.
func (n *LogNotifier) Notify(ctx context.Context, event eventbus.Event) error {
	switch e := event.(type) {
	case events.TransactionStatusChanged:
		n.logger.InfoContext(ctx, "transaction status changed",
			"reference", e.Reference,
			"wallet_id", e.WalletID,
			"from", e.OldStatus,
			"to", e.NewStatus,
		)
	case events.TransactionFlagged:
		n.logger.WarnContext(ctx, "transaction flagged for review",
			"reference", e.Reference,
			"wallet_id", e.WalletID,
			"reasons", e.Reasons,
		)
	default:
		n.logger.InfoContext(ctx, "event received", "type", event.Type())
	}
	return nil
}

// Handler adapts a Notifier into an event bus handler.
func Handler(n Notifier) eventbus.HandlerFunc {
	return func(ctx context.Context, event eventbus.Event) error {
		return n.Notify(ctx, event)
	}
}
