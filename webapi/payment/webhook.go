// Package payment handles inbound payment-gateway webhooks.
package payment

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/payvault/payvault/pkg/domain/transaction"
	"github.com/payvault/payvault/pkg/provider/payment"
	"github.com/payvault/payvault/pkg/service/lifecycle"
	"github.com/payvault/payvault/pkg/service/transfer"
)

// WebhookHandler parses and settles payment-gateway webhook deliveries.
// Delivery is at-least-once: completion is idempotent per reference, and
// the handler acknowledges with 200 even when the referenced transaction
// is already settled, so the gateway stops retrying.
func WebhookHandler(
	provider payment.Provider,
	lc *lifecycle.Service,
	engine *transfer.Engine,
) fiber.Handler {
	return func(c *fiber.Ctx) error {
		signature := c.Get("Payment-Signature")
		if signature == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing Payment-Signature header",
			})
		}
		payload := c.Body()
		if len(payload) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Empty request body",
			})
		}

		event, err := provider.ParseWebhook(c.UserContext(), payload, signature)
		if err != nil {
			log.Errorf("Webhook parse failed: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid webhook payload",
			})
		}

		switch event.Type {
		case payment.EventPaymentSucceeded:
			err = lc.CompleteDeposit(
				c.UserContext(),
				event.Reference,
				event.PaymentID,
				transaction.RefundImpactRefundable,
			)
		case payment.EventPaymentFailed:
			err = failDeposit(c, engine, lc, event)
		default:
			log.Infof("Ignoring webhook event type %s", event.Type)
		}

		if err != nil {
			if errors.Is(err, transaction.ErrTransactionNotFound) {
				// unknown reference, nothing to retry against
				return c.SendStatus(fiber.StatusOK)
			}
			log.Errorf("Webhook settlement failed for %s: %v", event.Reference, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Settlement failed",
			})
		}
		return c.SendStatus(fiber.StatusOK)
	}
}

func failDeposit(
	c *fiber.Ctx,
	engine *transfer.Engine,
	lc *lifecycle.Service,
	event *payment.WebhookEvent,
) error {
	tx, err := engine.TransactionByReference(c.UserContext(), event.Reference)
	if err != nil {
		return err
	}
	if tx.Status.Terminal() {
		// duplicate delivery or already settled, acknowledge
		return nil
	}
	return lc.Transition(c.UserContext(), tx.ID, transaction.StatusFailed, "payment failed at gateway")
}
