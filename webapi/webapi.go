// Package webapi provides the HTTP surface of the wallet service. It is
// organized into sub-packages per concern:
//   - wallet: wallet, transfer and withdrawal endpoints
//   - checkout: deposit checkout endpoints
//   - schedule: scheduled transfer endpoints
//   - review: audit-trail and fraud-review endpoints
//   - payment: inbound payment-gateway webhooks
package webapi

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/payvault/payvault/pkg/app"
	checkoutweb "github.com/payvault/payvault/webapi/checkout"
	"github.com/payvault/payvault/webapi/common"
	paymentweb "github.com/payvault/payvault/webapi/payment"
	reviewweb "github.com/payvault/payvault/webapi/review"
	scheduleweb "github.com/payvault/payvault/webapi/schedule"
	walletweb "github.com/payvault/payvault/webapi/wallet"
)

// SetupApp initializes Fiber with the application's routes and middleware.
func SetupApp(a *app.App) *fiber.App {
	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})

	// Rate limiting keyed on the originating client IP. Uses
	// X-Forwarded-For when behind a proxy, falling back to X-Real-IP,
	// then the direct peer address.
	fiberApp.Use(limiter.New(limiter.Config{
		Max:        a.Config.RateLimit.MaxRequests,
		Expiration: a.Config.RateLimit.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
				if commaIndex := strings.Index(forwardedFor, ","); commaIndex != -1 {
					return strings.TrimSpace(forwardedFor[:commaIndex])
				}
				return strings.TrimSpace(forwardedFor)
			}
			if realIP := c.Get("X-Real-IP"); realIP != "" {
				return realIP
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return common.ProblemDetailsJSON(
				c,
				"Too Many Requests",
				errors.New("rate limit exceeded"),
				fiber.StatusTooManyRequests,
			)
		},
	}))
	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())

	// Health check endpoint
	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("PayVault API is running")
	})

	fiberApp.Post(
		"/webhooks/payment",
		paymentweb.WebhookHandler(a.Deps.PaymentProvider, a.Lifecycle, a.TransferEngine),
	)

	walletweb.Routes(fiberApp, a.WalletService, a.TransferEngine, a.Config)
	checkoutweb.Routes(fiberApp, a.CheckoutService, a.Config)
	scheduleweb.Routes(fiberApp, a.Scheduler, a.Config)
	reviewweb.Routes(fiberApp, a.WalletService, a.Config)
	return fiberApp
}
