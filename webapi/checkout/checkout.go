// Package checkout exposes the deposit checkout endpoints. Deposits go
// through a hosted payment page: initiation creates a PENDING transaction
// and a session, the gateway webhook settles it later.
package checkout

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/config"
	"github.com/payvault/payvault/pkg/middleware"
	"github.com/payvault/payvault/pkg/money"
	checkoutsvc "github.com/payvault/payvault/pkg/service/checkout"
	"github.com/payvault/payvault/webapi/common"
)

// DepositRequest is the body for initiating a deposit checkout.
type DepositRequest struct {
	Amount string `json:"amount" validate:"required"`
	Email  string `json:"email" validate:"omitempty,email"`
}

// Routes registers checkout endpoints.
//
//   - POST /wallet/:id/deposit   : Start a deposit checkout for the wallet.
//   - GET  /checkout/:session_id : Look up a live checkout session.
func Routes(app *fiber.App, checkoutSvc *checkoutsvc.Service, cfg *config.AppConfig) {
	app.Post("/wallet/:id/deposit", middleware.JwtProtected(cfg.Jwt), InitiateDeposit(checkoutSvc))
	app.Get("/checkout/:session_id", middleware.JwtProtected(cfg.Jwt), GetSession(checkoutSvc))
}

// InitiateDeposit returns a handler that creates a PENDING deposit and a
// hosted checkout session for it. The wallet balance does not change until
// the gateway confirms payment.
func InitiateDeposit(checkoutSvc *checkoutsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.CurrentUserID(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err, fiber.StatusUnauthorized)
		}
		walletID, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return common.ProblemDetailsJSON(
				c, "Invalid wallet ID", err, "Wallet ID must be a valid UUID", fiber.StatusBadRequest)
		}
		input, err := common.BindAndValidate[DepositRequest](c)
		if input == nil {
			return err
		}
		amount, err := money.NewFromString(input.Amount)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid amount", err)
		}
		session, err := checkoutSvc.InitiateDeposit(c.UserContext(), userID, walletID, amount, input.Email)
		if err != nil {
			log.Errorf("Deposit initiation failed for wallet %s: %v", walletID, err)
			return common.ProblemDetailsJSON(c, "Failed to initiate deposit", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Checkout session created", session)
	}
}

// GetSession returns a handler reading a live checkout session. The
// session owner check keeps one user from polling another's checkout.
func GetSession(checkoutSvc *checkoutsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.CurrentUserID(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err, fiber.StatusUnauthorized)
		}
		session, err := checkoutSvc.Session(c.Params("session_id"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Session not found", err)
		}
		if session.UserID != userID {
			return common.ProblemDetailsJSON(
				c, "Session not found", checkoutsvc.ErrSessionNotFound)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Checkout session", session)
	}
}
