// Package schedule exposes the scheduled and recurring transfer endpoints.
package schedule

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/config"
	domainschedule "github.com/payvault/payvault/pkg/domain/schedule"
	"github.com/payvault/payvault/pkg/middleware"
	"github.com/payvault/payvault/pkg/money"
	"github.com/payvault/payvault/pkg/service/scheduler"
	"github.com/payvault/payvault/webapi/common"
)

// CreateRequest is the body for registering a scheduled transfer.
type CreateRequest struct {
	ReceiverWalletID string    `json:"receiver_wallet_id" validate:"required,uuid4"`
	Amount           string    `json:"amount" validate:"required"`
	Recurrence       string    `json:"recurrence" validate:"omitempty,oneof=NONE DAILY WEEKLY MONTHLY"`
	ScheduledAt      time.Time `json:"scheduled_at" validate:"required"`
}

// Routes registers scheduled transfer endpoints.
//
//   - POST   /wallet/:id/scheduled : Register a scheduled transfer from the wallet.
//   - GET    /wallet/:id/scheduled : List the wallet's scheduled transfers.
//   - DELETE /scheduled/:id        : Cancel a still-pending scheduled transfer.
func Routes(app *fiber.App, processor *scheduler.Processor, cfg *config.AppConfig) {
	app.Post("/wallet/:id/scheduled", middleware.JwtProtected(cfg.Jwt), Create(processor))
	app.Get("/wallet/:id/scheduled", middleware.JwtProtected(cfg.Jwt), List(processor))
	app.Delete("/scheduled/:id", middleware.JwtProtected(cfg.Jwt), Cancel(processor))
}

// Create returns a handler registering a scheduled transfer definition.
func Create(processor *scheduler.Processor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.CurrentUserID(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err, fiber.StatusUnauthorized)
		}
		senderID, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return common.ProblemDetailsJSON(
				c, "Invalid wallet ID", err, "Wallet ID must be a valid UUID", fiber.StatusBadRequest)
		}
		input, err := common.BindAndValidate[CreateRequest](c)
		if input == nil {
			return err
		}
		receiverID, err := uuid.Parse(input.ReceiverWalletID)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid receiver wallet ID", err, fiber.StatusBadRequest)
		}
		amount, err := money.NewFromString(input.Amount)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid amount", err)
		}
		recurrence := domainschedule.RecurrenceNone
		if input.Recurrence != "" {
			recurrence = domainschedule.Recurrence(input.Recurrence)
		}
		st, err := processor.CreateScheduled(c.UserContext(), scheduler.CreateCommand{
			UserID:           userID,
			SenderWalletID:   senderID,
			ReceiverWalletID: receiverID,
			Amount:           amount,
			Recurrence:       recurrence,
			ScheduledAt:      input.ScheduledAt,
		})
		if err != nil {
			log.Errorf("Failed to schedule transfer from wallet %s: %v", senderID, err)
			return common.ProblemDetailsJSON(c, "Failed to schedule transfer", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Transfer scheduled", st)
	}
}

// List returns a handler listing a wallet's scheduled transfers.
func List(processor *scheduler.Processor) fiber.Handler {
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
		limit := c.QueryInt("limit", 20)
		offset := c.QueryInt("offset", 0)
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		if offset < 0 {
			offset = 0
		}
		items, err := processor.ListForWallet(c.UserContext(), walletID, userID, limit, offset)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list scheduled transfers", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Scheduled transfers", items)
	}
}

// Cancel returns a handler cancelling a still-pending scheduled transfer.
// A definition already claimed by the processor cannot be cancelled.
func Cancel(processor *scheduler.Processor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.CurrentUserID(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err, fiber.StatusUnauthorized)
		}
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return common.ProblemDetailsJSON(
				c, "Invalid scheduled transfer ID", err, fiber.StatusBadRequest)
		}
		if err := processor.Cancel(c.UserContext(), id, userID); err != nil {
			log.Errorf("Failed to cancel scheduled transfer %s: %v", id, err)
			return common.ProblemDetailsJSON(c, "Failed to cancel scheduled transfer", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Scheduled transfer cancelled", nil)
	}
}
