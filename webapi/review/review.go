// Package review exposes the audit-trail and fraud-review endpoints used
// by back-office operators.
package review

import (
	"github.com/gofiber/fiber/v2"
	"github.com/payvault/payvault/pkg/config"
	"github.com/payvault/payvault/pkg/middleware"
	walletsvc "github.com/payvault/payvault/pkg/service/wallet"
	"github.com/payvault/payvault/webapi/common"
)

// Routes registers review endpoints.
//
//   - GET /transactions/flagged           : List transactions flagged for review.
//   - GET /transactions/:reference/audit  : A transaction's status history.
//   - GET /transactions/:reference/flags  : The flag reasons recorded for a transaction.
func Routes(app *fiber.App, walletSvc *walletsvc.Service, cfg *config.AppConfig) {
	app.Get("/transactions/flagged", middleware.JwtProtected(cfg.Jwt), ListFlagged(walletSvc))
	app.Get("/transactions/:reference/audit", middleware.JwtProtected(cfg.Jwt), AuditTrail(walletSvc))
	app.Get("/transactions/:reference/flags", middleware.JwtProtected(cfg.Jwt), FlagReasons(walletSvc))
}

// ListFlagged returns a handler listing flagged transactions, newest
// first.
func ListFlagged(walletSvc *walletsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 20)
		offset := c.QueryInt("offset", 0)
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		if offset < 0 {
			offset = 0
		}
		txs, err := walletSvc.ListFlagged(c.UserContext(), limit, offset)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list flagged transactions", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Flagged transactions", txs)
	}
}

// AuditTrail returns a handler reading a transaction's append-only status
// history, oldest first.
func AuditTrail(walletSvc *walletsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entries, err := walletSvc.AuditTrail(c.UserContext(), c.Params("reference"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to read audit trail", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Audit trail", entries)
	}
}

// FlagReasons returns a handler reading the fraud-rule hits recorded for a
// transaction.
func FlagReasons(walletSvc *walletsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reasons, err := walletSvc.FlagReasons(c.UserContext(), c.Params("reference"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to read flag reasons", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Flag reasons", reasons)
	}
}
