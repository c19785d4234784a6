// Package wallet exposes the wallet and transfer endpoints.
package wallet

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/config"
	"github.com/payvault/payvault/pkg/middleware"
	"github.com/payvault/payvault/pkg/money"
	"github.com/payvault/payvault/pkg/service/transfer"
	walletsvc "github.com/payvault/payvault/pkg/service/wallet"
	"github.com/payvault/payvault/webapi/common"
)

// Routes registers wallet endpoints. All routes require a valid bearer
// token; the wallet id in the path must belong to the authenticated user.
//
//   - POST   /wallet                   : Create a wallet for the current user.
//   - GET    /wallet                   : List the current user's wallets.
//   - GET    /wallet/:id               : Wallet details including balance.
//   - DELETE /wallet/:id               : Deactivate the wallet.
//   - POST   /wallet/:id/transfer      : Transfer funds to another wallet.
//   - POST   /wallet/:id/withdraw      : Withdraw funds.
//   - GET    /wallet/:id/transactions  : List the wallet's transactions.
func Routes(app *fiber.App, walletSvc *walletsvc.Service, engine *transfer.Engine, cfg *config.AppConfig) {
	app.Post("/wallet", middleware.JwtProtected(cfg.Jwt), CreateWallet(walletSvc))
	app.Get("/wallet", middleware.JwtProtected(cfg.Jwt), ListWallets(walletSvc))
	app.Get("/wallet/:id", middleware.JwtProtected(cfg.Jwt), GetWallet(walletSvc))
	app.Delete("/wallet/:id", middleware.JwtProtected(cfg.Jwt), Deactivate(walletSvc))
	app.Post("/wallet/:id/transfer", middleware.JwtProtected(cfg.Jwt), Transfer(engine))
	app.Post("/wallet/:id/withdraw", middleware.JwtProtected(cfg.Jwt), Withdraw(engine))
	app.Get("/wallet/:id/transactions", middleware.JwtProtected(cfg.Jwt), Transactions(walletSvc))
}

// CreateWallet returns a handler creating a zero-balance wallet for the
// authenticated user.
func CreateWallet(walletSvc *walletsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.CurrentUserID(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err, fiber.StatusUnauthorized)
		}
		w, err := walletSvc.CreateWallet(c.UserContext(), userID)
		if err != nil {
			log.Errorf("Failed to create wallet: %v", err)
			return common.ProblemDetailsJSON(c, "Failed to create wallet", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Wallet created", w)
	}
}

// ListWallets returns a handler listing the authenticated user's wallets.
func ListWallets(walletSvc *walletsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.CurrentUserID(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err, fiber.StatusUnauthorized)
		}
		wallets, err := walletSvc.ListForUser(c.UserContext(), userID)
		if err != nil {
			log.Errorf("Failed to list wallets: %v", err)
			return common.ProblemDetailsJSON(c, "Failed to list wallets", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Wallets", wallets)
	}
}

// GetWallet returns a handler reading one wallet, owner-checked.
func GetWallet(walletSvc *walletsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, walletID, ok := identityAndWallet(c)
		if !ok {
			return nil
		}
		w, err := walletSvc.Get(c.UserContext(), walletID, userID)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to get wallet", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Wallet", w)
	}
}

// Deactivate returns a handler that deactivates a wallet. Funds stay on
// the books; the wallet just stops accepting operations.
func Deactivate(walletSvc *walletsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, walletID, ok := identityAndWallet(c)
		if !ok {
			return nil
		}
		if err := walletSvc.Deactivate(c.UserContext(), walletID, userID); err != nil {
			log.Errorf("Failed to deactivate wallet %s: %v", walletID, err)
			return common.ProblemDetailsJSON(c, "Failed to deactivate wallet", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Wallet deactivated", nil)
	}
}

// Transfer returns a handler moving funds from the path wallet to the
// receiver named in the body.
func Transfer(engine *transfer.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, walletID, ok := identityAndWallet(c)
		if !ok {
			return nil
		}
		input, err := common.BindAndValidate[TransferRequest](c)
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
		tx, err := engine.Transfer(c.UserContext(), transfer.Command{
			UserID:           userID,
			SenderWalletID:   walletID,
			ReceiverWalletID: receiverID,
			Amount:           amount,
			Note:             input.Note,
		})
		if err != nil {
			log.Errorf("Transfer failed for wallet %s: %v", walletID, err)
			return common.ProblemDetailsJSON(c, "Transfer failed", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Transfer successful", tx)
	}
}

// Withdraw returns a handler debiting the wallet.
func Withdraw(engine *transfer.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, walletID, ok := identityAndWallet(c)
		if !ok {
			return nil
		}
		input, err := common.BindAndValidate[WithdrawRequest](c)
		if input == nil {
			return err
		}
		amount, err := money.NewFromString(input.Amount)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid amount", err)
		}
		tx, err := engine.Withdraw(c.UserContext(), transfer.WithdrawCommand{
			UserID:   userID,
			WalletID: walletID,
			Amount:   amount,
		})
		if err != nil {
			log.Errorf("Withdrawal failed for wallet %s: %v", walletID, err)
			return common.ProblemDetailsJSON(c, "Withdrawal failed", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Withdrawal successful", tx)
	}
}

// Transactions returns a handler listing the wallet's transactions,
// newest first.
func Transactions(walletSvc *walletsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, walletID, ok := identityAndWallet(c)
		if !ok {
			return nil
		}
		var q ListQuery
		if err := c.QueryParser(&q); err != nil {
			return common.ProblemDetailsJSON(c, "Invalid query", err, fiber.StatusBadRequest)
		}
		q.Clamp()
		txs, err := walletSvc.ListTransactions(c.UserContext(), walletID, userID, q.Limit, q.Offset)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list transactions", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transactions", txs)
	}
}

// identityAndWallet extracts the authenticated user and the :id path
// parameter. On failure it writes the error response and returns ok=false.
func identityAndWallet(c *fiber.Ctx) (userID, walletID uuid.UUID, ok bool) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		_ = common.ProblemDetailsJSON(c, "Unauthorized", err, fiber.StatusUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}
	walletID, err = uuid.Parse(c.Params("id"))
	if err != nil {
		_ = common.ProblemDetailsJSON(
			c, "Invalid wallet ID", err, "Wallet ID must be a valid UUID", fiber.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, walletID, true
}
