// Package app assembles the service graph from its dependencies and
// registers the event handlers that react to committed state changes.
package app

import (
	"log/slog"

	"github.com/payvault/payvault/pkg/config"
	"github.com/payvault/payvault/pkg/domain/events"
	"github.com/payvault/payvault/pkg/eventbus"
	"github.com/payvault/payvault/pkg/money"
	"github.com/payvault/payvault/pkg/notification"
	"github.com/payvault/payvault/pkg/provider/payment"
	"github.com/payvault/payvault/pkg/repository"
	"github.com/payvault/payvault/pkg/service/checkout"
	"github.com/payvault/payvault/pkg/service/fraud"
	"github.com/payvault/payvault/pkg/service/lifecycle"
	"github.com/payvault/payvault/pkg/service/scheduler"
	"github.com/payvault/payvault/pkg/service/transfer"
	walletsvc "github.com/payvault/payvault/pkg/service/wallet"
)

// Deps contains the infrastructure dependencies the service graph is
// built from.
type Deps struct {
	Uow             repository.UnitOfWork
	EventBus        eventbus.Bus
	PaymentProvider payment.Provider
	Logger          *slog.Logger
}

// App is the assembled application.
type App struct {
	Deps   *Deps
	Config *config.AppConfig

	WalletService   *walletsvc.Service
	TransferEngine  *transfer.Engine
	Lifecycle       *lifecycle.Service
	FraudEngine     *fraud.Engine
	CheckoutService *checkout.Service
	Scheduler       *scheduler.Processor
	Notifier        notification.Notifier
}

// New wires the full service graph and registers the bus handlers.
func New(deps *Deps, cfg *config.AppConfig) *App {
	lc := lifecycle.New(deps.Uow, deps.EventBus, deps.Logger)
	fees := transfer.PercentageWithCap{
		Rate: cfg.Fees.Rate,
		Cap:  money.New(cfg.Fees.Cap),
	}
	engine := transfer.NewEngine(deps.Uow, lc, fees, deps.Logger)

	app := &App{
		Deps:   deps,
		Config: cfg,

		WalletService:  walletsvc.NewService(deps.Uow, deps.Logger),
		TransferEngine: engine,
		Lifecycle:      lc,
		FraudEngine: fraud.NewEngine(
			deps.Uow,
			deps.EventBus,
			fraud.DefaultRules(deps.Uow.Transactions(), fraud.DefaultNewWalletPolicy),
			deps.Logger,
		),
		CheckoutService: checkout.New(engine, deps.PaymentProvider, deps.Logger),
		Scheduler:       scheduler.New(deps.Uow, engine, lc, cfg.Scheduler, deps.Logger),
		Notifier:        notification.NewLogNotifier(deps.Logger),
	}
	app.setupEventBus()
	return app
}

// setupEventBus subscribes the post-commit reactions: fraud evaluation on
// every status change, and notification fan-out for both event kinds.
func (a *App) setupEventBus() {
	bus := a.Deps.EventBus
	bus.Register(events.EventTransactionStatusChanged, a.FraudEngine.HandleStatusChanged)
	bus.Register(events.EventTransactionStatusChanged, notification.Handler(a.Notifier))
	bus.Register(events.EventTransactionFlagged, notification.Handler(a.Notifier))
}
