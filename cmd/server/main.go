package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/payvault/payvault/infra"
	"github.com/payvault/payvault/infra/eventbus"
	infrarepo "github.com/payvault/payvault/infra/repository"
	"github.com/payvault/payvault/pkg/app"
	"github.com/payvault/payvault/pkg/config"
	"github.com/payvault/payvault/pkg/provider/payment"
	"github.com/payvault/payvault/webapi"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.LoadAppConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := infra.Migrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	deps := &app.Deps{
		Uow:             infrarepo.NewUoW(db),
		EventBus:        eventbus.NewWithMemory(logger),
		PaymentProvider: payment.NewMockProvider(),
		Logger:          logger,
	}
	a := app.New(deps, cfg)
	fiberApp := webapi.SetupApp(a)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.Scheduler.Run(ctx)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := fiberApp.Shutdown(); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("starting server", "env", cfg.Env, "address", addr)
	return fiberApp.Listen(addr)
}
