package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	apppayment "github.com/rentago/payments/internal/application/payment"
	"github.com/rentago/payments/internal/bootstrap"
	"github.com/rentago/payments/internal/controller"
	"github.com/rentago/payments/internal/gateway"
	"github.com/rentago/payments/internal/infrastructure/config"
	"github.com/rentago/payments/internal/repository/postgres"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "payments-api", "payments")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	ledger := postgres.NewPaymentRepository(app.Pool)
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Gateways ---
	registry := gateway.NewRegistry(buildGateway(&app.Config.Gateway)).WithMetrics(app.Metrics)

	// --- Use cases ---
	initiateUC := apppayment.NewInitiatePaymentUseCase(ledger, txManager, registry, app.Config.Gateway.Provider)
	confirmUC := apppayment.NewConfirmPaymentUseCase(ledger, outboxRepo, txManager, registry, app.Config.Gateway.VerifyTimeout)
	getUC := apppayment.NewGetPaymentUseCase(ledger)

	// --- Router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:              app.Pool,
		RedisClient:       app.Redis,
		Ledger:            ledger,
		Initiate:          initiateUC,
		Confirm:           confirmUC,
		Get:               getUC,
		IdempotencyRepo:   idempotencyRepo,
		Metrics:           app.Metrics,
		CORSConfig:        app.Config.Server.CORS,
		CallbackRateLimit: app.Config.Server.CallbackRateLimit,
		FrontendResultURL: app.Config.Server.FrontendResultURL,
		Provider:          app.Config.Gateway.Provider,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}

func buildGateway(cfg *config.GatewayConfig) gateway.Gateway {
	if cfg.UseMock {
		return gateway.NewMockGateway(cfg.Provider,
			gateway.WithDeclineRate(cfg.MockDeclineRate),
			gateway.WithTimeoutRate(cfg.MockTimeoutRate),
		)
	}
	return gateway.NewPayPalGateway(gateway.PayPalConfig{
		BaseURL:   cfg.PayPal.BaseURL,
		ClientID:  cfg.PayPal.ClientID,
		Secret:    cfg.PayPal.Secret,
		ReturnURL: cfg.PayPal.ReturnURL,
		Timeout:   cfg.VerifyTimeout,
	})
}
