package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	apppayment "github.com/rentago/payments/internal/application/payment"
	"github.com/rentago/payments/internal/bootstrap"
	"github.com/rentago/payments/internal/dispatcher"
	"github.com/rentago/payments/internal/gateway"
	"github.com/rentago/payments/internal/infrastructure/config"
	"github.com/rentago/payments/internal/infrastructure/kafka"
	infraRedis "github.com/rentago/payments/internal/infrastructure/redis"
	"github.com/rentago/payments/internal/repository/postgres"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "payments-dispatcher", "payments_dispatcher")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	ledger := postgres.NewPaymentRepository(app.Pool)
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Kafka publisher ---
	publisher, err := kafka.NewPublisher(app.Logger, &app.Config.Kafka)
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Failed to create Kafka publisher")
	}
	defer publisher.Close()

	// --- Outbox dispatcher ---
	outboxDispatcher := dispatcher.New(
		app.Logger,
		outboxRepo,
		txManager,
		publisher,
		app.Metrics,
		app.Config.Dispatcher,
	)

	// --- Reconciler (shares the callback confirmation path) ---
	registry := gateway.NewRegistry(buildGateway(&app.Config.Gateway)).WithMetrics(app.Metrics)
	confirmUC := apppayment.NewConfirmPaymentUseCase(ledger, outboxRepo, txManager, registry, app.Config.Gateway.VerifyTimeout)
	reconciler := dispatcher.NewReconciler(
		app.Logger,
		ledger,
		confirmUC,
		func(key string, ttl time.Duration) dispatcher.Lock {
			return infraRedis.NewDistributedLock(app.Redis, key, ttl)
		},
		app.Metrics,
		app.Config.Dispatcher,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return outboxDispatcher.Run(gCtx)
	})
	g.Go(func() error {
		return reconciler.Run(gCtx)
	})
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down dispatcher...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Dispatcher error")
	}
	app.Logger.Info().Msg("Dispatcher exited")
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
