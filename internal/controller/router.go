package controller

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	apppayment "github.com/rentago/payments/internal/application/payment"
	"github.com/rentago/payments/internal/domain/payment"
	"github.com/rentago/payments/internal/infrastructure/config"
	"github.com/rentago/payments/internal/infrastructure/observability"
	customMW "github.com/rentago/payments/internal/middleware"
	"github.com/rentago/payments/internal/repository/postgres"
)

type RouterDeps struct {
	Pool              *pgxpool.Pool
	RedisClient       *redis.Client
	Ledger            payment.Repository
	Initiate          *apppayment.InitiatePaymentUseCase
	Confirm           *apppayment.ConfirmPaymentUseCase
	Get               *apppayment.GetPaymentUseCase
	IdempotencyRepo   *postgres.IdempotencyRepository
	Metrics           *observability.Metrics
	CORSConfig        config.CORSConfig
	CallbackRateLimit int
	FrontendResultURL string
	Provider          string
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.SecurityHeaders())
	if deps.Metrics != nil {
		r.Use(customMW.Metrics(deps.Metrics))
	}

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	paymentH := NewPaymentController(
		deps.Initiate,
		deps.Confirm,
		deps.Get,
		deps.Ledger,
		deps.Metrics,
		deps.FrontendResultURL,
		deps.Provider,
	)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		idempotencyMW := customMW.Idempotency(deps.IdempotencyRepo)

		r.With(idempotencyMW).Post("/payments", paymentH.InitiatePayment)
		// The provider redirects the customer's browser here; rate limit
		// by IP against provider retry storms and stray refreshes.
		r.With(customMW.RateLimit(deps.CallbackRateLimit)).Get("/payments/confirm", paymentH.ConfirmCallback)
		r.Get("/payments/{id}", paymentH.GetPayment)
	})

	return r
}
