package dispatcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apppayment "github.com/rentago/payments/internal/application/payment"
	"github.com/rentago/payments/internal/domain/errs"
	"github.com/rentago/payments/internal/domain/payment"
	"github.com/rentago/payments/internal/infrastructure/config"
	"github.com/rentago/payments/internal/infrastructure/observability"
)

// ConfirmService resolves a payment by its provider reference through
// the same verification and transition path as a provider callback.
type ConfirmService interface {
	Execute(ctx context.Context, reference string) (*apppayment.ConfirmResult, error)
}

// Lock is a distributed mutual-exclusion guard around one payment.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory builds a lock for the given key.
type LockFactory func(key string, ttl time.Duration) Lock

// Reconciler sweeps payments stuck in pending — typically after an
// ambiguous gateway outcome or a lost callback — and re-verifies them
// against the provider. A payment that is still ambiguous stays pending
// and is picked up again on a later sweep.
type Reconciler struct {
	logger  zerolog.Logger
	ledger  payment.Repository
	confirm ConfirmService
	locks   LockFactory
	metrics *observability.Metrics
	cfg     config.DispatcherConfig
}

func NewReconciler(
	logger zerolog.Logger,
	ledger payment.Repository,
	confirm ConfirmService,
	locks LockFactory,
	metrics *observability.Metrics,
	cfg config.DispatcherConfig,
) *Reconciler {
	return &Reconciler{
		logger:  logger.With().Str("component", "reconciler").Logger(),
		ledger:  ledger,
		confirm: confirm,
		locks:   locks,
		metrics: metrics,
		cfg:     cfg,
	}
}

// Run sweeps stale pending payments until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info().
		Dur("interval", r.cfg.ReconcileInterval).
		Dur("reconcile_after", r.cfg.ReconcileAfter).
		Msg("Reconciler started")

	ticker := time.NewTicker(r.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Reconciler stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := r.ReconcileOnce(ctx); err != nil {
				r.logger.Error().Err(err).Msg("Reconcile sweep failed")
			}
		}
	}
}

// ReconcileOnce re-verifies one batch of stale pending payments. Each
// payment is guarded by a per-payment distributed lock so overlapping
// sweeps from multiple instances never double-verify; the row lock in
// the confirmation path keeps correctness either way.
func (r *Reconciler) ReconcileOnce(ctx context.Context) error {
	olderThan := time.Now().Add(-r.cfg.ReconcileAfter)
	stale, err := r.ledger.ListStalePending(ctx, olderThan, r.cfg.ReconcileBatchSize)
	if err != nil {
		return err
	}

	for _, record := range stale {
		r.reconcilePayment(ctx, record)
	}
	return nil
}

func (r *Reconciler) reconcilePayment(ctx context.Context, record *payment.Record) {
	logger := r.logger.With().
		Str("payment_id", record.ID.String()).
		Str("reference", record.Reference).
		Logger()

	lock := r.locks("reconcile:payment:"+record.ID.String(), r.cfg.LockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Lock acquisition failed, skipping")
		return
	}
	if !acquired {
		// Another instance holds this payment.
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			logger.Warn().Err(err).Msg("Lock release failed")
		}
	}()

	result, err := r.confirm.Execute(ctx, record.Reference)
	if err != nil {
		if errs.IsKind(err, errs.KindGatewayAmbiguous) {
			// Still unresolved; a later sweep retries.
			logger.Info().Msg("Payment still ambiguous at the provider")
			if r.metrics != nil {
				r.metrics.ReconciledPayments.WithLabelValues("ambiguous").Inc()
			}
			return
		}
		logger.Error().Err(err).Msg("Reconciliation failed")
		if r.metrics != nil {
			r.metrics.ReconciledPayments.WithLabelValues("error").Inc()
		}
		return
	}

	logger.Info().
		Str("status", string(result.Status)).
		Bool("replayed", result.Replayed).
		Msg("Stale payment reconciled")
	if r.metrics != nil {
		r.metrics.ReconciledPayments.WithLabelValues(string(result.Status)).Inc()
	}
}
