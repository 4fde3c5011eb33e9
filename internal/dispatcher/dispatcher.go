package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/rentago/payments/internal/domain/outbox"
	"github.com/rentago/payments/internal/infrastructure/config"
	"github.com/rentago/payments/internal/infrastructure/observability"
	"github.com/rentago/payments/pkg/retry"
)

// EventPublisher sends a serialized event to the message bus. The key
// carries the aggregate id so the bus preserves per-aggregate ordering.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
}

// TransactionManager runs a function inside a database transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// envelope is the wire format for a published outbox entry. It is
// self-contained: consumers never query the ledger.
type envelope struct {
	ID            string         `json:"id"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   string         `json:"aggregate_id"`
	EventType     string         `json:"event_type"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Payload       map[string]any `json:"payload"`
}

// Dispatcher drains the outbox: it polls for undelivered entries,
// publishes them to the bus and marks them delivered. Entries whose
// publish fails stay undelivered and are retried on a later cycle, so
// delivery is at-least-once and an entry is never dropped.
type Dispatcher struct {
	logger     zerolog.Logger
	outboxRepo outbox.Repository
	txManager  TransactionManager
	publisher  EventPublisher
	metrics    *observability.Metrics
	cfg        config.DispatcherConfig
	retryCfg   retry.Config
}

func New(
	logger zerolog.Logger,
	outboxRepo outbox.Repository,
	txManager TransactionManager,
	publisher EventPublisher,
	metrics *observability.Metrics,
	cfg config.DispatcherConfig,
) *Dispatcher {
	return &Dispatcher{
		logger:     logger.With().Str("component", "outbox_dispatcher").Logger(),
		outboxRepo: outboxRepo,
		txManager:  txManager,
		publisher:  publisher,
		metrics:    metrics,
		cfg:        cfg,
		retryCfg: retry.Config{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		},
	}
}

// Run polls the outbox until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info().
		Dur("poll_interval", d.cfg.PollInterval).
		Int("batch_size", d.cfg.BatchSize).
		Msg("Outbox dispatcher started")

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("Outbox dispatcher stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := d.DispatchOnce(ctx); err != nil {
				d.logger.Error().Err(err).Msg("Dispatch cycle failed")
			}
		}
	}
}

// DispatchOnce runs a single dispatch cycle. The batch is read with a
// skip-locked claim inside a transaction, so concurrent dispatcher
// instances never pick the same entries; delivery marks commit with the
// claim.
func (d *Dispatcher) DispatchOnce(ctx context.Context) error {
	start := time.Now()
	var published, failed int

	err := d.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		entries, err := d.outboxRepo.GetUndelivered(txCtx, d.cfg.BatchSize)
		if err != nil {
			return err
		}
		if d.metrics != nil {
			d.metrics.OutboxUndelivered.Set(float64(len(entries)))
		}

		for _, entry := range entries {
			if err := d.publishEntry(txCtx, entry); err != nil {
				failed++
				d.logger.Warn().Err(err).
					Str("entry_id", entry.ID.String()).
					Str("event_type", entry.EventType).
					Int("attempts", entry.Attempts+1).
					Msg("Publish failed, entry stays undelivered")
				if d.metrics != nil {
					d.metrics.OutboxPublishFailures.Inc()
				}
				// A failed attempt bump must not abort the cycle: the
				// other entries' delivery marks still have to commit.
				if err := d.outboxRepo.RecordAttempt(txCtx, entry.ID); err != nil {
					d.logger.Error().Err(err).
						Str("entry_id", entry.ID.String()).
						Msg("Failed to record attempt")
				}
				continue
			}

			if err := d.outboxRepo.MarkDelivered(txCtx, entry.ID); err != nil {
				// The entry was published but stays undelivered; a later
				// cycle re-publishes it, which at-least-once delivery
				// tolerates.
				failed++
				d.logger.Error().Err(err).
					Str("entry_id", entry.ID.String()).
					Msg("Failed to mark entry delivered")
				continue
			}
			published++
			if d.metrics != nil {
				d.metrics.OutboxPublished.Inc()
			}
		}
		return nil
	})

	if d.metrics != nil {
		d.metrics.DispatchCycleDuration.Observe(time.Since(start).Seconds())
	}
	if published > 0 || failed > 0 {
		d.logger.Info().
			Int("published", published).
			Int("failed", failed).
			Dur("took", time.Since(start)).
			Msg("Dispatch cycle finished")
	}
	return err
}

func (d *Dispatcher) publishEntry(ctx context.Context, entry *outbox.Entry) error {
	value, err := json.Marshal(envelope{
		ID:            entry.ID.String(),
		AggregateType: entry.AggregateType,
		AggregateID:   entry.AggregateID.String(),
		EventType:     entry.EventType,
		OccurredAt:    entry.CreatedAt,
		Payload:       entry.Payload,
	})
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
	defer cancel()

	headers := map[string]string{
		"event_type":     entry.EventType,
		"aggregate_type": entry.AggregateType,
	}
	return retry.Do(publishCtx, d.retryCfg, func() error {
		return d.publisher.Publish(publishCtx, entry.AggregateID.String(), value, headers)
	})
}
