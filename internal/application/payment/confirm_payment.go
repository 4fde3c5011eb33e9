package payment

import (
	"context"
	"time"

	"github.com/rentago/payments/internal/domain/errs"
	"github.com/rentago/payments/internal/domain/outbox"
	"github.com/rentago/payments/internal/domain/payment"
	"github.com/rentago/payments/internal/gateway"
)

// ConfirmResult is the outcome of a confirmation callback.
type ConfirmResult struct {
	PaymentID     string
	ReservationID int64
	Status        payment.Status
	// Replayed is true when the record was already terminal and no new
	// transition or outbox entry was written.
	Replayed bool
}

// ConfirmPaymentUseCase resolves a provider callback into a terminal
// ledger transition plus exactly one outbox entry, or an idempotent
// replay of an earlier outcome.
type ConfirmPaymentUseCase struct {
	ledger        payment.Repository
	outboxRepo    outbox.Repository
	txManager     TransactionManager
	gateways      *gateway.Registry
	verifyTimeout time.Duration
}

// NewConfirmPaymentUseCase creates a new ConfirmPaymentUseCase.
func NewConfirmPaymentUseCase(
	ledger payment.Repository,
	outboxRepo outbox.Repository,
	txManager TransactionManager,
	gateways *gateway.Registry,
	verifyTimeout time.Duration,
) *ConfirmPaymentUseCase {
	if verifyTimeout <= 0 {
		verifyTimeout = 5 * time.Second
	}
	return &ConfirmPaymentUseCase{
		ledger:        ledger,
		outboxRepo:    outboxRepo,
		txManager:     txManager,
		gateways:      gateways,
		verifyTimeout: verifyTimeout,
	}
}

// Execute processes a confirmation callback for the given provider
// reference.
//
// The gateway verification runs before the transaction is opened: an
// ambiguous (transport-level) failure aborts with no state change so a
// payment that may have succeeded provider-side is never marked failed.
// The row lock taken inside the transaction serializes concurrent
// callbacks for the same reference; the loser observes the terminal
// state and replays the winner's outcome.
func (uc *ConfirmPaymentUseCase) Execute(ctx context.Context, reference string) (*ConfirmResult, error) {
	record, err := uc.ledger.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	// The provider may invoke the callback more than once.
	if record.IsTerminal() {
		return replayResult(record), nil
	}

	verifyCtx, cancel := context.WithTimeout(ctx, uc.verifyTimeout)
	defer cancel()

	result, err := uc.gateways.Verify(verifyCtx, record.Method, reference)
	if err != nil {
		// Ambiguous or transport failure: leave the record pending for
		// the reconciler.
		return nil, err
	}

	var (
		confirmed *payment.Record
		replayed  bool
	)
	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		locked, err := uc.ledger.GetByReferenceForUpdate(txCtx, reference)
		if err != nil {
			return err
		}

		if locked.IsTerminal() {
			// A concurrent confirmation won while we were verifying.
			confirmed = locked
			replayed = true
			return nil
		}

		if result.Success {
			if err := locked.MarkConfirmed(result.TransactionID); err != nil {
				return err
			}
		} else {
			if err := locked.MarkFailed(result.ErrorMessage); err != nil {
				return err
			}
		}

		if err := uc.ledger.TransitionTerminal(txCtx, locked); err != nil {
			return err
		}

		entry := outbox.NewEntry("payment", locked.ID, locked.EventType(), locked.EventPayload())
		if err := uc.outboxRepo.Insert(txCtx, entry); err != nil {
			return err
		}

		confirmed = locked
		return nil
	})
	if err != nil {
		if errs.IsKind(err, errs.KindConflict) {
			// Lost a race after the row lock was released and retried;
			// resolve to the winner's outcome.
			return uc.replayTerminal(ctx, reference)
		}
		return nil, err
	}

	return &ConfirmResult{
		PaymentID:     confirmed.ID.String(),
		ReservationID: confirmed.ReservationID,
		Status:        confirmed.Status,
		Replayed:      replayed,
	}, nil
}

func (uc *ConfirmPaymentUseCase) replayTerminal(ctx context.Context, reference string) (*ConfirmResult, error) {
	record, err := uc.ledger.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !record.IsTerminal() {
		return nil, errs.New(errs.KindConflict, "payment transition conflict without terminal state")
	}
	return replayResult(record), nil
}

func replayResult(record *payment.Record) *ConfirmResult {
	return &ConfirmResult{
		PaymentID:     record.ID.String(),
		ReservationID: record.ReservationID,
		Status:        record.Status,
		Replayed:      true,
	}
}
