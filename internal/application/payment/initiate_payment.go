package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/rentago/payments/internal/domain/errs"
	"github.com/rentago/payments/internal/domain/payment"
	"github.com/rentago/payments/internal/gateway"
)

// InitiatePaymentRequest holds the input for starting a payment attempt.
type InitiatePaymentRequest struct {
	ReservationID int64
	UserID        int64
	AmountCents   int64
	Currency      string
}

// InitiatePaymentResponse holds the created ledger record and the
// provider approval redirect target.
type InitiatePaymentResponse struct {
	Payment     *payment.Record
	ApprovalURL string
}

// InitiatePaymentUseCase creates a provider order and the matching
// pending ledger record.
type InitiatePaymentUseCase struct {
	ledger    payment.Repository
	txManager TransactionManager
	gateways  *gateway.Registry
	provider  string
}

// NewInitiatePaymentUseCase creates a new InitiatePaymentUseCase.
func NewInitiatePaymentUseCase(
	ledger payment.Repository,
	txManager TransactionManager,
	gateways *gateway.Registry,
	provider string,
) *InitiatePaymentUseCase {
	return &InitiatePaymentUseCase{
		ledger:    ledger,
		txManager: txManager,
		gateways:  gateways,
		provider:  provider,
	}
}

// Execute registers an order with the provider and persists a pending
// record carrying the provider-issued reference. The unique active
// payment index rejects a second attempt while a pending or confirmed
// record exists for the reservation; re-initiation after a failed
// attempt creates a fresh record.
func (uc *InitiatePaymentUseCase) Execute(ctx context.Context, req InitiatePaymentRequest) (*InitiatePaymentResponse, error) {
	amount := payment.Amount{ValueCents: req.AmountCents, Currency: req.Currency}
	if err := amount.Validate(); err != nil {
		return nil, err
	}

	// Reject duplicates before reaching the provider, so an obviously
	// doomed initiation does not leave an orphan provider order. The
	// unique index on Create remains the authoritative guard for the
	// race between two concurrent first attempts.
	switch _, err := uc.ledger.GetActiveByReservation(ctx, req.ReservationID); {
	case err == nil:
		return nil, errs.New(errs.KindConflict, "an active payment already exists for this reservation")
	case !errs.IsKind(err, errs.KindNotFound):
		return nil, err
	}

	paymentID := uuid.New()
	order, err := uc.gateways.CreateOrder(ctx, uc.provider, gateway.OrderRequest{
		PaymentID:     paymentID.String(),
		ReservationID: req.ReservationID,
		AmountCents:   req.AmountCents,
		Currency:      req.Currency,
	})
	if err != nil {
		return nil, err
	}

	record, err := payment.NewRecord(req.ReservationID, req.UserID, amount, uc.provider, order.Reference)
	if err != nil {
		return nil, err
	}
	record.ID = paymentID

	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return uc.ledger.Create(txCtx, record)
	})
	if err != nil {
		return nil, err
	}

	return &InitiatePaymentResponse{
		Payment:     record,
		ApprovalURL: order.ApprovalURL,
	}, nil
}
