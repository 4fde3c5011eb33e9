package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/rentago/payments/internal/domain/payment"
)

// GetPaymentUseCase looks up a ledger record by id.
type GetPaymentUseCase struct {
	ledger payment.Repository
}

// NewGetPaymentUseCase creates a new GetPaymentUseCase.
func NewGetPaymentUseCase(ledger payment.Repository) *GetPaymentUseCase {
	return &GetPaymentUseCase{ledger: ledger}
}

func (uc *GetPaymentUseCase) Execute(ctx context.Context, id uuid.UUID) (*payment.Record, error) {
	return uc.ledger.GetByID(ctx, id)
}
