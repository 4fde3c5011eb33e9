package gateway

import (
	"context"
)

// VerifyResult is the internal representation of a provider's answer to
// a verification call. A business decline is Success=false with a
// populated ErrorMessage and a nil error; only transport-level faults
// surface as errors, and those carry the gateway_ambiguous kind.
type VerifyResult struct {
	Success       bool
	TransactionID string
	ErrorMessage  string
}

// Order is a provider-side payment order awaiting user approval.
type Order struct {
	// Reference is the provider-issued token later echoed back on the
	// confirmation callback.
	Reference   string
	ApprovalURL string
}

// OrderRequest holds the input for creating a provider order.
type OrderRequest struct {
	PaymentID     string
	ReservationID int64
	AmountCents   int64
	Currency      string
}

// Gateway wraps calls to an external payment provider. Implementations
// own no local state.
type Gateway interface {
	// Name returns the provider name.
	Name() string
	// CreateOrder registers a payment order with the provider and
	// returns the redirect target for user approval.
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	// Verify captures/verifies the transaction behind a reference.
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
}
