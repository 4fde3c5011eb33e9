package controller

import (
	"time"

	"github.com/rentago/payments/internal/domain/payment"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (validation tags, JSON naming).
// Controllers convert these to application layer inputs before calling
// business logic.

// InitiatePaymentRequest holds the input for starting a payment.
type InitiatePaymentRequest struct {
	ReservationID int64  `json:"reservation_id" validate:"required,gt=0"`
	UserID        int64  `json:"user_id" validate:"required,gt=0"`
	AmountCents   int64  `json:"amount_cents" validate:"required,gt=0"`
	Currency      string `json:"currency" validate:"required,len=3"`
}

// --- Response DTOs ---

// InitiatePaymentResponse carries the created payment and where to send
// the customer to approve it.
type InitiatePaymentResponse struct {
	PaymentID   string `json:"payment_id"`
	Status      string `json:"status"`
	ApprovalURL string `json:"approval_url"`
}

// PaymentResponse represents a ledger record in API responses.
type PaymentResponse struct {
	ID                    string    `json:"id"`
	ReservationID         int64     `json:"reservation_id"`
	UserID                int64     `json:"user_id"`
	AmountCents           int64     `json:"amount_cents"`
	Currency              string    `json:"currency"`
	Status                string    `json:"status"`
	Method                string    `json:"method"`
	ProviderTransactionID *string   `json:"provider_transaction_id,omitempty"`
	LastError             *string   `json:"last_error,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// FromRecord converts a ledger record to an API response.
func FromRecord(r *payment.Record) *PaymentResponse {
	return &PaymentResponse{
		ID:                    r.ID.String(),
		ReservationID:         r.ReservationID,
		UserID:                r.UserID,
		AmountCents:           r.Amount.ValueCents,
		Currency:              r.Amount.Currency,
		Status:                string(r.Status),
		Method:                r.Method,
		ProviderTransactionID: r.ProviderTransactionID,
		LastError:             r.LastError,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}
