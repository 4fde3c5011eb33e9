package payment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentago/payments/internal/domain/errs"
)

// Status represents the payment status in the ledger state machine.
// Transitions are one-way: a record leaves pending exactly once and
// never leaves a terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Record is a row of the payment ledger: a single payment attempt for a
// reservation and its outcome. It is the local source of truth for
// "did we get paid".
type Record struct {
	ID                    uuid.UUID
	ReservationID         int64
	UserID                int64
	Amount                Amount
	Status                Status
	Method                string
	Reference             string
	ProviderTransactionID *string
	LastError             *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Amount represents a monetary amount in the smallest currency unit (e.g. cents).
type Amount struct {
	ValueCents int64
	Currency   string
}

// String returns a human-readable representation of the amount.
func (a Amount) String() string {
	whole := a.ValueCents / 100
	frac := a.ValueCents % 100
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%02d %s", whole, frac, a.Currency)
}

// Validate checks that the amount is valid.
func (a Amount) Validate() error {
	return validateAmount(a)
}

// NewRecord creates a pending ledger record for a payment attempt.
// The reference is the opaque provider-issued token that correlates the
// confirmation callback back to this record.
func NewRecord(reservationID, userID int64, amount Amount, method, reference string) (*Record, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if reservationID <= 0 {
		return nil, errs.New(errs.KindValidation, "reservation id must be positive")
	}
	if userID <= 0 {
		return nil, errs.New(errs.KindValidation, "user id must be positive")
	}
	if method == "" {
		return nil, errs.New(errs.KindValidation, "payment method cannot be empty")
	}
	if reference == "" {
		return nil, errs.New(errs.KindValidation, "provider reference cannot be empty")
	}

	now := time.Now()
	return &Record{
		ID:            uuid.New(),
		ReservationID: reservationID,
		UserID:        userID,
		Amount:        amount,
		Status:        StatusPending,
		Method:        method,
		Reference:     reference,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// CanTransitionTo checks if the record can transition to the given status.
func (r *Record) CanTransitionTo(newStatus Status) bool {
	if r.Status != StatusPending {
		return false
	}
	return newStatus == StatusConfirmed || newStatus == StatusFailed
}

// TransitionTo moves the record to a terminal status.
func (r *Record) TransitionTo(newStatus Status) error {
	if !r.CanTransitionTo(newStatus) {
		return errs.Newf(errs.KindConflict,
			"cannot transition payment from %s to %s", r.Status, newStatus)
	}
	r.Status = newStatus
	r.UpdatedAt = time.Now()
	return nil
}

// MarkConfirmed transitions the record to confirmed and attaches the
// provider transaction id.
func (r *Record) MarkConfirmed(providerTxID string) error {
	if err := r.TransitionTo(StatusConfirmed); err != nil {
		return err
	}
	r.ProviderTransactionID = &providerTxID
	return nil
}

// MarkFailed transitions the record to failed with the decline reason.
func (r *Record) MarkFailed(reason string) error {
	if err := r.TransitionTo(StatusFailed); err != nil {
		return err
	}
	r.LastError = &reason
	return nil
}

// IsTerminal checks if the record reached a terminal state.
func (r *Record) IsTerminal() bool {
	return r.Status == StatusConfirmed || r.Status == StatusFailed
}

// Outbox event types emitted on terminal transitions.
const (
	EventPaymentConfirmed = "payment.confirmed"
	EventPaymentFailed    = "payment.failed"
)

// EventType returns the outbox event type describing the record's
// terminal status, or "" while the record is still pending.
func (r *Record) EventType() string {
	switch r.Status {
	case StatusConfirmed:
		return EventPaymentConfirmed
	case StatusFailed:
		return EventPaymentFailed
	default:
		return ""
	}
}

// EventPayload builds the self-contained event body for the record's
// current state. Consumers never re-query the ledger.
func (r *Record) EventPayload() map[string]any {
	return map[string]any{
		"payment_id":     r.ID.String(),
		"reservation_id": r.ReservationID,
		"user_id":        r.UserID,
		"amount_cents":   r.Amount.ValueCents,
		"currency":       r.Amount.Currency,
		"status":         string(r.Status),
	}
}

func validateAmount(amount Amount) error {
	if amount.ValueCents <= 0 {
		return errs.New(errs.KindValidation, "amount must be greater than 0")
	}
	if amount.Currency == "" {
		return errs.New(errs.KindValidation, "currency cannot be empty")
	}
	if len(amount.Currency) != 3 {
		return errs.New(errs.KindValidation, "currency must be a 3-letter ISO code")
	}
	return nil
}
