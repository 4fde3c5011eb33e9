package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for ledger persistence.
type Repository interface {
	// Create inserts a new pending record.
	Create(ctx context.Context, record *Record) error

	// GetByID retrieves a record by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)

	// GetByReference retrieves a record by its provider reference.
	GetByReference(ctx context.Context, reference string) (*Record, error)

	// GetActiveByReservation retrieves the reservation's pending or
	// confirmed record, if any. Failed records do not count as active.
	GetActiveByReservation(ctx context.Context, reservationID int64) (*Record, error)

	// GetByReferenceForUpdate retrieves a record by reference taking a
	// row lock. Must be called inside a transaction; concurrent
	// confirmations of the same reference serialize on this lock.
	GetByReferenceForUpdate(ctx context.Context, reference string) (*Record, error)

	// TransitionTerminal applies a terminal transition to a pending
	// record. Returns a conflict error if the record is no longer
	// pending, so exactly one of two concurrent confirmations wins.
	TransitionTerminal(ctx context.Context, record *Record) error

	// ListStalePending returns pending records created before the given
	// cutoff, for gateway reconciliation.
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*Record, error)
}
