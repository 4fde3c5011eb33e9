package outbox

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Insert creates a new outbox entry. Must be called inside the same
	// transaction as the ledger mutation the entry describes.
	Insert(ctx context.Context, entry *Entry) error

	// GetUndelivered returns undelivered entries up to the given limit,
	// oldest first. Rows are locked with skip-locked semantics so
	// concurrent dispatcher instances never select the same batch.
	GetUndelivered(ctx context.Context, limit int) ([]*Entry, error)

	// MarkDelivered sets DeliveredAt on a successfully published entry
	// and bumps the attempt counter.
	MarkDelivered(ctx context.Context, id uuid.UUID) error

	// RecordAttempt increments the attempt counter on a failed publish,
	// leaving the entry undelivered for the next cycle.
	RecordAttempt(ctx context.Context, id uuid.UUID) error
}
