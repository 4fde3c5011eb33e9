package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Entry is an append-only record of a domain event that must reach the
// message bus at least once. It is written in the same transaction as
// the ledger mutation it describes and never deleted; the dispatcher is
// the only writer of DeliveredAt.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       map[string]any
	Attempts      int
	CreatedAt     time.Time
	DeliveredAt   *time.Time
}

// NewEntry creates an undelivered outbox entry.
func NewEntry(aggregateType string, aggregateID uuid.UUID, eventType string, payload map[string]any) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     time.Now(),
	}
}

// Delivered reports whether the entry has been published to the bus.
func (e *Entry) Delivered() bool {
	return e.DeliveredAt != nil
}
