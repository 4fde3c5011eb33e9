package outbox

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry(t *testing.T) {
	aggregateID := uuid.New()
	payload := map[string]any{
		"reservation_id": int64(42),
		"user_id":        int64(7),
		"amount_cents":   int64(10000),
		"currency":       "EUR",
		"status":         "confirmed",
	}

	entry := NewEntry("payment", aggregateID, "payment.confirmed", payload)

	require.NotNil(t, entry)
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, "payment", entry.AggregateType)
	assert.Equal(t, aggregateID, entry.AggregateID)
	assert.Equal(t, "payment.confirmed", entry.EventType)
	assert.Equal(t, payload, entry.Payload)
	assert.Equal(t, 0, entry.Attempts)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.Nil(t, entry.DeliveredAt)
	assert.False(t, entry.Delivered())
}

func TestNewEntry_EmptyPayload(t *testing.T) {
	entry := NewEntry("payment", uuid.New(), "payment.failed", nil)

	require.NotNil(t, entry)
	assert.Nil(t, entry.Payload)
	assert.False(t, entry.Delivered())
}
