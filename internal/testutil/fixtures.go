package testutil

import (
	"github.com/rentago/payments/internal/domain/payment"
)

// NewTestRecord creates a pending ledger record for tests.
func NewTestRecord(reservationID, userID, amountCents int64, currency, reference string) *payment.Record {
	r, err := payment.NewRecord(reservationID, userID,
		payment.Amount{ValueCents: amountCents, Currency: currency},
		"paypal", reference)
	if err != nil {
		panic(err)
	}
	return r
}
