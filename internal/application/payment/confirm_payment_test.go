package payment

import (
	"context"
	"testing"
	"time"

	"github.com/rentago/payments/internal/domain/errs"
	"github.com/rentago/payments/internal/domain/outbox"
	domain "github.com/rentago/payments/internal/domain/payment"
	"github.com/rentago/payments/internal/gateway"
	"github.com/rentago/payments/internal/testutil"
)

func newConfirmFixture(t *testing.T, stub *testutil.StubGateway) (*ConfirmPaymentUseCase, *testutil.MockLedgerRepository, *testutil.MockOutboxRepository) {
	t.Helper()
	ledger := testutil.NewMockLedgerRepository()
	outboxRepo := testutil.NewMockOutboxRepository()
	uc := NewConfirmPaymentUseCase(
		ledger,
		outboxRepo,
		testutil.NewMockTransactionManager(),
		gateway.NewRegistry(stub),
		time.Second,
	)
	return uc, ledger, outboxRepo
}

func TestConfirmPayment_Success(t *testing.T) {
	stub := &testutil.StubGateway{
		Result: &gateway.VerifyResult{Success: true, TransactionID: "txn-123"},
	}
	uc, ledger, outboxRepo := newConfirmFixture(t, stub)

	record := testutil.NewTestRecord(42, 7, 12500, "EUR", "ref-success")
	ledger.AddRecord(record)

	result, err := uc.Execute(context.Background(), "ref-success")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != domain.StatusConfirmed {
		t.Errorf("expected status confirmed, got %s", result.Status)
	}
	if result.Replayed {
		t.Error("first confirmation should not be a replay")
	}
	if result.ReservationID != 42 {
		t.Errorf("expected reservation id 42, got %d", result.ReservationID)
	}

	stored, err := ledger.GetByReference(context.Background(), "ref-success")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Status != domain.StatusConfirmed {
		t.Errorf("expected stored status confirmed, got %s", stored.Status)
	}
	if stored.ProviderTransactionID == nil || *stored.ProviderTransactionID != "txn-123" {
		t.Errorf("expected provider transaction id txn-123, got %v", stored.ProviderTransactionID)
	}

	entries := outboxRepo.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 outbox entry, got %d", len(entries))
	}
	if entries[0].EventType != domain.EventPaymentConfirmed {
		t.Errorf("expected event type %s, got %s", domain.EventPaymentConfirmed, entries[0].EventType)
	}
	if entries[0].AggregateID != record.ID {
		t.Errorf("expected aggregate id %s, got %s", record.ID, entries[0].AggregateID)
	}
}

func TestConfirmPayment_Decline(t *testing.T) {
	stub := &testutil.StubGateway{
		Result: &gateway.VerifyResult{Success: false, ErrorMessage: "INSTRUMENT_DECLINED"},
	}
	uc, ledger, outboxRepo := newConfirmFixture(t, stub)

	record := testutil.NewTestRecord(42, 7, 12500, "EUR", "ref-decline")
	ledger.AddRecord(record)

	result, err := uc.Execute(context.Background(), "ref-decline")
	if err != nil {
		t.Fatalf("a decline is a resolved outcome, got error: %v", err)
	}
	if result.Status != domain.StatusFailed {
		t.Errorf("expected status failed, got %s", result.Status)
	}

	stored, _ := ledger.GetByReference(context.Background(), "ref-decline")
	if stored.Status != domain.StatusFailed {
		t.Errorf("expected stored status failed, got %s", stored.Status)
	}
	if stored.LastError == nil || *stored.LastError != "INSTRUMENT_DECLINED" {
		t.Errorf("expected decline reason recorded, got %v", stored.LastError)
	}

	entries := outboxRepo.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 outbox entry, got %d", len(entries))
	}
	if entries[0].EventType != domain.EventPaymentFailed {
		t.Errorf("expected event type %s, got %s", domain.EventPaymentFailed, entries[0].EventType)
	}
}

func TestConfirmPayment_AmbiguousLeavesPending(t *testing.T) {
	stub := &testutil.StubGateway{
		VerifyErr: errs.New(errs.KindGatewayAmbiguous, "gateway timeout"),
	}
	uc, ledger, outboxRepo := newConfirmFixture(t, stub)

	record := testutil.NewTestRecord(42, 7, 12500, "EUR", "ref-ambiguous")
	ledger.AddRecord(record)

	_, err := uc.Execute(context.Background(), "ref-ambiguous")
	if !errs.IsKind(err, errs.KindGatewayAmbiguous) {
		t.Fatalf("expected gateway ambiguous error, got %v", err)
	}

	stored, _ := ledger.GetByReference(context.Background(), "ref-ambiguous")
	if stored.Status != domain.StatusPending {
		t.Errorf("ambiguous outcome must not transition the ledger, got %s", stored.Status)
	}
	if len(outboxRepo.Entries()) != 0 {
		t.Errorf("ambiguous outcome must not write outbox entries, got %d", len(outboxRepo.Entries()))
	}
}

func TestConfirmPayment_ReplayIsIdempotent(t *testing.T) {
	stub := &testutil.StubGateway{
		Result: &gateway.VerifyResult{Success: true, TransactionID: "txn-replay"},
	}
	uc, ledger, outboxRepo := newConfirmFixture(t, stub)

	record := testutil.NewTestRecord(42, 7, 12500, "EUR", "ref-replay")
	ledger.AddRecord(record)

	first, err := uc.Execute(context.Background(), "ref-replay")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := uc.Execute(context.Background(), "ref-replay")
	if err != nil {
		t.Fatalf("replay must succeed, got %v", err)
	}

	if !second.Replayed {
		t.Error("second confirmation should report as replayed")
	}
	if second.Status != first.Status {
		t.Errorf("replay must report the original outcome: got %s, want %s", second.Status, first.Status)
	}
	if stub.VerifyCalls() != 1 {
		t.Errorf("replay must not call the gateway again, got %d calls", stub.VerifyCalls())
	}
	if len(outboxRepo.Entries()) != 1 {
		t.Errorf("replay must not write additional outbox entries, got %d", len(outboxRepo.Entries()))
	}
}

func TestConfirmPayment_NotFound(t *testing.T) {
	uc, _, _ := newConfirmFixture(t, &testutil.StubGateway{})

	_, err := uc.Execute(context.Background(), "no-such-reference")
	if !errs.IsKind(err, errs.KindNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestConfirmPayment_ConcurrentWinnerObservedUnderLock(t *testing.T) {
	// The record is pending on the first read but terminal by the time
	// the row lock is acquired: a concurrent callback won the race.
	stub := &testutil.StubGateway{
		Result: &gateway.VerifyResult{Success: true, TransactionID: "txn-loser"},
	}
	uc, ledger, outboxRepo := newConfirmFixture(t, stub)

	record := testutil.NewTestRecord(42, 7, 12500, "EUR", "ref-race")
	ledger.AddRecord(record)

	pending := *record
	ledger.GetByReferenceFunc = func(ctx context.Context, reference string) (*domain.Record, error) {
		// First read sees pending; the locked read inside the
		// transaction sees the winner's confirmed row.
		ledger.GetByReferenceFunc = nil
		winner := *record
		if err := winner.MarkConfirmed("txn-winner"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ledger.AddRecord(&winner)
		copied := pending
		return &copied, nil
	}

	result, err := uc.Execute(context.Background(), "ref-race")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Replayed {
		t.Error("losing a confirmation race should resolve as a replay")
	}
	if result.Status != domain.StatusConfirmed {
		t.Errorf("expected the winner's outcome, got %s", result.Status)
	}
	if len(outboxRepo.Entries()) != 0 {
		t.Errorf("the loser must not write outbox entries, got %d", len(outboxRepo.Entries()))
	}
}

func TestConfirmPayment_TransitionConflictReplaysWinner(t *testing.T) {
	// The guarded UPDATE reports a conflict even though the locked read
	// saw pending; the use case reloads and replays the terminal state.
	stub := &testutil.StubGateway{
		Result: &gateway.VerifyResult{Success: true, TransactionID: "txn-loser"},
	}
	uc, ledger, outboxRepo := newConfirmFixture(t, stub)

	record := testutil.NewTestRecord(42, 7, 12500, "EUR", "ref-conflict")
	ledger.AddRecord(record)

	ledger.TransitionTerminalFunc = func(ctx context.Context, r *domain.Record) error {
		ledger.TransitionTerminalFunc = nil
		winner := *record
		if err := winner.MarkFailed("card expired"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ledger.AddRecord(&winner)
		return errs.New(errs.KindConflict, "payment already reached a terminal state")
	}

	result, err := uc.Execute(context.Background(), "ref-conflict")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Replayed {
		t.Error("a transition conflict should resolve as a replay")
	}
	if result.Status != domain.StatusFailed {
		t.Errorf("expected the winner's outcome, got %s", result.Status)
	}
	if len(outboxRepo.Entries()) != 0 {
		t.Errorf("the loser must not write outbox entries, got %d", len(outboxRepo.Entries()))
	}
}

func TestConfirmPayment_OutboxInsertFailurePropagates(t *testing.T) {
	stub := &testutil.StubGateway{
		Result: &gateway.VerifyResult{Success: true, TransactionID: "txn-fail"},
	}
	uc, ledger, outboxRepo := newConfirmFixture(t, stub)

	record := testutil.NewTestRecord(42, 7, 12500, "EUR", "ref-outbox-fail")
	ledger.AddRecord(record)

	outboxRepo.InsertFunc = func(ctx context.Context, _ *outbox.Entry) error {
		return errs.New(errs.KindInternal, "insert failed")
	}

	_, err := uc.Execute(context.Background(), "ref-outbox-fail")
	if err == nil {
		t.Fatal("expected the transaction to fail when the outbox insert fails")
	}
	if errs.KindOf(err) != errs.KindInternal {
		t.Errorf("expected internal error, got kind %s", errs.KindOf(err))
	}
}
