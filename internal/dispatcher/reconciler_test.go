package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apppayment "github.com/rentago/payments/internal/application/payment"
	"github.com/rentago/payments/internal/domain/errs"
	"github.com/rentago/payments/internal/domain/payment"
	"github.com/rentago/payments/internal/infrastructure/config"
	"github.com/rentago/payments/internal/testutil"
)

type mockConfirmService struct {
	mu         sync.Mutex
	references []string
	results    map[string]*apppayment.ConfirmResult
	errors     map[string]error
}

func newMockConfirmService() *mockConfirmService {
	return &mockConfirmService{
		results: make(map[string]*apppayment.ConfirmResult),
		errors:  make(map[string]error),
	}
}

func (m *mockConfirmService) Execute(_ context.Context, reference string) (*apppayment.ConfirmResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.references = append(m.references, reference)
	if err, ok := m.errors[reference]; ok {
		return nil, err
	}
	if result, ok := m.results[reference]; ok {
		return result, nil
	}
	return &apppayment.ConfirmResult{Status: payment.StatusConfirmed}, nil
}

func (m *mockConfirmService) confirmed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.references))
	copy(out, m.references)
	return out
}

type mockLock struct {
	acquirable bool
}

func (l *mockLock) Acquire(context.Context) (bool, error) { return l.acquirable, nil }
func (l *mockLock) Release(context.Context) error         { return nil }

func newReconcilerFixture(confirm ConfirmService, acquirable bool) (*Reconciler, *testutil.MockLedgerRepository) {
	ledger := testutil.NewMockLedgerRepository()
	r := NewReconciler(
		zerolog.Nop(),
		ledger,
		confirm,
		func(string, time.Duration) Lock { return &mockLock{acquirable: acquirable} },
		nil,
		config.DispatcherConfig{
			ReconcileInterval:  time.Minute,
			ReconcileAfter:     15 * time.Minute,
			ReconcileBatchSize: 10,
			LockTTL:            30 * time.Second,
		},
	)
	return r, ledger
}

func addStaleRecord(ledger *testutil.MockLedgerRepository, reference string, age time.Duration) *payment.Record {
	record := testutil.NewTestRecord(42, 7, 12500, "EUR", reference)
	record.CreatedAt = time.Now().Add(-age)
	ledger.AddRecord(record)
	return record
}

func TestReconcileOnce_ReverifiesStalePending(t *testing.T) {
	confirm := newMockConfirmService()
	r, ledger := newReconcilerFixture(confirm, true)

	addStaleRecord(ledger, "ref-stale", time.Hour)

	if err := r.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	refs := confirm.confirmed()
	if len(refs) != 1 || refs[0] != "ref-stale" {
		t.Errorf("expected one confirmation for ref-stale, got %v", refs)
	}
}

func TestReconcileOnce_SkipsFreshPending(t *testing.T) {
	confirm := newMockConfirmService()
	r, ledger := newReconcilerFixture(confirm, true)

	addStaleRecord(ledger, "ref-fresh", time.Minute)

	if err := r.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(confirm.confirmed()) != 0 {
		t.Errorf("payments inside the reconcile window must not be touched")
	}
}

func TestReconcileOnce_SkipsLockedPayments(t *testing.T) {
	confirm := newMockConfirmService()
	r, ledger := newReconcilerFixture(confirm, false)

	addStaleRecord(ledger, "ref-locked", time.Hour)

	if err := r.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(confirm.confirmed()) != 0 {
		t.Errorf("payments held by another instance must be skipped")
	}
}

func TestReconcileOnce_AmbiguousStaysForNextSweep(t *testing.T) {
	confirm := newMockConfirmService()
	confirm.errors["ref-ambiguous"] = errs.New(errs.KindGatewayAmbiguous, "gateway timeout")
	r, ledger := newReconcilerFixture(confirm, true)

	record := addStaleRecord(ledger, "ref-ambiguous", time.Hour)

	if err := r.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("an ambiguous payment must not fail the sweep: %v", err)
	}

	stored, err := ledger.GetByReference(context.Background(), record.Reference)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Status != payment.StatusPending {
		t.Errorf("ambiguous payment must stay pending, got %s", stored.Status)
	}

	// The next sweep picks it up again.
	if err := r.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(confirm.confirmed()); got != 2 {
		t.Errorf("expected the payment re-verified on each sweep, got %d calls", got)
	}
}
