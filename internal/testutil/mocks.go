package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rentago/payments/internal/domain/errs"
	"github.com/rentago/payments/internal/domain/outbox"
	"github.com/rentago/payments/internal/domain/payment"
	"github.com/rentago/payments/internal/gateway"
)

// --- Ledger Repository Mock ---

// MockLedgerRepository is an in-memory implementation of payment.Repository.
type MockLedgerRepository struct {
	mu          sync.Mutex
	records     map[uuid.UUID]*payment.Record
	byReference map[string]*payment.Record

	CreateFunc                 func(ctx context.Context, r *payment.Record) error
	GetByReferenceFunc         func(ctx context.Context, reference string) (*payment.Record, error)
	GetActiveByReservationFunc func(ctx context.Context, reservationID int64) (*payment.Record, error)
	TransitionTerminalFunc     func(ctx context.Context, r *payment.Record) error
}

func NewMockLedgerRepository() *MockLedgerRepository {
	return &MockLedgerRepository{
		records:     make(map[uuid.UUID]*payment.Record),
		byReference: make(map[string]*payment.Record),
	}
}

// AddRecord seeds a record, bypassing invariant checks.
func (m *MockLedgerRepository) AddRecord(r *payment.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = r
	m.byReference[r.Reference] = r
}

func (m *MockLedgerRepository) Create(ctx context.Context, r *payment.Record) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.records {
		if existing.ReservationID == r.ReservationID && existing.Status != payment.StatusFailed {
			return errs.New(errs.KindConflict, "an active payment already exists for this reservation")
		}
	}
	m.records[r.ID] = r
	m.byReference[r.Reference] = r
	return nil
}

func (m *MockLedgerRepository) GetByID(_ context.Context, id uuid.UUID) (*payment.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "payment not found")
	}
	copied := *r
	return &copied, nil
}

func (m *MockLedgerRepository) GetByReference(ctx context.Context, reference string) (*payment.Record, error) {
	if m.GetByReferenceFunc != nil {
		return m.GetByReferenceFunc(ctx, reference)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byReference[reference]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "payment not found")
	}
	copied := *r
	return &copied, nil
}

func (m *MockLedgerRepository) GetActiveByReservation(ctx context.Context, reservationID int64) (*payment.Record, error) {
	if m.GetActiveByReservationFunc != nil {
		return m.GetActiveByReservationFunc(ctx, reservationID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ReservationID == reservationID && r.Status != payment.StatusFailed {
			copied := *r
			return &copied, nil
		}
	}
	return nil, errs.New(errs.KindNotFound, "payment not found")
}

func (m *MockLedgerRepository) GetByReferenceForUpdate(ctx context.Context, reference string) (*payment.Record, error) {
	return m.GetByReference(ctx, reference)
}

func (m *MockLedgerRepository) TransitionTerminal(ctx context.Context, r *payment.Record) error {
	if m.TransitionTerminalFunc != nil {
		return m.TransitionTerminalFunc(ctx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.records[r.ID]
	if !ok {
		return errs.New(errs.KindNotFound, "payment not found")
	}
	if stored.Status != payment.StatusPending {
		return errs.New(errs.KindConflict, "payment already reached a terminal state")
	}
	copied := *r
	m.records[r.ID] = &copied
	m.byReference[r.Reference] = &copied
	return nil
}

func (m *MockLedgerRepository) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]*payment.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*payment.Record
	for _, r := range m.records {
		if r.Status == payment.StatusPending && r.CreatedAt.Before(olderThan) {
			copied := *r
			out = append(out, &copied)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is an in-memory implementation of outbox.Repository.
type MockOutboxRepository struct {
	mu      sync.Mutex
	entries []*outbox.Entry

	InsertFunc        func(ctx context.Context, entry *outbox.Entry) error
	MarkDeliveredFunc func(ctx context.Context, id uuid.UUID) error
	RecordAttemptFunc func(ctx context.Context, id uuid.UUID) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockOutboxRepository) GetUndelivered(_ context.Context, limit int) ([]*outbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*outbox.Entry
	for _, e := range m.entries {
		if e.DeliveredAt == nil {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	if m.MarkDeliveredFunc != nil {
		return m.MarkDeliveredFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id && e.DeliveredAt == nil {
			now := time.Now()
			e.DeliveredAt = &now
			e.Attempts++
		}
	}
	return nil
}

func (m *MockOutboxRepository) RecordAttempt(ctx context.Context, id uuid.UUID) error {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.Attempts++
		}
	}
	return nil
}

// Entries returns a snapshot of all inserted entries.
func (m *MockOutboxRepository) Entries() []*outbox.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*outbox.Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// --- Transaction Manager Mock ---

// MockTransactionManager runs the function without a real transaction.
type MockTransactionManager struct {
	// Err, when set, is returned without invoking the function.
	Err error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.Err != nil {
		return m.Err
	}
	return fn(ctx)
}

// --- Gateway Stub ---

// StubGateway is a scriptable gateway.Gateway implementation.
type StubGateway struct {
	GatewayName string

	Order    *gateway.Order
	OrderErr error

	Result    *gateway.VerifyResult
	VerifyErr error

	mu          sync.Mutex
	orderCalls  int
	verifyCalls int
}

func (s *StubGateway) Name() string {
	if s.GatewayName == "" {
		return "paypal"
	}
	return s.GatewayName
}

func (s *StubGateway) CreateOrder(_ context.Context, _ gateway.OrderRequest) (*gateway.Order, error) {
	s.mu.Lock()
	s.orderCalls++
	s.mu.Unlock()
	if s.OrderErr != nil {
		return nil, s.OrderErr
	}
	if s.Order != nil {
		return s.Order, nil
	}
	return &gateway.Order{
		Reference:   "stub-order-" + uuid.New().String()[:8],
		ApprovalURL: "https://sandbox.example.com/approve",
	}, nil
}

func (s *StubGateway) Verify(_ context.Context, _ string) (*gateway.VerifyResult, error) {
	s.mu.Lock()
	s.verifyCalls++
	s.mu.Unlock()
	if s.VerifyErr != nil {
		return nil, s.VerifyErr
	}
	if s.Result != nil {
		return s.Result, nil
	}
	return &gateway.VerifyResult{Success: true, TransactionID: "stub-txn"}, nil
}

// OrderCalls returns how many times CreateOrder was invoked.
func (s *StubGateway) OrderCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderCalls
}

// VerifyCalls returns how many times Verify was invoked.
func (s *StubGateway) VerifyCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifyCalls
}
