package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rentago/payments/internal/domain/errs"
)

// MockGateway simulates a payment provider for local development and
// tests. Decline and timeout rates are configurable.
type MockGateway struct {
	name        string
	approvalURL string
	declineRate float64 // 0.0 to 1.0
	timeoutRate float64 // 0.0 to 1.0
	latency     time.Duration
}

type MockGatewayOption func(*MockGateway)

func WithDeclineRate(rate float64) MockGatewayOption {
	return func(g *MockGateway) { g.declineRate = rate }
}

func WithTimeoutRate(rate float64) MockGatewayOption {
	return func(g *MockGateway) { g.timeoutRate = rate }
}

func WithLatency(d time.Duration) MockGatewayOption {
	return func(g *MockGateway) { g.latency = d }
}

func WithApprovalURL(u string) MockGatewayOption {
	return func(g *MockGateway) { g.approvalURL = u }
}

func NewMockGateway(name string, opts ...MockGatewayOption) *MockGateway {
	g := &MockGateway{
		name:        name,
		approvalURL: "https://sandbox.example.com/approve",
		latency:     100 * time.Millisecond,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *MockGateway) Name() string { return g.name }

func (g *MockGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if err := g.sleep(ctx); err != nil {
		return nil, err
	}

	if rand.Float64() < g.timeoutRate {
		return nil, errs.New(errs.KindGatewayAmbiguous, g.name+": simulated order timeout")
	}

	ref := fmt.Sprintf("%s-order-%s", g.name, uuid.New().String()[:8])
	return &Order{
		Reference:   ref,
		ApprovalURL: fmt.Sprintf("%s?token=%s", g.approvalURL, ref),
	}, nil
}

func (g *MockGateway) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	if err := g.sleep(ctx); err != nil {
		return nil, err
	}

	if rand.Float64() < g.timeoutRate {
		return nil, errs.New(errs.KindGatewayAmbiguous, g.name+": simulated verify timeout")
	}

	if rand.Float64() < g.declineRate {
		return &VerifyResult{
			Success:      false,
			ErrorMessage: fmt.Sprintf("%s: simulated decline for %s", g.name, reference),
		}, nil
	}

	return &VerifyResult{
		Success:       true,
		TransactionID: fmt.Sprintf("%s-txn-%s", g.name, uuid.New().String()[:8]),
	}, nil
}

func (g *MockGateway) sleep(ctx context.Context) error {
	select {
	case <-time.After(g.latency):
		return nil
	case <-ctx.Done():
		return errs.Wrap(errs.KindGatewayAmbiguous, g.name+": call cancelled", ctx.Err())
	}
}
