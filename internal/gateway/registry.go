package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/rentago/payments/internal/domain/errs"
	"github.com/rentago/payments/internal/infrastructure/observability"
	"github.com/sony/gobreaker/v2"
)

// Registry holds the configured gateways, each behind a circuit breaker
// guarding the verification path.
type Registry struct {
	gateways map[string]Gateway
	breakers map[string]*gobreaker.CircuitBreaker[*VerifyResult]
	metrics  *observability.Metrics
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{
		gateways: make(map[string]Gateway),
		breakers: make(map[string]*gobreaker.CircuitBreaker[*VerifyResult]),
	}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

// WithMetrics enables per-provider call counters and latency histograms.
func (r *Registry) WithMetrics(m *observability.Metrics) *Registry {
	r.metrics = m
	return r
}

func (r *Registry) Register(g Gateway) {
	r.gateways[g.Name()] = g
	r.breakers[g.Name()] = gobreaker.NewCircuitBreaker[*VerifyResult](gobreaker.Settings{
		Name:        g.Name(),
		MaxRequests: 10,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// Declines are successful provider conversations; only
			// ambiguous transport faults count against the breaker.
			return !errs.IsKind(err, errs.KindGatewayAmbiguous)
		},
	})
}

func (r *Registry) Get(name string) (Gateway, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, "unknown payment gateway %q", name)
	}
	return g, nil
}

// Verify runs a gateway verification through the provider's circuit
// breaker. An open breaker reports as ambiguous so the ledger stays
// pending until the provider recovers.
func (r *Registry) Verify(ctx context.Context, name, reference string) (*VerifyResult, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, "unknown payment gateway %q", name)
	}
	breaker := r.breakers[name]

	start := time.Now()
	result, err := breaker.Execute(func() (*VerifyResult, error) {
		return g.Verify(ctx, reference)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = errs.Wrap(errs.KindGatewayAmbiguous, name+" circuit breaker open", err)
		}
		r.observe(name, "verify", start, verifyOutcome(nil, err))
		return nil, err
	}
	r.observe(name, "verify", start, verifyOutcome(result, nil))
	return result, nil
}

// CreateOrder creates a provider order on the named gateway.
func (r *Registry) CreateOrder(ctx context.Context, name string, req OrderRequest) (*Order, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, "unknown payment gateway %q", name)
	}

	start := time.Now()
	order, err := g.CreateOrder(ctx, req)
	if err != nil {
		r.observe(name, "create_order", start, "error")
		return nil, err
	}
	r.observe(name, "create_order", start, "ok")
	return order, nil
}

func (r *Registry) observe(name, operation string, start time.Time, result string) {
	if r.metrics == nil {
		return
	}
	r.metrics.GatewayCalls.WithLabelValues(name, operation, result).Inc()
	r.metrics.GatewayDuration.WithLabelValues(name, operation).Observe(time.Since(start).Seconds())
}

func verifyOutcome(result *VerifyResult, err error) string {
	switch {
	case err != nil && errs.IsKind(err, errs.KindGatewayAmbiguous):
		return "ambiguous"
	case err != nil:
		return "error"
	case result != nil && !result.Success:
		return "declined"
	default:
		return "ok"
	}
}
