package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Payment metrics
	PaymentsInitiated *prometheus.CounterVec
	PaymentsConfirmed *prometheus.CounterVec
	ConfirmReplays    prometheus.Counter
	GatewayCalls      *prometheus.CounterVec
	GatewayDuration   *prometheus.HistogramVec

	// Outbox metrics
	OutboxPublished       prometheus.Counter
	OutboxPublishFailures prometheus.Counter
	OutboxUndelivered     prometheus.Gauge
	DispatchCycleDuration prometheus.Histogram

	// Reconciler metrics
	ReconciledPayments *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		PaymentsInitiated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_initiated_total",
			Help:      "Payment initiations by provider and result",
		}, []string{"provider", "result"}),
		PaymentsConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_confirmed_total",
			Help:      "Terminal payment transitions by outcome",
		}, []string{"outcome"}),
		ConfirmReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_confirm_replays_total",
			Help:      "Idempotent confirmation replays of already-terminal payments",
		}),
		GatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_calls_total",
			Help:      "Gateway calls by provider, operation and result",
		}, []string{"provider", "operation", "result"}),
		GatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_call_duration_seconds",
			Help:      "Gateway call latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
		OutboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox entries successfully published to the bus",
		}),
		OutboxPublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_publish_failures_total",
			Help:      "Failed outbox publish attempts",
		}),
		OutboxUndelivered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_undelivered",
			Help:      "Undelivered outbox entries seen in the last dispatch cycle",
		}),
		DispatchCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_dispatch_cycle_duration_seconds",
			Help:      "Duration of a full outbox dispatch cycle",
			Buckets:   prometheus.DefBuckets,
		}),
		ReconciledPayments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciled_payments_total",
			Help:      "Stale pending payments resolved by the reconciler, by outcome",
		}, []string{"outcome"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.PaymentsInitiated,
		m.PaymentsConfirmed,
		m.ConfirmReplays,
		m.GatewayCalls,
		m.GatewayDuration,
		m.OutboxPublished,
		m.OutboxPublishFailures,
		m.OutboxUndelivered,
		m.DispatchCycleDuration,
		m.ReconciledPayments,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}
