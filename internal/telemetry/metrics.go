// Package telemetry provides observability primitives for the aggregation
// service: Prometheus metrics and OpenTelemetry tracing.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pnragg/service/internal/circuitbreaker"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  prometheus.Gauge

	AggregationsTotal   *prometheus.CounterVec // labels: status (SUCCESS/DEGRADED, empty on error), outcome (ok/pnr_not_found/source_unavailable/error)
	AggregationDuration prometheus.Histogram

	CircuitBreakerState        *prometheus.GaugeVec // labels: breaker; 0=closed 1=open 2=half_open
	CircuitBreakerFailureRate  *prometheus.GaugeVec // labels: breaker
	CircuitBreakerNotPermitted *prometheus.GaugeVec // labels: breaker; cumulative lifetime count reported by the breaker

	EventBusDropped prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pnragg",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pnragg",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pnragg",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		AggregationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pnragg",
			Name:      "aggregations_total",
			Help:      "Total aggregate() calls by resulting status/outcome.",
		}, []string{"status", "outcome"}),

		AggregationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pnragg",
			Name:      "aggregation_duration_seconds",
			Help:      "aggregate() wall-clock duration in seconds.",
		}),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pnragg",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per dependency (0=closed, 1=open, 2=half_open).",
		}, []string{"breaker"}),

		CircuitBreakerFailureRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pnragg",
			Name:      "circuit_breaker_failure_rate",
			Help:      "Circuit breaker failure rate percentage over its active window.",
		}, []string{"breaker"}),

		CircuitBreakerNotPermitted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pnragg",
			Name:      "circuit_breaker_not_permitted_total",
			Help:      "Cumulative calls denied permission by a circuit breaker.",
		}, []string{"breaker"}),

		EventBusDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pnragg",
			Name:      "eventbus_dropped_total",
			Help:      "Total events dropped because a subscriber's queue was full.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.AggregationsTotal,
		m.AggregationDuration,
		m.CircuitBreakerState,
		m.CircuitBreakerFailureRate,
		m.CircuitBreakerNotPermitted,
		m.EventBusDropped,
	)

	return m
}

// ObserveCircuitBreakers periodically snapshots every breaker in reg and
// updates the gauges above, until ctx is cancelled. Run as a background
// goroutine from cmd/pnragg.
func (m *Metrics) ObserveCircuitBreakers(ctx context.Context, reg *circuitbreaker.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, b := range reg.All() {
				snap := b.Metrics()
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(b.State()))
				m.CircuitBreakerFailureRate.WithLabelValues(name).Set(snap.FailureRate)
				m.CircuitBreakerNotPermitted.WithLabelValues(name).Set(float64(snap.NotPermittedCalls))
			}
		}
	}
}
