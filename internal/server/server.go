// Package server implements the HTTP transport layer for the booking
// aggregation service: the /booking and /customer lookup endpoints, the
// /health and /circuitbreakers observability surface, and the /ws/pnr
// streaming mount.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"go.opentelemetry.io/otel/trace"

	"github.com/pnragg/service/internal/aggregator"
	"github.com/pnragg/service/internal/circuitbreaker"
	"github.com/pnragg/service/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// SessionCounter reports the number of connected streaming sessions.
type SessionCounter interface {
	SessionCount() int
}

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Aggregator     *aggregator.Aggregator
	Breakers       *circuitbreaker.Registry
	Bridge         http.Handler       // nil = no /ws/pnr endpoint (for tests)
	Sessions       SessionCounter     // nil = session count omitted from /health
	ReadyCheck     ReadyChecker       // nil = always ready (for tests)
	Metrics        *telemetry.Metrics // nil = no Prometheus metrics
	MetricsHandler http.Handler       // nil = no /metrics endpoint
	Tracer         trace.Tracer       // nil = no distributed tracing
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware
	r.Use(s.securityHeaders)
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}
	if deps.Tracer != nil {
		r.Use(tracingMiddleware(deps.Tracer))
	}

	// Booking API
	r.Get("/booking/{pnr}", s.handleBooking)
	r.Get("/customer/{customerId}", s.handleCustomer)

	// Streaming
	if deps.Bridge != nil {
		r.Handle("/ws/pnr", deps.Bridge)
	}

	// Observability
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/health", s.handleHealth)
	r.Get("/circuitbreakers", s.handleCircuitBreakers)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	return r
}

type server struct {
	deps Deps
}
