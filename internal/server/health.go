package server

import (
	"net/http"
	"time"

	"github.com/pnragg/service/internal/circuitbreaker"
)

// Pre-allocated response bodies and header value slice for the probe
// endpoints. okBody avoids a []byte("ok") heap escape per call; plainCT
// avoids the []string{v} alloc from Header.Set (see booking.go:jsonCT).
var (
	okBody       = []byte("ok")
	notReadyBody = []byte("not ready")
	plainCT      = []string{"text/plain"}
)

// handleHealthz is the bare liveness probe; /health carries the full report.
func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header()["Content-Type"] = plainCT
	w.WriteHeader(http.StatusOK)
	w.Write(okBody)
}

// handleReadyz reports readiness by pinging the document store.
func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.ReadyCheck != nil {
		if err := s.deps.ReadyCheck(r.Context()); err != nil {
			w.Header()["Content-Type"] = plainCT
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write(notReadyBody)
			return
		}
	}
	w.Header()["Content-Type"] = plainCT
	w.WriteHeader(http.StatusOK)
	w.Write(okBody)
}

// healthResponse is the /health body: overall liveness plus per-breaker state.
type healthResponse struct {
	Status          string            `json:"status"` // UP or DOWN
	CircuitBreakers map[string]string `json:"circuitBreakers"`
	WSSessions      *int              `json:"wsSessions,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
}

// breakerStateLabel is the client-facing state name: CLOSED, OPEN, HALF_OPEN.
func breakerStateLabel(s circuitbreaker.State) string {
	switch s {
	case circuitbreaker.StateOpen:
		return "OPEN"
	case circuitbreaker.StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// handleHealth reports overall liveness and the state of every registered
// circuit breaker. Liveness degrades to DOWN (503) only when the document
// store is unreachable; an OPEN breaker alone keeps the service UP, since
// degraded responses are still served.
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:          "UP",
		CircuitBreakers: make(map[string]string),
		Timestamp:       time.Now(),
	}
	for name, b := range s.deps.Breakers.All() {
		resp.CircuitBreakers[name] = breakerStateLabel(b.State())
	}
	if s.deps.Sessions != nil {
		n := s.deps.Sessions.SessionCount()
		resp.WSSessions = &n
	}

	status := http.StatusOK
	if s.deps.ReadyCheck != nil {
		if err := s.deps.ReadyCheck(r.Context()); err != nil {
			resp.Status = "DOWN"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

// breakerReport is one dependency's entry in the /circuitbreakers body.
type breakerReport struct {
	State             string  `json:"state"`
	BufferedCalls     int     `json:"bufferedCalls"`
	FailedCalls       int     `json:"failedCalls"`
	SuccessfulCalls   int     `json:"successfulCalls"`
	NotPermittedCalls int64   `json:"notPermittedCalls"`
	FailureRate       float64 `json:"failureRate"`
	SlowCallRate      float64 `json:"slowCallRate"`
}

// handleCircuitBreakers reports per-breaker metrics over each breaker's
// active window.
func (s *server) handleCircuitBreakers(w http.ResponseWriter, _ *http.Request) {
	report := make(map[string]breakerReport)
	for name, b := range s.deps.Breakers.All() {
		snap := b.Metrics()
		report[name] = breakerReport{
			State:             breakerStateLabel(b.State()),
			BufferedCalls:     snap.BufferedCalls,
			FailedCalls:       snap.FailedCalls,
			SuccessfulCalls:   snap.SuccessfulCalls,
			NotPermittedCalls: snap.NotPermittedCalls,
			FailureRate:       snap.FailureRate,
			SlowCallRate:      snap.SlowCallRate,
		}
	}
	writeJSON(w, http.StatusOK, report)
}
