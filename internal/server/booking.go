package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pnragg/service/internal/pnragg"
)

// Path-parameter patterns. Requests failing these never reach the aggregator.
var (
	pnrPattern      = regexp.MustCompile(`^[A-Z0-9]{6}$`)
	customerPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,20}$`)
)

// apiError is the uniform error body: {error, message, timestamp}, with
// circuitBreakerState added on 503s.
type apiError struct {
	Error               string `json:"error"`
	Message             string `json:"message"`
	Timestamp           string `json:"timestamp"`
	CircuitBreakerState string `json:"circuitBreakerState,omitempty"`
}

// customerResponse is the /customer/{customerId} success body.
type customerResponse struct {
	CustomerID string                   `json:"customerId"`
	Bookings   []pnragg.BookingResponse `json:"bookings"`
	Count      int                      `json:"count"`
	Timestamp  time.Time                `json:"timestamp"`
}

func (s *server) handleBooking(w http.ResponseWriter, r *http.Request) {
	pnr := chi.URLParam(r, "pnr")
	if !pnrPattern.MatchString(pnr) {
		writeError(w, http.StatusBadRequest, "pnr must match ^[A-Z0-9]{6}$")
		return
	}

	start := time.Now()
	resp, err := s.deps.Aggregator.Aggregate(r.Context(), pnr)
	if err != nil {
		s.countAggregation("", aggregationOutcome(err))
		s.writeAggregateError(w, r, err)
		return
	}

	if m := s.deps.Metrics; m != nil {
		m.AggregationDuration.Observe(time.Since(start).Seconds())
	}
	s.countAggregation(string(resp.Status), "ok")
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleCustomer(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerId")
	if !customerPattern.MatchString(customerID) {
		writeError(w, http.StatusBadRequest, "customerId must match ^[A-Za-z0-9]{1,20}$")
		return
	}

	bookings, err := s.deps.Aggregator.GetBookingsByCustomerID(r.Context(), customerID)
	if err != nil {
		s.writeAggregateError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, customerResponse{
		CustomerID: customerID,
		Bookings:   bookings,
		Count:      len(bookings),
		Timestamp:  time.Now(),
	})
}

// writeAggregateError maps the aggregator's error kinds to HTTP statuses:
// PNRNotFound 404, SourceUnavailable 503 (with the trip breaker's state in
// the body), everything else 500. Messages stay human-readable and free of
// stack traces; the full error is logged server-side.
func (s *server) writeAggregateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pnragg.ErrPNRNotFound):
		writeError(w, http.StatusNotFound, "no booking found for the requested PNR")
	case errors.Is(err, pnragg.ErrSourceUnavailable):
		body := errorBody(http.StatusServiceUnavailable, "booking sources are temporarily unavailable")
		if b := s.deps.Breakers.Get(pnragg.BreakerTripService); b != nil {
			body.CircuitBreakerState = breakerStateLabel(b.State())
		}
		writeJSON(w, http.StatusServiceUnavailable, body)
	default:
		slog.LogAttrs(r.Context(), slog.LevelError, "aggregation failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *server) countAggregation(status, outcome string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.AggregationsTotal.WithLabelValues(status, outcome).Inc()
	}
}

func aggregationOutcome(err error) string {
	switch {
	case errors.Is(err, pnragg.ErrPNRNotFound):
		return "pnr_not_found"
	case errors.Is(err, pnragg.ErrSourceUnavailable):
		return "source_unavailable"
	default:
		return "error"
	}
}

func errorBody(status int, msg string) apiError {
	return apiError{
		Error:     http.StatusText(status),
		Message:   msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody(status, msg))
}

// jsonCT is a pre-allocated header value slice. Direct map assignment
// (w.Header()["Content-Type"] = jsonCT) avoids the []string{v} alloc
// that Header.Set creates on every call. Saves 1 alloc/req.
var jsonCT = []string{"application/json"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		return
	}
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	w.Write(data)
}
