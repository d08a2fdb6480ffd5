package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pnragg/service/internal/aggregator"
	"github.com/pnragg/service/internal/broadcast"
	"github.com/pnragg/service/internal/circuitbreaker"
	"github.com/pnragg/service/internal/eventbus"
	"github.com/pnragg/service/internal/fallback"
	"github.com/pnragg/service/internal/fetcher"
	"github.com/pnragg/service/internal/pnragg"
	"github.com/pnragg/service/internal/testutil"
)

// newTestServer wires a real aggregator over a FakeStore behind the full
// handler stack, with the trip breaker tuned to trip after 3 calls so the
// 503 path is reachable without the default 10 seed failures.
func newTestServer(t *testing.T, store *testutil.FakeStore) (http.Handler, *circuitbreaker.Registry) {
	t.Helper()

	cfg := circuitbreaker.DefaultConfig()
	cfg.MinimumNumberOfCalls = 3
	registry := circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig(), map[string]circuitbreaker.Config{
		pnragg.BreakerTripService: cfg,
	})

	agg := newTestAggregator(t, store, registry)
	return New(Deps{Aggregator: agg, Breakers: registry}), registry
}

func newTestAggregator(t *testing.T, store *testutil.FakeStore, registry *circuitbreaker.Registry) *aggregator.Aggregator {
	t.Helper()
	fb := fallback.NewMemory(100, time.Minute)
	trips := fetcher.NewTripFetcher(store, registry.GetOrCreate(pnragg.BreakerTripService), fb, time.Minute)
	baggage := fetcher.NewBaggageFetcher(store, registry.GetOrCreate(pnragg.BreakerBaggageService), fb, time.Minute)
	tickets := fetcher.NewTicketFetcher(store, registry.GetOrCreate(pnragg.BreakerTicketService))
	return aggregator.New(trips, baggage, tickets, store, nil)
}

func seedBooking(store *testutil.FakeStore) {
	store.SeedTrip("GHTW42", &pnragg.Trip{
		BookingReference: "GHTW42",
		CabinClass:       "ECONOMY",
		Passengers: []pnragg.Passenger{
			{FirstName: "Ada", PassengerNumber: 1, CustomerID: "CUST1"},
			{FirstName: "Brian", PassengerNumber: 2},
		},
		Flights: []pnragg.Flight{{
			FlightNumber:       "XY123",
			DepartureAirport:   "AMS",
			DepartureTimestamp: "2026-09-01T08:30:00Z",
			ArrivalAirport:     "LHR",
			ArrivalTimestamp:   "2026-09-01T09:05:00Z",
		}},
	})
	store.SeedBaggage("GHTW42", &pnragg.Baggage{
		BookingReference: "GHTW42",
		Allowances: []pnragg.BaggageAllowance{
			{PassengerNumber: 1, AllowanceUnit: pnragg.AllowanceUnitKg, CheckedAllowanceValue: 32, CarryOnAllowanceValue: 10},
			{PassengerNumber: 2, AllowanceUnit: pnragg.AllowanceUnitKg, CheckedAllowanceValue: 32, CarryOnAllowanceValue: 10},
		},
	})
	store.SeedTicket("GHTW42", 2, &pnragg.Ticket{BookingReference: "GHTW42", PassengerNumber: 2, TicketURL: "https://tickets/GHTW42/2"})
}

func doGet(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBookingHappyPath(t *testing.T) {
	store := testutil.NewFakeStore()
	seedBooking(store)
	h, _ := newTestServer(t, store)

	rec := doGet(t, h, "/booking/GHTW42")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var resp pnragg.BookingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != pnragg.StatusSuccess {
		t.Errorf("status = %s, want SUCCESS", resp.Status)
	}
	if len(resp.Passengers) != 2 {
		t.Errorf("passengers = %d, want 2", len(resp.Passengers))
	}
	if len(resp.Tickets) != 1 || resp.Tickets[0].PassengerNumber != 2 {
		t.Errorf("tickets = %+v, want exactly the passenger-2 ticket", resp.Tickets)
	}
}

func TestBookingInvalidPNR(t *testing.T) {
	store := testutil.NewFakeStore()
	// A trip error would surface if the aggregator were reached; the 400
	// must short-circuit before any fetch.
	store.TripErr = errors.New("must not be called")
	h, _ := newTestServer(t, store)

	rec := doGet(t, h, "/booking/abc-12")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var body apiError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error != "Bad Request" || body.Message == "" || body.Timestamp == "" {
		t.Errorf("unexpected error body: %+v", body)
	}
}

func TestBookingUnknownPNR(t *testing.T) {
	store := testutil.NewFakeStore()
	h, registry := newTestServer(t, store)

	rec := doGet(t, h, "/booking/ZZZZ99")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var body apiError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error != "Not Found" {
		t.Errorf("error = %q, want Not Found", body.Error)
	}

	// The trip breaker must have registered an IGNORED outcome only.
	snap := registry.Get(pnragg.BreakerTripService).Metrics()
	if snap.BufferedCalls != 0 || snap.FailureRate != 0 {
		t.Errorf("breaker window disturbed by not-found: %+v", snap)
	}
}

func TestBookingSourceUnavailable(t *testing.T) {
	store := testutil.NewFakeStore()
	store.TripErr = errors.New("connection refused")
	h, registry := newTestServer(t, store)

	// Trip the breaker: MinimumNumberOfCalls=3 with 100% failures.
	for range 3 {
		doGet(t, h, "/booking/GHTW42")
	}
	if registry.Get(pnragg.BreakerTripService).State() != circuitbreaker.StateOpen {
		t.Fatal("trip breaker should be open after the failure threshold")
	}

	rec := doGet(t, h, "/booking/GHTW42")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var body apiError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.CircuitBreakerState != "OPEN" {
		t.Errorf("circuitBreakerState = %q, want OPEN", body.CircuitBreakerState)
	}
}

func TestBookingServedFromCacheWhenSourceDown(t *testing.T) {
	store := testutil.NewFakeStore()
	seedBooking(store)
	h, _ := newTestServer(t, store)

	// Populate the fallback cache, then kill the trip source.
	if rec := doGet(t, h, "/booking/GHTW42"); rec.Code != http.StatusOK {
		t.Fatalf("warm-up status = %d, want 200", rec.Code)
	}
	store.TripErr = errors.New("connection refused")

	rec := doGet(t, h, "/booking/GHTW42")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 from cache", rec.Code)
	}

	var resp pnragg.BookingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != pnragg.StatusDegraded || !resp.FromCache {
		t.Errorf("status=%s fromCache=%v, want DEGRADED from cache", resp.Status, resp.FromCache)
	}
}

func TestCustomerLookup(t *testing.T) {
	store := testutil.NewFakeStore()
	seedBooking(store)
	store.SeedCustomerBookings("CUST1", []string{"GHTW42"})
	h, _ := newTestServer(t, store)

	rec := doGet(t, h, "/customer/CUST1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var resp customerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.CustomerID != "CUST1" || resp.Count != 1 || len(resp.Bookings) != 1 {
		t.Errorf("unexpected customer response: %+v", resp)
	}
	if resp.Bookings[0].PNR != "GHTW42" {
		t.Errorf("booking pnr = %s, want GHTW42", resp.Bookings[0].PNR)
	}
}

func TestCustomerInvalidID(t *testing.T) {
	store := testutil.NewFakeStore()
	h, _ := newTestServer(t, store)

	rec := doGet(t, h, "/customer/this-is-not-valid!")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHealthReportsBreakerStates(t *testing.T) {
	store := testutil.NewFakeStore()
	h, _ := newTestServer(t, store)

	rec := doGet(t, h, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "UP" {
		t.Errorf("status = %s, want UP", resp.Status)
	}
	for _, name := range []string{pnragg.BreakerTripService, pnragg.BreakerBaggageService, pnragg.BreakerTicketService} {
		if resp.CircuitBreakers[name] != "CLOSED" {
			t.Errorf("breaker %s = %q, want CLOSED", name, resp.CircuitBreakers[name])
		}
	}
}

func TestHealthDownWhenStoreUnreachable(t *testing.T) {
	h := New(Deps{
		Breakers: circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig(), nil),
		ReadyCheck: func(context.Context) error {
			return errors.New("server selection timeout")
		},
	})

	rec := doGet(t, h, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "DOWN" {
		t.Errorf("status = %s, want DOWN", resp.Status)
	}
}

// TestWebSocketStreamThroughServer drives /ws/pnr through the full
// middleware stack: the upgrade must hijack through the wrapped response
// writer, and each aggregation must surface as one {pnr, status, timestamp}
// frame.
func TestWebSocketStreamThroughServer(t *testing.T) {
	store := testutil.NewFakeStore()
	seedBooking(store)

	registry := circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig(), nil)
	bus := eventbus.New(nil)
	fb := fallback.NewMemory(100, time.Minute)
	trips := fetcher.NewTripFetcher(store, registry.GetOrCreate(pnragg.BreakerTripService), fb, time.Minute)
	baggage := fetcher.NewBaggageFetcher(store, registry.GetOrCreate(pnragg.BreakerBaggageService), fb, time.Minute)
	tickets := fetcher.NewTicketFetcher(store, registry.GetOrCreate(pnragg.BreakerTicketService))
	agg := aggregator.New(trips, baggage, tickets, store, bus)

	bridge := broadcast.New(bus)
	done := make(chan struct{})
	go bridge.Run(done)
	defer close(done)

	h := New(Deps{Aggregator: agg, Breakers: registry, Bridge: bridge, Sessions: bridge})
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/pnr"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial /ws/pnr: %v", err)
	}
	defer conn.Close()

	// Give the upgrade goroutines a moment to register the session.
	time.Sleep(20 * time.Millisecond)

	if rec := doGet(t, h, "/booking/GHTW42"); rec.Code != http.StatusOK {
		t.Fatalf("booking status = %d, want 200", rec.Code)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var body pnragg.PNRFetchedBody
	if err := conn.ReadJSON(&body); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if body.PNR != "GHTW42" || body.Status != pnragg.StatusSuccess || body.Timestamp == 0 {
		t.Errorf("unexpected frame: %+v", body)
	}
}

func TestCircuitBreakersReport(t *testing.T) {
	store := testutil.NewFakeStore()
	seedBooking(store)
	h, _ := newTestServer(t, store)

	doGet(t, h, "/booking/GHTW42")

	rec := doGet(t, h, "/circuitbreakers")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var report map[string]breakerReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	trip, ok := report[pnragg.BreakerTripService]
	if !ok {
		t.Fatal("tripService missing from report")
	}
	if trip.State != "CLOSED" || trip.SuccessfulCalls != 1 || trip.FailedCalls != 0 {
		t.Errorf("unexpected trip breaker report: %+v", trip)
	}
}
