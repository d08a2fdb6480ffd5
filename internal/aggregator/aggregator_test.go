package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pnragg/service/internal/circuitbreaker"
	"github.com/pnragg/service/internal/eventbus"
	"github.com/pnragg/service/internal/fallback"
	"github.com/pnragg/service/internal/fetcher"
	"github.com/pnragg/service/internal/pnragg"
	"github.com/pnragg/service/internal/testutil"
)

func newBreaker() *circuitbreaker.Breaker {
	return circuitbreaker.NewBreaker(circuitbreaker.DefaultConfig())
}

func newAggregator(store *testutil.FakeStore, bus *eventbus.Bus) *Aggregator {
	fb := fallback.NewMemory(100, time.Minute)
	trips := fetcher.NewTripFetcher(store, newBreaker(), fb, time.Minute)
	baggage := fetcher.NewBaggageFetcher(store, newBreaker(), fb, time.Minute)
	tickets := fetcher.NewTicketFetcher(store, newBreaker())
	return New(trips, baggage, tickets, store, bus)
}

func seedHappyPath(store *testutil.FakeStore) {
	store.SeedTrip("GHTW42", &pnragg.Trip{
		BookingReference: "GHTW42",
		CabinClass:       "ECONOMY",
		Passengers: []pnragg.Passenger{
			{FirstName: "A", PassengerNumber: 1},
			{FirstName: "B", PassengerNumber: 2},
		},
	})
	store.SeedBaggage("GHTW42", &pnragg.Baggage{
		BookingReference: "GHTW42",
		Allowances: []pnragg.BaggageAllowance{
			{PassengerNumber: 1, AllowanceUnit: pnragg.AllowanceUnitKg, CheckedAllowanceValue: 32},
			{PassengerNumber: 2, AllowanceUnit: pnragg.AllowanceUnitKg, CheckedAllowanceValue: 32},
		},
	})
	store.SeedTicket("GHTW42", 2, &pnragg.Ticket{BookingReference: "GHTW42", PassengerNumber: 2, TicketURL: "https://t/2"})
}

func TestAggregateHappyPath(t *testing.T) {
	store := testutil.NewFakeStore()
	seedHappyPath(store)
	agg := newAggregator(store, nil)

	resp, err := agg.Aggregate(context.Background(), "GHTW42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != pnragg.StatusSuccess {
		t.Errorf("expected SUCCESS, got %s", resp.Status)
	}
	if len(resp.Passengers) != 2 {
		t.Fatalf("expected 2 passengers, got %d", len(resp.Passengers))
	}
	if len(resp.Tickets) != 1 || resp.Tickets[0].PassengerNumber != 2 {
		t.Fatalf("expected one ticket for passenger 2, got %+v", resp.Tickets)
	}
}

func TestAggregateUnknownPNR(t *testing.T) {
	store := testutil.NewFakeStore()
	agg := newAggregator(store, nil)

	_, err := agg.Aggregate(context.Background(), "ZZZZ99")
	if !errors.Is(err, pnragg.ErrPNRNotFound) {
		t.Fatalf("expected ErrPNRNotFound, got %v", err)
	}
}

func TestAggregateTripSourceDownNoCache(t *testing.T) {
	store := testutil.NewFakeStore()
	store.TripErr = errors.New("connection refused")
	agg := newAggregator(store, nil)

	_, err := agg.Aggregate(context.Background(), "GHTW42")
	if !errors.Is(err, pnragg.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestAggregateBaggageDownDefaultsAllowances(t *testing.T) {
	store := testutil.NewFakeStore()
	store.SeedTrip("GHTW42", &pnragg.Trip{
		BookingReference: "GHTW42",
		Passengers: []pnragg.Passenger{
			{PassengerNumber: 1},
			{PassengerNumber: 2},
		},
	})
	store.BaggageErr = errors.New("timeout")
	agg := newAggregator(store, nil)

	resp, err := agg.Aggregate(context.Background(), "GHTW42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != pnragg.StatusDegraded {
		t.Errorf("expected DEGRADED, got %s", resp.Status)
	}
	if !resp.Baggage.FromDefault {
		t.Error("expected baggage.fromDefault=true")
	}
	if len(resp.Baggage.Allowances) != 2 {
		t.Fatalf("expected default allowances for both passengers, got %d", len(resp.Baggage.Allowances))
	}
	for _, a := range resp.Baggage.Allowances {
		if a.CheckedAllowanceValue != fallback.DefaultCheckedAllowance {
			t.Errorf("expected default checked allowance %v, got %v", fallback.DefaultCheckedAllowance, a.CheckedAllowanceValue)
		}
	}
}

func TestAggregateTicketFailureDegrades(t *testing.T) {
	store := testutil.NewFakeStore()
	store.SeedTrip("GHTW42", &pnragg.Trip{
		BookingReference: "GHTW42",
		Passengers:       []pnragg.Passenger{{PassengerNumber: 1}},
	})
	store.SeedBaggage("GHTW42", &pnragg.Baggage{BookingReference: "GHTW42", Allowances: []pnragg.BaggageAllowance{{PassengerNumber: 1}}})
	store.TicketErr = errors.New("timeout")
	agg := newAggregator(store, nil)

	resp, err := agg.Aggregate(context.Background(), "GHTW42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != pnragg.StatusDegraded {
		t.Errorf("expected DEGRADED due to ticket failure, got %s", resp.Status)
	}
	if len(resp.Tickets) != 1 || len(resp.Tickets[0].TicketFallbackMsg) == 0 {
		t.Fatalf("expected a degraded placeholder ticket, got %+v", resp.Tickets)
	}
}

func TestAggregatePublishesEvent(t *testing.T) {
	store := testutil.NewFakeStore()
	seedHappyPath(store)
	bus := eventbus.New(nil)
	sub := bus.Subscribe(pnragg.TopicPNRFetched)
	defer sub.Close()
	agg := newAggregator(store, bus)

	if _, err := agg.Aggregate(context.Background(), "GHTW42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case evt := <-sub.Events:
		body, ok := evt.Body.(pnragg.PNRFetchedBody)
		if !ok || body.PNR != "GHTW42" || body.Status != pnragg.StatusSuccess {
			t.Fatalf("unexpected event body: %+v", evt.Body)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestGetBookingsByCustomerID(t *testing.T) {
	store := testutil.NewFakeStore()
	seedHappyPath(store)
	store.SeedCustomerBookings("CUST1", []string{"GHTW42", "ZZZZ99"})
	agg := newAggregator(store, nil)

	bookings, err := agg.GetBookingsByCustomerID(context.Background(), "CUST1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bookings) != 1 {
		t.Fatalf("expected the unknown PNR to be filtered out, got %d bookings", len(bookings))
	}
	if bookings[0].PNR != "GHTW42" {
		t.Errorf("expected PNR GHTW42, got %s", bookings[0].PNR)
	}
}

func TestGetBookingsByCustomerIDAllSourceUnavailable(t *testing.T) {
	store := testutil.NewFakeStore()
	store.TripErr = errors.New("connection refused")
	store.SeedCustomerBookings("CUST1", []string{"GHTW42", "OTHR01"})
	agg := newAggregator(store, nil)

	_, err := agg.GetBookingsByCustomerID(context.Background(), "CUST1")
	if !errors.Is(err, pnragg.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestGetBookingsByCustomerIDNoBookings(t *testing.T) {
	store := testutil.NewFakeStore()
	agg := newAggregator(store, nil)

	bookings, err := agg.GetBookingsByCustomerID(context.Background(), "NOBODY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bookings) != 0 {
		t.Fatalf("expected no bookings, got %d", len(bookings))
	}
}
