package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pnragg/service/internal/circuitbreaker"
	"github.com/pnragg/service/internal/fallback"
	"github.com/pnragg/service/internal/pnragg"
	"github.com/pnragg/service/internal/testutil"
)

func newBreaker() *circuitbreaker.Breaker {
	return circuitbreaker.NewBreaker(circuitbreaker.DefaultConfig())
}

func TestTripFetcherLiveSuccessCaches(t *testing.T) {
	store := testutil.NewFakeStore()
	store.SeedTrip("ABC123", &pnragg.Trip{
		BookingReference: "ABC123",
		Passengers:       []pnragg.Passenger{{FirstName: "A", PassengerNumber: 1}},
	})
	fb := fallback.NewMemory(100, time.Minute)
	f := NewTripFetcher(store, newBreaker(), fb, time.Minute)

	trip, err := f.Fetch(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trip.FromCache {
		t.Error("live result should not be FromCache")
	}

	data, ok, err := fb.Get(context.Background(), fallback.TripKey("ABC123"))
	if err != nil || !ok {
		t.Fatalf("expected trip cached, got ok=%v err=%v", ok, err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty cached payload")
	}
}

func TestTripFetcherNotFound(t *testing.T) {
	store := testutil.NewFakeStore()
	fb := fallback.NewMemory(100, time.Minute)
	f := NewTripFetcher(store, newBreaker(), fb, time.Minute)

	_, err := f.Fetch(context.Background(), "MISSING")
	if !errors.Is(err, pnragg.ErrPNRNotFound) {
		t.Fatalf("expected ErrPNRNotFound, got %v", err)
	}
}

func TestTripFetcherFallbackOnFailureWithCache(t *testing.T) {
	store := testutil.NewFakeStore()
	store.TripErr = errors.New("connection refused")
	fb := fallback.NewMemory(100, time.Minute)
	f := NewTripFetcher(store, newBreaker(), fb, time.Minute)

	cached := &pnragg.Trip{BookingReference: "ABC123", Passengers: []pnragg.Passenger{{PassengerNumber: 1}}}
	f.cache(context.Background(), "ABC123", cached)

	trip, err := f.Fetch(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !trip.FromCache {
		t.Error("expected FromCache=true on fallback hit")
	}
	if len(trip.PNRFallbackMsg) == 0 {
		t.Error("expected a fallback message")
	}
}

func TestTripFetcherFailureNoCacheIsUnavailable(t *testing.T) {
	store := testutil.NewFakeStore()
	store.TripErr = errors.New("connection refused")
	fb := fallback.NewMemory(100, time.Minute)
	f := NewTripFetcher(store, newBreaker(), fb, time.Minute)

	_, err := f.Fetch(context.Background(), "ABC123")
	if !errors.Is(err, pnragg.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestTripFetcherBreakerOpenUsesFallback(t *testing.T) {
	store := testutil.NewFakeStore()
	store.SeedTrip("ABC123", &pnragg.Trip{BookingReference: "ABC123", Passengers: []pnragg.Passenger{{PassengerNumber: 1}}})
	fb := fallback.NewMemory(100, time.Minute)
	breaker := newBreaker()
	for range 20 {
		breaker.Record(circuitbreaker.Failure, time.Millisecond)
	}
	f := NewTripFetcher(store, breaker, fb, time.Minute)

	cached := &pnragg.Trip{BookingReference: "ABC123", Passengers: []pnragg.Passenger{{PassengerNumber: 1}}}
	f.cache(context.Background(), "ABC123", cached)

	trip, err := f.Fetch(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !trip.FromCache {
		t.Error("expected breaker-denied call to serve from fallback cache")
	}
}
