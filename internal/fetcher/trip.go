package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pnragg/service/internal/circuitbreaker"
	"github.com/pnragg/service/internal/fallback"
	"github.com/pnragg/service/internal/pnragg"
)

// TripSource is the document-store surface TripFetcher depends on.
type TripSource interface {
	FindTrip(ctx context.Context, pnr string) (*pnragg.Trip, error)
}

// TripFetcher fetches the Trip record for a PNR, gated by its own circuit
// breaker and backed by the fallback store's last-known-good snapshot.
type TripFetcher struct {
	store    TripSource
	breaker  *circuitbreaker.Breaker
	fallback fallback.Store
	cacheTTL time.Duration
}

// NewTripFetcher creates a TripFetcher.
func NewTripFetcher(store TripSource, breaker *circuitbreaker.Breaker, fb fallback.Store, cacheTTL time.Duration) *TripFetcher {
	return &TripFetcher{store: store, breaker: breaker, fallback: fb, cacheTTL: cacheTTL}
}

// Fetch returns the Trip for pnr. A nil error with fromCache=false is a live
// result; a nil error with a cached trip is the fallback path. A non-nil
// error wraps pnragg.ErrPNRNotFound (source reachable, no such PNR) or
// pnragg.ErrSourceUnavailable (source unreachable and no cached snapshot).
func (f *TripFetcher) Fetch(ctx context.Context, pnr string) (*pnragg.Trip, error) {
	if !f.breaker.TryAcquirePermission() {
		return f.fallbackTrip(ctx, pnr, "circuit open")
	}

	start := clock()
	trip, err := f.store.FindTrip(ctx, pnr)
	outcome := record(f.breaker, start, err)

	switch outcome {
	case circuitbreaker.Success:
		f.cache(ctx, pnr, trip)
		trip.FromCache = false
		return trip, nil
	case circuitbreaker.Ignored:
		return nil, fmt.Errorf("trip %s: %w", pnr, pnragg.ErrPNRNotFound)
	default:
		return f.fallbackTrip(ctx, pnr, err.Error())
	}
}

func (f *TripFetcher) cache(ctx context.Context, pnr string, trip *pnragg.Trip) {
	data, err := json.Marshal(trip)
	if err != nil {
		slog.Error("encode trip for fallback cache", "pnr", pnr, "error", err)
		return
	}
	if err := f.fallback.Put(ctx, fallback.TripKey(pnr), data, f.cacheTTL); err != nil {
		slog.Warn("write trip fallback cache", "pnr", pnr, "error", err)
	}
}

// fallbackTrip consults the fallback store. A cache hit is returned with
// FromCache=true and a fallback message; a miss becomes SourceUnavailable —
// there is nothing to serve.
func (f *TripFetcher) fallbackTrip(ctx context.Context, pnr, reason string) (*pnragg.Trip, error) {
	data, ok, err := f.fallback.Get(ctx, fallback.TripKey(pnr))
	if err != nil {
		slog.Warn("read trip fallback cache", "pnr", pnr, "error", err)
	}
	if !ok {
		return nil, fmt.Errorf("trip %s unavailable (%s): %w", pnr, reason, pnragg.ErrSourceUnavailable)
	}

	var trip pnragg.Trip
	if err := json.Unmarshal(data, &trip); err != nil {
		return nil, fmt.Errorf("trip %s unavailable (%s), corrupt cache entry: %w", pnr, reason, pnragg.ErrSourceUnavailable)
	}

	now := clock()
	trip.FromCache = true
	trip.CacheTimestamp = &now
	trip.PNRFallbackMsg = []string{fmt.Sprintf("Trip data served from cache at %s (%s)", now.UTC().Format(time.RFC3339), reason)}
	return &trip, nil
}
