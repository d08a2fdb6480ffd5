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

// BaggageSource is the document-store surface BaggageFetcher depends on.
type BaggageSource interface {
	FindBaggage(ctx context.Context, pnr string) (*pnragg.Baggage, error)
}

// BaggageFetcher fetches the Baggage record for a PNR. Unlike Trip, a
// Baggage fetch never fails the aggregate: an unreachable source without a
// cached snapshot yields a placeholder with FromDefault=true and a nil
// Allowances slice — the aggregator fills it in once the Trip's passenger
// list is known, since the default table is per-passenger.
type BaggageFetcher struct {
	store    BaggageSource
	breaker  *circuitbreaker.Breaker
	fallback fallback.Store
	cacheTTL time.Duration
}

// NewBaggageFetcher creates a BaggageFetcher.
func NewBaggageFetcher(store BaggageSource, breaker *circuitbreaker.Breaker, fb fallback.Store, cacheTTL time.Duration) *BaggageFetcher {
	return &BaggageFetcher{store: store, breaker: breaker, fallback: fb, cacheTTL: cacheTTL}
}

// Fetch returns the Baggage for pnr. It always succeeds and has no error
// result — degradation is signaled via FromCache/FromDefault, never a failed
// call.
func (f *BaggageFetcher) Fetch(ctx context.Context, pnr string) *pnragg.Baggage {
	if !f.breaker.TryAcquirePermission() {
		return f.fallbackBaggage(ctx, pnr, "circuit open")
	}

	start := clock()
	baggage, err := f.store.FindBaggage(ctx, pnr)
	outcome := record(f.breaker, start, err)

	switch outcome {
	case circuitbreaker.Success:
		f.cache(ctx, pnr, baggage)
		return baggage
	case circuitbreaker.Ignored:
		// No baggage document for this PNR — a valid absence, defaulted
		// the same as a reachability failure.
		return f.defaultBaggage(pnr, "no baggage record for PNR")
	default:
		return f.fallbackBaggage(ctx, pnr, err.Error())
	}
}

func (f *BaggageFetcher) cache(ctx context.Context, pnr string, baggage *pnragg.Baggage) {
	data, err := json.Marshal(baggage)
	if err != nil {
		slog.Error("encode baggage for fallback cache", "pnr", pnr, "error", err)
		return
	}
	if err := f.fallback.Put(ctx, fallback.BaggageKey(pnr), data, f.cacheTTL); err != nil {
		slog.Warn("write baggage fallback cache", "pnr", pnr, "error", err)
	}
}

func (f *BaggageFetcher) fallbackBaggage(ctx context.Context, pnr, reason string) *pnragg.Baggage {
	data, ok, err := f.fallback.Get(ctx, fallback.BaggageKey(pnr))
	if err != nil {
		slog.Warn("read baggage fallback cache", "pnr", pnr, "error", err)
	}
	if !ok {
		return f.defaultBaggage(pnr, reason)
	}

	var baggage pnragg.Baggage
	if err := json.Unmarshal(data, &baggage); err != nil {
		return f.defaultBaggage(pnr, reason+", corrupt cache entry")
	}
	baggage.FromCache = true
	return &baggage
}

// defaultBaggage returns a placeholder with Allowances left nil — the
// aggregator fills per-passenger defaults once Trip resolves.
func (f *BaggageFetcher) defaultBaggage(pnr, reason string) *pnragg.Baggage {
	return &pnragg.Baggage{
		BookingReference:   pnr,
		FromDefault:        true,
		BaggageFallbackMsg: []string{fmt.Sprintf("Default baggage allowance applied (%s)", reason)},
	}
}
