package pnragg

import "errors"

// Sentinel errors, wrapped with %w at each layer and tested with errors.Is.
var (
	// ErrValidation marks input that failed a declared pattern (PNR, customer id).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the generic store-level "no document" outcome. Fetchers
	// classify it as an IGNORED circuit-breaker outcome and translate it into
	// a fetcher-specific result (PNRNotFound for Trip, a default for Baggage,
	// an absent Ticket).
	ErrNotFound = errors.New("document not found")

	// ErrPNRNotFound is the business-level "trip source reachable, PNR
	// absent" outcome. The aggregator escalates it to callers as 404.
	ErrPNRNotFound = errors.New("pnr not found")

	// ErrSourceUnavailable marks a Trip fetch that failed with no cached
	// trip to fall back to. The aggregator escalates it to callers as 503.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrInternal is any unclassified failure, surfaced as 500.
	ErrInternal = errors.New("internal error")
)
