// Package fetcher implements the three source fetchers — Trip, Baggage,
// Ticket — each wrapping one document-store query with its own circuit
// breaker and fallback policy. All three follow the same shape: acquire
// breaker permission, query, record the outcome, fall back to cache or
// default on denial or failure.
package fetcher

import (
	"time"

	"github.com/pnragg/service/internal/circuitbreaker"
)

// clock lets tests substitute a deterministic time source without changing
// call signatures. Real fetchers use time.Now; tests may override it.
var clock = time.Now

// record classifies err against the breaker (Success on nil, Ignored on a
// business-valid absence, Failure otherwise) and records the outcome with
// the call's wall-clock duration.
func record(b *circuitbreaker.Breaker, start time.Time, err error) circuitbreaker.Outcome {
	outcome := circuitbreaker.ClassifyOutcome(err)
	b.Record(outcome, clock().Sub(start))
	return outcome
}
