// Package fallback is the Fallback Store: a bounded-TTL key-value cache of
// last-known-good trip/baggage records, plus the static default baggage
// allowance table. The core depends only on the Store contract — Memory
// (in-process, otter-backed) and Redis (external, go-redis-backed) are
// interchangeable implementations selected once at startup.
package fallback

import (
	"context"
	"time"

	"github.com/pnragg/service/internal/pnragg"
)

// Store is a key-value cache with per-entry TTL. Null values are never
// stored; a miss is reported as (nil, false, nil). Eviction is by TTL only —
// there is no explicit invalidation in this contract.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache key namespace.
const (
	TripKeyPrefix    = "trip:"
	BaggageKeyPrefix = "baggage:"
)

// TripKey returns the fallback store key for a trip snapshot.
func TripKey(pnr string) string { return TripKeyPrefix + pnr }

// BaggageKey returns the fallback store key for a baggage snapshot.
func BaggageKey(pnr string) string { return BaggageKeyPrefix + pnr }

// Default baggage allowance applied when the baggage source is unavailable
// and no cached snapshot exists.
const (
	DefaultCheckedAllowance = 25
	DefaultCarryOnAllowance = 7
	DefaultAllowanceUnit    = pnragg.AllowanceUnitKg
)

// DefaultAllowances synthesizes one allowance entry per passenger using the
// default checked/carry-on values.
func DefaultAllowances(passengers []pnragg.Passenger) []pnragg.BaggageAllowance {
	allowances := make([]pnragg.BaggageAllowance, len(passengers))
	for i, p := range passengers {
		allowances[i] = pnragg.BaggageAllowance{
			PassengerNumber:       p.PassengerNumber,
			AllowanceUnit:         DefaultAllowanceUnit,
			CheckedAllowanceValue: DefaultCheckedAllowance,
			CarryOnAllowanceValue: DefaultCarryOnAllowance,
		}
	}
	return allowances
}
