package fetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/pnragg/service/internal/circuitbreaker"
	"github.com/pnragg/service/internal/pnragg"
)

// TicketSource is the document-store surface TicketFetcher depends on.
type TicketSource interface {
	FindTicket(ctx context.Context, pnr string, passengerNumber int) (*pnragg.Ticket, error)
}

// TicketFetcher fetches one passenger's Ticket. A ticket fetch never fails
// the aggregate and is never served from the fallback cache — an
// unreachable ticket source simply degrades that passenger's entry.
type TicketFetcher struct {
	store   TicketSource
	breaker *circuitbreaker.Breaker
}

// NewTicketFetcher creates a TicketFetcher.
func NewTicketFetcher(store TicketSource, breaker *circuitbreaker.Breaker) *TicketFetcher {
	return &TicketFetcher{store: store, breaker: breaker}
}

// TicketOutcome is the result of one passenger's ticket fetch. Ticket is nil
// when no ticket exists (valid absence, Degraded=false). When the fetch
// failed, Ticket is a placeholder carrying only the booking reference,
// passenger number and TicketFallbackMsg (Degraded=true, FallbackMsg
// explains why).
type TicketOutcome struct {
	Ticket      *pnragg.Ticket
	Degraded    bool
	FallbackMsg string
}

// Fetch returns the TicketOutcome for one passenger on pnr. It never
// returns an error: the caller treats Degraded (with its placeholder Ticket)
// as the signal.
func (f *TicketFetcher) Fetch(ctx context.Context, pnr string, passengerNumber int) TicketOutcome {
	if !f.breaker.TryAcquirePermission() {
		return degradedTicket(pnr, passengerNumber, "circuit open")
	}

	start := clock()
	ticket, err := f.store.FindTicket(ctx, pnr, passengerNumber)
	outcome := record(f.breaker, start, err)

	switch outcome {
	case circuitbreaker.Success:
		return TicketOutcome{Ticket: ticket}
	case circuitbreaker.Ignored:
		if errors.Is(err, pnragg.ErrNotFound) {
			return TicketOutcome{} // no ticket issued for this passenger, not a degradation
		}
		return TicketOutcome{Ticket: ticket}
	default:
		return degradedTicket(pnr, passengerNumber, err.Error())
	}
}

func degradedTicket(pnr string, passengerNumber int, reason string) TicketOutcome {
	msg := fmt.Sprintf("Ticket unavailable for passenger %d (%s)", passengerNumber, reason)
	return TicketOutcome{
		Ticket: &pnragg.Ticket{
			BookingReference:  pnr,
			PassengerNumber:   passengerNumber,
			TicketFallbackMsg: []string{msg},
		},
		Degraded:    true,
		FallbackMsg: msg,
	}
}
