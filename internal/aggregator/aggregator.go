// Package aggregator implements the core join: dispatching the three
// source fetchers per PNR, composing their results into one BookingResponse,
// and publishing the outcome on the event bus. The guiding rule is to fan
// out to independent sources, join all, and degrade rather than fail.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pnragg/service/internal/eventbus"
	"github.com/pnragg/service/internal/fallback"
	"github.com/pnragg/service/internal/fetcher"
	"github.com/pnragg/service/internal/pnragg"
)

// clock lets tests substitute a deterministic time source.
var clock = time.Now

// CustomerStore resolves a customer id to the PNRs they appear on.
type CustomerStore interface {
	FindCustomerPNRs(ctx context.Context, customerID string) ([]string, error)
}

// Aggregator composes Trip, Baggage, and Ticket fetches into a single
// BookingResponse and publishes pnr.fetched events for each assembled
// response.
type Aggregator struct {
	trips     *fetcher.TripFetcher
	baggage   *fetcher.BaggageFetcher
	tickets   *fetcher.TicketFetcher
	customers CustomerStore
	bus       *eventbus.Bus
}

// New creates an Aggregator wired to its three fetchers, the customer
// index, and the event bus events are published to.
func New(trips *fetcher.TripFetcher, baggage *fetcher.BaggageFetcher, tickets *fetcher.TicketFetcher, customers CustomerStore, bus *eventbus.Bus) *Aggregator {
	return &Aggregator{trips: trips, baggage: baggage, tickets: tickets, customers: customers, bus: bus}
}

// Aggregate returns the assembled BookingResponse for pnr. The only errors
// returned wrap pnragg.ErrPNRNotFound or pnragg.ErrSourceUnavailable — every
// other source failure degrades rather than fails the response.
func (a *Aggregator) Aggregate(ctx context.Context, pnr string) (*pnragg.BookingResponse, error) {
	var trip *pnragg.Trip
	var baggage *pnragg.Baggage

	// A plain group, not WithContext: a trip failure must not cancel the
	// baggage fetch mid-flight — it completes and caches normally, and its
	// breaker only ever sees real source outcomes.
	var g errgroup.Group
	g.Go(func() error {
		t, err := a.trips.Fetch(ctx, pnr)
		if err != nil {
			return err
		}
		trip = t
		return nil
	})
	g.Go(func() error {
		baggage = a.baggage.Fetch(ctx, pnr)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tickets, ticketsDegraded := a.fetchTickets(ctx, pnr, trip.Passengers)

	if baggage.FromDefault && baggage.Allowances == nil {
		baggage.Allowances = fallback.DefaultAllowances(trip.Passengers)
	}

	status := pnragg.StatusSuccess
	if trip.FromCache || baggage.FromCache || baggage.FromDefault || ticketsDegraded {
		status = pnragg.StatusDegraded
	}

	resp := &pnragg.BookingResponse{
		PNR:        trip.BookingReference,
		CabinClass: trip.CabinClass,
		Passengers: trip.Passengers,
		Flights:    trip.Flights,
		Baggage:    baggage,
		Tickets:    tickets,
		Status:     status,
		FromCache:  trip.FromCache,
		Timestamp:  clock(),
	}

	a.publish(pnr, status, resp.Timestamp)
	return resp, nil
}

// fetchTickets dispatches one TicketFetcher.Fetch per passenger
// concurrently, preserving passenger-number order in the result.
func (a *Aggregator) fetchTickets(ctx context.Context, pnr string, passengers []pnragg.Passenger) ([]pnragg.Ticket, bool) {
	var mu sync.Mutex
	var wg sync.WaitGroup
	tickets := make([]pnragg.Ticket, 0, len(passengers))
	degraded := false

	for _, p := range passengers {
		wg.Add(1)
		go func(p pnragg.Passenger) {
			defer wg.Done()
			outcome := a.tickets.Fetch(ctx, pnr, p.PassengerNumber)

			mu.Lock()
			defer mu.Unlock()
			if outcome.Ticket != nil {
				tickets = append(tickets, *outcome.Ticket)
			}
			if outcome.Degraded {
				degraded = true
			}
		}(p)
	}
	wg.Wait()

	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].PassengerNumber < tickets[j].PassengerNumber
	})
	return tickets, degraded
}

func (a *Aggregator) publish(pnr string, status pnragg.Status, ts time.Time) {
	if a.bus == nil {
		return
	}
	a.bus.Publish(pnragg.Event{
		Topic: pnragg.TopicPNRFetched,
		Body: pnragg.PNRFetchedBody{
			PNR:       pnr,
			Status:    status,
			Timestamp: ts.UnixMilli(),
		},
	})
}

// GetBookingsByCustomerID resolves customerID to its PNR set and aggregates
// each concurrently. PNRNotFound aggregations are filtered out silently.
// When no aggregation succeeds and at least one failed with another error
// (such as SourceUnavailable), the whole operation fails with the first such
// error in PNR order; otherwise the successful bookings are returned.
func (a *Aggregator) GetBookingsByCustomerID(ctx context.Context, customerID string) ([]pnragg.BookingResponse, error) {
	pnrs, err := a.customers.FindCustomerPNRs(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("resolve customer %s: %w", customerID, pnragg.ErrInternal)
	}
	if len(pnrs) == 0 {
		return []pnragg.BookingResponse{}, nil
	}

	results := make([]*pnragg.BookingResponse, len(pnrs))
	errs := make([]error, len(pnrs))

	var wg sync.WaitGroup
	for i, pnr := range pnrs {
		wg.Add(1)
		go func(i int, pnr string) {
			defer wg.Done()
			resp, err := a.Aggregate(ctx, pnr)
			results[i] = resp
			errs[i] = err
		}(i, pnr)
	}
	wg.Wait()

	bookings := make([]pnragg.BookingResponse, 0, len(pnrs))
	var firstUnavailable error
	for i, err := range errs {
		switch {
		case err == nil:
			bookings = append(bookings, *results[i])
		case errors.Is(err, pnragg.ErrPNRNotFound):
			// filtered: business-valid absence, not a failure of the operation
		default:
			if firstUnavailable == nil {
				firstUnavailable = err
			}
		}
	}

	if len(bookings) == 0 && firstUnavailable != nil {
		return nil, firstUnavailable
	}
	return bookings, nil
}
