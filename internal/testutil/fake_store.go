// Package testutil holds hand-written fakes used across package tests:
// in-memory substitutes for the document store so higher-level packages
// can be tested without a live MongoDB.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/pnragg/service/internal/pnragg"
)

// FakeStore is an in-memory stand-in for store.Store.
type FakeStore struct {
	mu sync.RWMutex

	Trips           map[string]*pnragg.Trip
	Baggage         map[string]*pnragg.Baggage
	Tickets         map[string]*pnragg.Ticket // key: pnr+"/"+passengerNumber
	CustomerBookings map[string][]string

	// TripErr/BaggageErr/TicketErr, when set, are returned instead of a
	// not-found/lookup result for every call — used to simulate the source
	// being unreachable.
	TripErr    error
	BaggageErr error
	TicketErr  error
}

// NewFakeStore returns an empty FakeStore ready for seeding.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		Trips:            make(map[string]*pnragg.Trip),
		Baggage:          make(map[string]*pnragg.Baggage),
		Tickets:          make(map[string]*pnragg.Ticket),
		CustomerBookings: make(map[string][]string),
	}
}

func ticketKey(pnr string, passengerNumber int) string {
	return fmt.Sprintf("%s/%d", pnr, passengerNumber)
}

// SeedTrip stores a trip document for pnr.
func (f *FakeStore) SeedTrip(pnr string, trip *pnragg.Trip) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Trips[pnr] = trip
}

// SeedBaggage stores a baggage document for pnr.
func (f *FakeStore) SeedBaggage(pnr string, baggage *pnragg.Baggage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Baggage[pnr] = baggage
}

// SeedTicket stores a ticket document for (pnr, passengerNumber).
func (f *FakeStore) SeedTicket(pnr string, passengerNumber int, ticket *pnragg.Ticket) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tickets[ticketKey(pnr, passengerNumber)] = ticket
}

// SeedCustomerBookings stores the PNR set for a customer id.
func (f *FakeStore) SeedCustomerBookings(customerID string, pnrs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CustomerBookings[customerID] = pnrs
}

func (f *FakeStore) FindTrip(_ context.Context, pnr string) (*pnragg.Trip, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.TripErr != nil {
		return nil, f.TripErr
	}
	trip, ok := f.Trips[pnr]
	if !ok {
		return nil, fmt.Errorf("find trip %s: %w", pnr, pnragg.ErrNotFound)
	}
	cp := *trip
	return &cp, nil
}

func (f *FakeStore) FindBaggage(_ context.Context, pnr string) (*pnragg.Baggage, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.BaggageErr != nil {
		return nil, f.BaggageErr
	}
	baggage, ok := f.Baggage[pnr]
	if !ok {
		return nil, fmt.Errorf("find baggage %s: %w", pnr, pnragg.ErrNotFound)
	}
	cp := *baggage
	return &cp, nil
}

func (f *FakeStore) FindTicket(_ context.Context, pnr string, passengerNumber int) (*pnragg.Ticket, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.TicketErr != nil {
		return nil, f.TicketErr
	}
	ticket, ok := f.Tickets[ticketKey(pnr, passengerNumber)]
	if !ok {
		return nil, fmt.Errorf("find ticket %s/%d: %w", pnr, passengerNumber, pnragg.ErrNotFound)
	}
	cp := *ticket
	return &cp, nil
}

func (f *FakeStore) FindCustomerPNRs(_ context.Context, customerID string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.CustomerBookings[customerID], nil
}

func (f *FakeStore) Ping(context.Context) error { return nil }
func (f *FakeStore) Close(context.Context) error { return nil }
