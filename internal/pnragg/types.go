// Package pnragg defines the domain types shared across the aggregation
// service: passengers, flights, trips, baggage, tickets, and the assembled
// booking view. It has no project imports — every other package depends on
// it, never the reverse.
package pnragg

import "time"

// Passenger is a single traveler on a booking.
type Passenger struct {
	FirstName       string `json:"firstName"`
	MiddleName      string `json:"middleName,omitempty"`
	LastName        string `json:"lastName"`
	PassengerNumber int    `json:"passengerNumber"`
	CustomerID      string `json:"customerId,omitempty"`
	Seat            string `json:"seat,omitempty"`
}

// Flight is one segment of a Trip. Timestamps are ISO-8601 strings, exposed
// to clients verbatim; any internal parsing happens downstream of this type.
type Flight struct {
	FlightNumber       string `json:"flightNumber"`
	DepartureAirport   string `json:"departureAirport"`
	DepartureTimestamp string `json:"departureTimestamp"`
	ArrivalAirport     string `json:"arrivalAirport"`
	ArrivalTimestamp   string `json:"arrivalTimestamp"`
}

// Trip is the booking's itinerary and passenger manifest.
//
// Invariant: Passengers is non-empty, and BookingReference equals the PNR
// that retrieved it.
type Trip struct {
	BookingReference string      `json:"bookingReference"`
	CabinClass       string      `json:"cabinClass"`
	Passengers       []Passenger `json:"passengers"`
	Flights          []Flight    `json:"flights"`
	FromCache        bool        `json:"fromCache"`
	CacheTimestamp   *time.Time  `json:"cacheTimestamp,omitempty"`
	PNRFallbackMsg   []string    `json:"pnrFallbackMsg,omitempty"`
}

// AllowanceUnit is the unit a BaggageAllowance is expressed in.
type AllowanceUnit string

const (
	AllowanceUnitKg AllowanceUnit = "kg"
	AllowanceUnitLb AllowanceUnit = "lb"
)

// BaggageAllowance is one passenger's checked/carry-on limits.
type BaggageAllowance struct {
	PassengerNumber       int           `json:"passengerNumber"`
	AllowanceUnit         AllowanceUnit `json:"allowanceUnit"`
	CheckedAllowanceValue float64       `json:"checkedAllowanceValue"`
	CarryOnAllowanceValue float64       `json:"carryOnAllowanceValue"`
}

// Baggage is the per-booking set of allowances.
//
// Invariant: for each passenger in the associated Trip there is at most one
// allowance entry; when FromDefault is true every passenger has one.
type Baggage struct {
	BookingReference   string             `json:"bookingReference"`
	Allowances         []BaggageAllowance `json:"allowances"`
	FromCache          bool               `json:"fromCache"`
	FromDefault        bool               `json:"fromDefault"`
	BaggageFallbackMsg []string           `json:"baggageFallbackMsg,omitempty"`
}

// Ticket is one passenger's issued ticket. A passenger may have zero or one;
// absence is valid and is not itself a fallback condition.
type Ticket struct {
	BookingReference  string   `json:"bookingReference"`
	PassengerNumber   int      `json:"passengerNumber"`
	TicketURL         string   `json:"ticketUrl"`
	TicketFallbackMsg []string `json:"ticketFallbackMsg,omitempty"`
}

// Status is the overall health of an assembled BookingResponse.
type Status string

const (
	StatusSuccess  Status = "SUCCESS"
	StatusDegraded Status = "DEGRADED"
)

// BookingResponse is the aggregated view returned to clients.
type BookingResponse struct {
	PNR        string      `json:"pnr"`
	CabinClass string      `json:"cabinClass"`
	Passengers []Passenger `json:"passengers"`
	Flights    []Flight    `json:"flights"`
	Baggage    *Baggage    `json:"baggage"`
	Tickets    []Ticket    `json:"tickets"`
	Status     Status      `json:"status"`
	FromCache  bool        `json:"fromCache"`
	Timestamp  time.Time   `json:"timestamp"`
}

// TopicPNRFetched is the only event topic this service publishes.
const TopicPNRFetched = "pnr.fetched"

// Named dependencies each source fetcher's circuit breaker registers under.
// These are the <name> values the cb.<name>.* configuration keys address.
const (
	BreakerTripService    = "tripService"
	BreakerBaggageService = "baggageService"
	BreakerTicketService  = "ticketService"
)

// Event is the envelope published on the event bus and relayed by the
// broadcast bridge. Body is reserved to {pnr, status, timestamp} for
// TopicPNRFetched; no other topic is currently emitted.
type Event struct {
	Topic string `json:"topic"`
	Body  any    `json:"body"`
}

// PNRFetchedBody is the body of a TopicPNRFetched event.
type PNRFetchedBody struct {
	PNR       string `json:"pnr"`
	Status    Status `json:"status"`
	Timestamp int64  `json:"timestamp"` // epoch-ms
}
