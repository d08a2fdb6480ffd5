package store

import "github.com/pnragg/service/internal/pnragg"

// The *Document types mirror the BSON shape of each collection. Keeping them
// distinct from the pnragg domain types lets the store evolve its storage
// shape (and carry store-only fields like the reserved departureDate, peeked
// separately via gjson rather than given a field here) without coupling the
// domain model to BSON tags.

type passengerDocument struct {
	FirstName       string `bson:"firstName"`
	MiddleName      string `bson:"middleName,omitempty"`
	LastName        string `bson:"lastName"`
	PassengerNumber int    `bson:"passengerNumber"`
	CustomerID      string `bson:"customerId,omitempty"`
	Seat            string `bson:"seat,omitempty"`
}

func (p passengerDocument) toDomain() pnragg.Passenger {
	return pnragg.Passenger{
		FirstName:       p.FirstName,
		MiddleName:      p.MiddleName,
		LastName:        p.LastName,
		PassengerNumber: p.PassengerNumber,
		CustomerID:      p.CustomerID,
		Seat:            p.Seat,
	}
}

type flightDocument struct {
	FlightNumber       string `bson:"flightNumber"`
	DepartureAirport   string `bson:"departureAirport"`
	DepartureTimestamp string `bson:"departureTimestamp"`
	ArrivalAirport     string `bson:"arrivalAirport"`
	ArrivalTimestamp   string `bson:"arrivalTimestamp"`
}

func (f flightDocument) toDomain() pnragg.Flight {
	return pnragg.Flight{
		FlightNumber:       f.FlightNumber,
		DepartureAirport:   f.DepartureAirport,
		DepartureTimestamp: f.DepartureTimestamp,
		ArrivalAirport:     f.ArrivalAirport,
		ArrivalTimestamp:   f.ArrivalTimestamp,
	}
}

type tripDocument struct {
	BookingReference string              `bson:"bookingReference"`
	CabinClass       string              `bson:"cabinClass"`
	Passengers       []passengerDocument `bson:"passengers"`
	Flights          []flightDocument    `bson:"flights"`
}

func (t tripDocument) toDomain() *pnragg.Trip {
	passengers := make([]pnragg.Passenger, len(t.Passengers))
	for i, p := range t.Passengers {
		passengers[i] = p.toDomain()
	}
	flights := make([]pnragg.Flight, len(t.Flights))
	for i, f := range t.Flights {
		flights[i] = f.toDomain()
	}
	return &pnragg.Trip{
		BookingReference: t.BookingReference,
		CabinClass:       t.CabinClass,
		Passengers:       passengers,
		Flights:          flights,
	}
}

type allowanceDocument struct {
	PassengerNumber       int     `bson:"passengerNumber"`
	AllowanceUnit         string  `bson:"allowanceUnit"`
	CheckedAllowanceValue float64 `bson:"checkedAllowanceValue"`
	CarryOnAllowanceValue float64 `bson:"carryOnAllowanceValue"`
}

func (a allowanceDocument) toDomain() pnragg.BaggageAllowance {
	return pnragg.BaggageAllowance{
		PassengerNumber:       a.PassengerNumber,
		AllowanceUnit:         pnragg.AllowanceUnit(a.AllowanceUnit),
		CheckedAllowanceValue: a.CheckedAllowanceValue,
		CarryOnAllowanceValue: a.CarryOnAllowanceValue,
	}
}

type baggageDocument struct {
	BookingReference string              `bson:"bookingReference"`
	Allowances       []allowanceDocument `bson:"allowances"`
}

func (b baggageDocument) toDomain() *pnragg.Baggage {
	allowances := make([]pnragg.BaggageAllowance, len(b.Allowances))
	for i, a := range b.Allowances {
		allowances[i] = a.toDomain()
	}
	return &pnragg.Baggage{
		BookingReference: b.BookingReference,
		Allowances:       allowances,
	}
}

type ticketDocument struct {
	BookingReference string `bson:"bookingReference"`
	PassengerNumber  int    `bson:"passengerNumber"`
	TicketURL        string `bson:"ticketUrl"`
}

func (t ticketDocument) toDomain() *pnragg.Ticket {
	return &pnragg.Ticket{
		BookingReference: t.BookingReference,
		PassengerNumber:  t.PassengerNumber,
		TicketURL:        t.TicketURL,
	}
}

type customerBookingsDocument struct {
	CustomerID string   `bson:"customerId"`
	PNRs       []string `bson:"pnrs"`
}
