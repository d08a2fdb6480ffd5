package store

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestTripDocument_ToDomain(t *testing.T) {
	t.Parallel()

	doc := tripDocument{
		BookingReference: "GHTW42",
		CabinClass:       "ECONOMY",
		Passengers: []passengerDocument{
			{FirstName: "Ada", LastName: "Lovelace", PassengerNumber: 1},
			{FirstName: "Alan", LastName: "Turing", PassengerNumber: 2},
		},
		Flights: []flightDocument{
			{FlightNumber: "BA123", DepartureAirport: "LHR", ArrivalAirport: "JFK"},
		},
	}

	trip := doc.toDomain()
	if trip.BookingReference != "GHTW42" {
		t.Fatalf("bookingReference = %q, want GHTW42", trip.BookingReference)
	}
	if len(trip.Passengers) != 2 {
		t.Fatalf("len(passengers) = %d, want 2", len(trip.Passengers))
	}
	if len(trip.Flights) != 1 {
		t.Fatalf("len(flights) = %d, want 1", len(trip.Flights))
	}
}

func TestBaggageDocument_ToDomain(t *testing.T) {
	t.Parallel()

	doc := baggageDocument{
		BookingReference: "GHTW42",
		Allowances: []allowanceDocument{
			{PassengerNumber: 1, AllowanceUnit: "kg", CheckedAllowanceValue: 23, CarryOnAllowanceValue: 7},
		},
	}

	baggage := doc.toDomain()
	if len(baggage.Allowances) != 1 {
		t.Fatalf("len(allowances) = %d, want 1", len(baggage.Allowances))
	}
	if baggage.Allowances[0].AllowanceUnit != "kg" {
		t.Fatalf("allowanceUnit = %q, want kg", baggage.Allowances[0].AllowanceUnit)
	}
}

func TestDepartureDate_PresentAndAbsent(t *testing.T) {
	t.Parallel()

	withField, err := bson.Marshal(bson.M{"bookingReference": "GHTW42", "departureDate": "2026-01-01"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := departureDate(withField); got != "2026-01-01" {
		t.Fatalf("departureDate = %q, want 2026-01-01", got)
	}

	withoutField, err := bson.Marshal(bson.M{"bookingReference": "GHTW42"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := departureDate(withoutField); got != "" {
		t.Fatalf("departureDate = %q, want empty", got)
	}
}
