// Package store is the document-store client: trips, baggage, tickets and
// the optional customer-to-PNR index, backed by MongoDB. Source fetchers
// depend only on narrow interfaces of the same shape as those below (declared
// in internal/fetcher) so tests can substitute a fake (see internal/testutil).
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pnragg/service/internal/pnragg"
)

// TripStore finds one trip document keyed by bookingReference (the PNR).
type TripStore interface {
	FindTrip(ctx context.Context, pnr string) (*pnragg.Trip, error)
}

// BaggageStore finds one baggage document keyed by bookingReference.
type BaggageStore interface {
	FindBaggage(ctx context.Context, pnr string) (*pnragg.Baggage, error)
}

// TicketStore finds one ticket document keyed by (bookingReference, passengerNumber).
type TicketStore interface {
	FindTicket(ctx context.Context, pnr string, passengerNumber int) (*pnragg.Ticket, error)
}

// CustomerStore resolves a customer id to the set of PNRs they appear on.
type CustomerStore interface {
	FindCustomerPNRs(ctx context.Context, customerID string) ([]string, error)
}

// Store composes the document-store surface the aggregator depends on.
type Store interface {
	TripStore
	BaggageStore
	TicketStore
	CustomerStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Config is the document-store connection surface: host/port/database and
// the per-query timeouts.
type Config struct {
	Host                   string
	Port                   int
	Database               string
	ConnectTimeout         time.Duration
	SocketTimeout          time.Duration
	ServerSelectionTimeout time.Duration
}

// Mongo is the MongoDB-backed Store.
type Mongo struct {
	client           *mongo.Client
	trips            *mongo.Collection
	baggage          *mongo.Collection
	tickets          *mongo.Collection
	customerBookings *mongo.Collection
	queryTimeout     time.Duration
}

// New connects to MongoDB and returns a Store ready for EnsureIndexes.
func New(ctx context.Context, cfg Config) (*Mongo, error) {
	uri := fmt.Sprintf("mongodb://%s:%d", cfg.Host, cfg.Port)
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetSocketTimeout(cfg.SocketTimeout).
		SetServerSelectionTimeout(cfg.ServerSelectionTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect document store: %w", err)
	}

	db := client.Database(cfg.Database)
	m := &Mongo{
		client:           client,
		trips:            db.Collection("trips"),
		baggage:          db.Collection("baggage"),
		tickets:          db.Collection("tickets"),
		customerBookings: db.Collection("customer_bookings"),
		queryTimeout:     cfg.ServerSelectionTimeout,
	}
	if m.queryTimeout <= 0 {
		m.queryTimeout = 5 * time.Second
	}
	return m, nil
}

// EnsureIndexes creates the collection indexes, including the
// {bookingReference, departureDate} index whose departureDate field this
// service never populates — the field is reserved.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	if _, err := m.trips.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "bookingReference", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "bookingReference", Value: 1}, {Key: "departureDate", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("ensure trips indexes: %w", err)
	}
	if _, err := m.baggage.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "bookingReference", Value: 1}}, Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("ensure baggage index: %w", err)
	}
	if _, err := m.tickets.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "bookingReference", Value: 1}, {Key: "passengerNumber", Value: 1}}, Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("ensure tickets index: %w", err)
	}
	if _, err := m.customerBookings.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "customerId", Value: 1}}, Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("ensure customer_bookings index: %w", err)
	}
	return nil
}

// Ping verifies connectivity, used by the /readyz handler.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Close disconnects from the document store.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.queryTimeout)
}

// FindTrip returns pnragg.ErrNotFound, wrapped, when no trip document exists
// for pnr — the classification that keeps the trip breaker from tripping on
// a business-valid absence.
func (m *Mongo) FindTrip(ctx context.Context, pnr string) (*pnragg.Trip, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	raw, err := m.trips.FindOne(ctx, bson.M{"bookingReference": pnr}).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("find trip %s: %w", pnr, pnragg.ErrNotFound)
		}
		return nil, fmt.Errorf("find trip %s: %w", pnr, err)
	}

	var doc tripDocument
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode trip %s: %w", pnr, err)
	}
	trip := doc.toDomain()
	trip.PNRFallbackMsg = nil // only set by the fallback path, not a live fetch
	if d := departureDate(raw); d != "" {
		slog.Debug("trip document carries reserved departureDate field", "pnr", pnr, "departureDate", d)
	}
	return trip, nil
}

// FindBaggage returns pnragg.ErrNotFound, wrapped, when no baggage document
// exists for pnr.
func (m *Mongo) FindBaggage(ctx context.Context, pnr string) (*pnragg.Baggage, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var doc baggageDocument
	if err := m.baggage.FindOne(ctx, bson.M{"bookingReference": pnr}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("find baggage %s: %w", pnr, pnragg.ErrNotFound)
		}
		return nil, fmt.Errorf("find baggage %s: %w", pnr, err)
	}
	return doc.toDomain(), nil
}

// FindTicket returns pnragg.ErrNotFound, wrapped, when no ticket exists for
// the (pnr, passengerNumber) pair — a valid, non-degrading absence.
func (m *Mongo) FindTicket(ctx context.Context, pnr string, passengerNumber int) (*pnragg.Ticket, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var doc ticketDocument
	filter := bson.M{"bookingReference": pnr, "passengerNumber": passengerNumber}
	if err := m.tickets.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("find ticket %s/%d: %w", pnr, passengerNumber, pnragg.ErrNotFound)
		}
		return nil, fmt.Errorf("find ticket %s/%d: %w", pnr, passengerNumber, err)
	}
	return doc.toDomain(), nil
}

// FindCustomerPNRs resolves a customerId to its set of PNRs via the optional
// customer_bookings index. An unknown customer is an empty set, not an error.
func (m *Mongo) FindCustomerPNRs(ctx context.Context, customerID string) ([]string, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var doc customerBookingsDocument
	if err := m.customerBookings.FindOne(ctx, bson.M{"customerId": customerID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find customer bookings %s: %w", customerID, err)
	}
	return doc.PNRs, nil
}

// departureDate peeks the reserved departureDate field on a raw trip
// document without committing to a typed field.
func departureDate(raw []byte) string {
	ext, err := bson.MarshalExtJSON(bson.Raw(raw), true, true)
	if err != nil {
		return ""
	}
	return gjson.GetBytes(ext, "departureDate").String()
}
