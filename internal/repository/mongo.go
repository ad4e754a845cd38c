package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/flightbookings/config"
	"github.com/Domenick1991/flightbookings/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "FlightBookings"

// MongoBookingMap stores one document per booking with the booking id as _id.
// String _id values sort bytewise under the default collation.
type MongoBookingMap struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoBookingMap(ctx context.Context, cfg config.MongoConfig) (*MongoBookingMap, error) {
	opts := options.Client().ApplyURI(cfg.URI).SetRegistry(newMongoRegistry())
	if cfg.ConnectTimeout > 0 {
		opts.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoBookingMap{
		client:     client,
		collection: client.Database(cfg.Database).Collection(CollectionName),
	}, nil
}

func (m *MongoBookingMap) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoBookingMap) Get(ctx context.Context, id string) (domain.FlightBooking, bool, error) {
	var b domain.FlightBooking
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.FlightBooking{}, false, nil
		}
		return domain.FlightBooking{}, false, fmt.Errorf("failed to find booking %q: %w", id, err)
	}
	return b, true, nil
}

func (m *MongoBookingMap) Insert(ctx context.Context, id string, b domain.FlightBooking) (domain.FlightBooking, bool, error) {
	b.ID = id
	opts := options.FindOneAndReplace().
		SetUpsert(true).
		SetReturnDocument(options.Before)

	var prev domain.FlightBooking
	err := m.collection.FindOneAndReplace(ctx, bson.M{"_id": id}, b, opts).Decode(&prev)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.FlightBooking{}, false, nil
		}
		return domain.FlightBooking{}, false, fmt.Errorf("failed to store booking %q: %w", id, err)
	}
	return prev, true, nil
}

func (m *MongoBookingMap) Remove(ctx context.Context, id string) (domain.FlightBooking, bool, error) {
	var prev domain.FlightBooking
	err := m.collection.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&prev)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.FlightBooking{}, false, nil
		}
		return domain.FlightBooking{}, false, fmt.Errorf("failed to delete booking %q: %w", id, err)
	}
	return prev, true, nil
}

func (m *MongoBookingMap) Values(ctx context.Context) ([]domain.FlightBooking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := m.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	values := make([]domain.FlightBooking, 0)
	if err := cursor.All(ctx, &values); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return values, nil
}

// Len uses CountDocuments, an O(n) collection scan.
func (m *MongoBookingMap) Len(ctx context.Context) (int, error) {
	n, err := m.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return int(n), nil
}

var _ BookingMap = (*MongoBookingMap)(nil)
