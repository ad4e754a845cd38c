package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Domenick1991/flightbookings/internal/domain"
)

// BookingMap is an ordered map from booking id to booking. Values are returned
// in ascending byte order of their ids.
type BookingMap interface {
	Get(ctx context.Context, id string) (domain.FlightBooking, bool, error)
	// Insert stores b under id and returns the value it replaced, if any.
	Insert(ctx context.Context, id string, b domain.FlightBooking) (domain.FlightBooking, bool, error)
	Remove(ctx context.Context, id string) (domain.FlightBooking, bool, error)
	Values(ctx context.Context) ([]domain.FlightBooking, error)
	Len(ctx context.Context) (int, error)
}

const tableName = "flight_bookings"

func encodeBooking(b domain.FlightBooking) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode booking %s: %w", b.ID, err)
	}
	return data, nil
}

func decodeBooking(data []byte) (domain.FlightBooking, error) {
	var b domain.FlightBooking
	if err := json.Unmarshal(data, &b); err != nil {
		return domain.FlightBooking{}, fmt.Errorf("decode booking: %w", err)
	}
	return b, nil
}
