package repository

import (
	"context"
	"slices"

	"github.com/Domenick1991/flightbookings/internal/domain"
)

// MemoryBookingMap keeps bookings in a hash map plus a sorted id slice.
// It is not durable and not safe for concurrent use; BookingStore serializes access.
type MemoryBookingMap struct {
	items map[string]domain.FlightBooking
	keys  []string
}

func NewMemoryBookingMap() *MemoryBookingMap {
	return &MemoryBookingMap{items: make(map[string]domain.FlightBooking)}
}

func (m *MemoryBookingMap) Get(_ context.Context, id string) (domain.FlightBooking, bool, error) {
	b, ok := m.items[id]
	if !ok {
		return domain.FlightBooking{}, false, nil
	}
	return b.Clone(), true, nil
}

func (m *MemoryBookingMap) Insert(_ context.Context, id string, b domain.FlightBooking) (domain.FlightBooking, bool, error) {
	prev, existed := m.items[id]
	if !existed {
		pos, _ := slices.BinarySearch(m.keys, id)
		m.keys = slices.Insert(m.keys, pos, id)
	}
	m.items[id] = b.Clone()
	return prev, existed, nil
}

func (m *MemoryBookingMap) Remove(_ context.Context, id string) (domain.FlightBooking, bool, error) {
	prev, existed := m.items[id]
	if !existed {
		return domain.FlightBooking{}, false, nil
	}
	delete(m.items, id)
	if pos, found := slices.BinarySearch(m.keys, id); found {
		m.keys = slices.Delete(m.keys, pos, pos+1)
	}
	return prev, true, nil
}

func (m *MemoryBookingMap) Values(_ context.Context) ([]domain.FlightBooking, error) {
	values := make([]domain.FlightBooking, 0, len(m.keys))
	for _, k := range m.keys {
		values = append(values, m.items[k].Clone())
	}
	return values, nil
}

// Len is O(1).
func (m *MemoryBookingMap) Len(_ context.Context) (int, error) {
	return len(m.items), nil
}

var _ BookingMap = (*MemoryBookingMap)(nil)
