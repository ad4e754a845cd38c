package audit

import (
	"context"
	"fmt"

	"github.com/Domenick1991/flightbookings/internal/kafka"
	"github.com/Domenick1991/flightbookings/internal/logger"
)

// Recorder writes one structured audit line per booking event.
type Recorder struct {
	log logger.Logger
}

func NewRecorder(log logger.Logger) *Recorder {
	return &Recorder{log: log.With("component", "audit")}
}

func (r *Recorder) Record(_ context.Context, event kafka.BookingEvent) error {
	switch event.Type {
	case kafka.EventBookingCreated, kafka.EventBookingUpdated, kafka.EventBookingDeleted:
	default:
		return fmt.Errorf("unknown booking event type %q", event.Type)
	}

	r.log.Info("booking changed",
		"type", event.Type,
		"sequence", event.Sequence,
		"id", event.BookingID,
		"airline", event.Booking.Airline,
		"departure_airport", event.Booking.DepartureAirport,
		"arrival_airport", event.Booking.ArrivalAirport,
		"occurred_at", event.OccurredAt,
	)
	return nil
}
