package domain

// FlightBooking is a stored booking. ID and CreatedAt never change after creation.
// Times are nanosecond epoch ticks.
type FlightBooking struct {
	ID               string  `json:"id" bson:"_id"`
	Airline          string  `json:"airline" bson:"airline"`
	DepartureAirport string  `json:"departure_airport" bson:"departure_airport"`
	ArrivalAirport   string  `json:"arrival_airport" bson:"arrival_airport"`
	DepartureTime    uint64  `json:"departure_time" bson:"departure_time"`
	ArrivalTime      uint64  `json:"arrival_time" bson:"arrival_time"`
	CreatedAt        uint64  `json:"created_at" bson:"created_at"`
	UpdatedAt        *uint64 `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// FlightBookingPayload is the mutable part of a booking, used by create and update.
type FlightBookingPayload struct {
	Airline          string `json:"airline" validate:"required"`
	DepartureAirport string `json:"departure_airport" validate:"required"`
	ArrivalAirport   string `json:"arrival_airport" validate:"required"`
	DepartureTime    uint64 `json:"departure_time" validate:"required"`
	ArrivalTime      uint64 `json:"arrival_time" validate:"required"`
}

// Apply copies the payload fields onto b, leaving ID, CreatedAt and UpdatedAt alone.
func (p FlightBookingPayload) Apply(b *FlightBooking) {
	b.Airline = p.Airline
	b.DepartureAirport = p.DepartureAirport
	b.ArrivalAirport = p.ArrivalAirport
	b.DepartureTime = p.DepartureTime
	b.ArrivalTime = p.ArrivalTime
}

// Clone returns a copy of b that shares no memory with it.
func (b FlightBooking) Clone() FlightBooking {
	if b.UpdatedAt != nil {
		updated := *b.UpdatedAt
		b.UpdatedAt = &updated
	}
	return b
}
