package booking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/flightbookings/internal/domain"
	"github.com/Domenick1991/flightbookings/internal/kafka"
	"github.com/Domenick1991/flightbookings/internal/logger"
	"github.com/Domenick1991/flightbookings/internal/metrics"
	"github.com/Domenick1991/flightbookings/internal/repository"
	"github.com/google/uuid"
)

type BookingUseCase interface {
	List(ctx context.Context) ([]domain.FlightBooking, error)
	Get(ctx context.Context, id string) (*domain.FlightBooking, error)
	Add(ctx context.Context, payload domain.FlightBookingPayload) (*domain.FlightBooking, error)
	Update(ctx context.Context, id string, payload domain.FlightBookingPayload) (*domain.FlightBooking, error)
	Delete(ctx context.Context, id string) (*domain.FlightBooking, error)
	Search(ctx context.Context, keyword string) ([]domain.FlightBooking, error)
	Count(ctx context.Context) (int, error)
	Paginated(ctx context.Context, page, pageSize int) ([]domain.FlightBooking, error)
	ByTimeRange(ctx context.Context, startTime, endTime uint64) ([]domain.FlightBooking, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// BookingStore implements BookingUseCase on top of an ordered map. Every
// operation holds mu for its whole duration, so no two operations interleave.
// All filters are full scans over the map's values.
type BookingStore struct {
	mu        sync.Mutex
	bookings  repository.BookingMap
	validator *PayloadValidator

	now   func() uint64
	newID func() string

	producer    Producer
	eventsTopic string
	// seq counts applied writes; guarded by mu.
	seq uint64
	log         logger.Logger
	metrics     *metrics.Metrics
}

type BookingStoreOption func(*BookingStore)

func WithClock(now func() uint64) BookingStoreOption {
	return func(s *BookingStore) {
		s.now = now
	}
}

func WithIDGenerator(newID func() string) BookingStoreOption {
	return func(s *BookingStore) {
		s.newID = newID
	}
}

// WithEvents publishes a kafka.BookingEvent to topic after each successful write.
// Publishing happens outside the lock, so consumers order events by Sequence.
func WithEvents(producer Producer, topic string) BookingStoreOption {
	return func(s *BookingStore) {
		s.producer = producer
		s.eventsTopic = topic
	}
}

func WithLogger(log logger.Logger) BookingStoreOption {
	return func(s *BookingStore) {
		s.log = log
	}
}

func WithMetrics(m *metrics.Metrics) BookingStoreOption {
	return func(s *BookingStore) {
		s.metrics = m
	}
}

func NewBookingStore(bookings repository.BookingMap, opts ...BookingStoreOption) *BookingStore {
	store := &BookingStore{
		bookings:  bookings,
		validator: NewPayloadValidator(),
		now:       func() uint64 { return uint64(time.Now().UnixNano()) },
		newID:     uuid.NewString,
		log:       logger.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *BookingStore) List(ctx context.Context) ([]domain.FlightBooking, error) {
	defer s.observe("list", time.Now())()

	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.bookings.Values(ctx)
	if err != nil {
		return nil, s.fail("list", domain.StorageFault("list", err))
	}
	return values, s.ok("list")
}

func (s *BookingStore) Get(ctx context.Context, id string) (*domain.FlightBooking, error) {
	defer s.observe("get", time.Now())()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, s.fail("get", domain.StorageFault("get", err))
	}
	if !ok {
		return nil, s.fail("get", domain.NotFound(id))
	}
	return &b, s.ok("get")
}

func (s *BookingStore) Add(ctx context.Context, payload domain.FlightBookingPayload) (*domain.FlightBooking, error) {
	defer s.observe("add", time.Now())()

	if err := s.validator.Validate(payload); err != nil {
		return nil, s.fail("add", err)
	}

	booking, seq, err := s.add(ctx, payload)
	if err != nil {
		return nil, s.fail("add", err)
	}
	if s.metrics != nil {
		s.metrics.StoredRecords.Inc()
	}
	s.publish(ctx, kafka.EventBookingCreated, seq, booking)
	return booking, s.ok("add")
}

func (s *BookingStore) add(ctx context.Context, payload domain.FlightBookingPayload) (*domain.FlightBooking, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking := domain.FlightBooking{
		ID:        s.newID(),
		CreatedAt: s.now(),
	}
	payload.Apply(&booking)

	if _, _, err := s.bookings.Insert(ctx, booking.ID, booking); err != nil {
		return nil, 0, domain.StorageFault("add", err)
	}
	s.seq++
	return &booking, s.seq, nil
}

func (s *BookingStore) Update(ctx context.Context, id string, payload domain.FlightBookingPayload) (*domain.FlightBooking, error) {
	defer s.observe("update", time.Now())()

	if err := s.validator.Validate(payload); err != nil {
		return nil, s.fail("update", err)
	}

	booking, seq, err := s.update(ctx, id, payload)
	if err != nil {
		return nil, s.fail("update", err)
	}
	s.publish(ctx, kafka.EventBookingUpdated, seq, booking)
	return booking, s.ok("update")
}

func (s *BookingStore) update(ctx context.Context, id string, payload domain.FlightBookingPayload) (*domain.FlightBooking, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, 0, domain.StorageFault("update", err)
	}
	if !ok {
		return nil, 0, domain.NotFound(id)
	}

	payload.Apply(&current)
	updatedAt := s.now()
	current.UpdatedAt = &updatedAt

	if _, _, err := s.bookings.Insert(ctx, id, current); err != nil {
		return nil, 0, domain.StorageFault("update", err)
	}
	s.seq++
	return &current, s.seq, nil
}

func (s *BookingStore) Delete(ctx context.Context, id string) (*domain.FlightBooking, error) {
	defer s.observe("delete", time.Now())()

	booking, seq, err := s.remove(ctx, id)
	if err != nil {
		return nil, s.fail("delete", err)
	}
	if s.metrics != nil {
		s.metrics.StoredRecords.Dec()
	}
	s.publish(ctx, kafka.EventBookingDeleted, seq, booking)
	return booking, s.ok("delete")
}

func (s *BookingStore) remove(ctx context.Context, id string) (*domain.FlightBooking, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, ok, err := s.bookings.Remove(ctx, id)
	if err != nil {
		return nil, 0, domain.StorageFault("delete", err)
	}
	if !ok {
		return nil, 0, domain.NotFound(id)
	}
	s.seq++
	return &removed, s.seq, nil
}

// Search matches keyword case-insensitively against the airline only.
// An empty keyword matches every booking.
func (s *BookingStore) Search(ctx context.Context, keyword string) ([]domain.FlightBooking, error) {
	defer s.observe("search", time.Now())()

	needle := strings.ToLower(keyword)
	return s.filter(ctx, "search", func(b domain.FlightBooking) bool {
		return strings.Contains(strings.ToLower(b.Airline), needle)
	})
}

// ByTimeRange returns bookings whose whole flight lies inside [startTime, endTime].
// Flights that only overlap the range are excluded.
func (s *BookingStore) ByTimeRange(ctx context.Context, startTime, endTime uint64) ([]domain.FlightBooking, error) {
	defer s.observe("by_time_range", time.Now())()

	return s.filter(ctx, "by_time_range", func(b domain.FlightBooking) bool {
		return b.DepartureTime >= startTime && b.ArrivalTime <= endTime
	})
}

func (s *BookingStore) Count(ctx context.Context) (int, error) {
	defer s.observe("count", time.Now())()

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.bookings.Len(ctx)
	if err != nil {
		return 0, s.fail("count", domain.StorageFault("count", err))
	}
	if s.metrics != nil {
		s.metrics.StoredRecords.Set(float64(n))
	}
	return n, s.ok("count")
}

// Paginated returns the 1-indexed page of the id-ordered bookings. A page past
// the end, or a non-positive page or pageSize, yields an empty list.
func (s *BookingStore) Paginated(ctx context.Context, page, pageSize int) ([]domain.FlightBooking, error) {
	defer s.observe("paginated", time.Now())()

	if page <= 0 || pageSize <= 0 {
		return []domain.FlightBooking{}, s.ok("paginated")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.bookings.Values(ctx)
	if err != nil {
		return nil, s.fail("paginated", domain.StorageFault("paginated", err))
	}

	if len(all) == 0 || page-1 > (len(all)-1)/pageSize {
		return []domain.FlightBooking{}, s.ok("paginated")
	}
	start := (page - 1) * pageSize
	end := len(all)
	if end-start > pageSize {
		end = start + pageSize
	}
	return all[start:end], s.ok("paginated")
}

func (s *BookingStore) filter(ctx context.Context, op string, keep func(domain.FlightBooking) bool) ([]domain.FlightBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.bookings.Values(ctx)
	if err != nil {
		return nil, s.fail(op, domain.StorageFault(op, err))
	}

	matched := make([]domain.FlightBooking, 0)
	for _, b := range all {
		if keep(b) {
			matched = append(matched, b)
		}
	}
	return matched, s.ok(op)
}

func (s *BookingStore) publish(ctx context.Context, eventType string, seq uint64, booking *domain.FlightBooking) {
	if s.producer == nil || s.eventsTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:       eventType,
		Sequence:   seq,
		BookingID:  booking.ID,
		Booking:    *booking,
		OccurredAt: s.now(),
	}
	if err := s.producer.Publish(ctx, s.eventsTopic, booking.ID, event); err != nil {
		s.log.Warn("failed to publish booking event", "type", eventType, "id", booking.ID, "error", err)
		if s.metrics != nil {
			s.metrics.EventsFailed.Inc()
		}
	}
}

func (s *BookingStore) observe(op string, start time.Time) func() {
	return func() {
		if s.metrics != nil {
			s.metrics.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		}
	}
}

func (s *BookingStore) ok(op string) error {
	if s.metrics != nil {
		s.metrics.Operations.WithLabelValues(op, "ok").Inc()
	}
	return nil
}

func (s *BookingStore) fail(op string, err error) error {
	outcome := "error"
	var storeErr *domain.Error
	if errors.As(err, &storeErr) {
		outcome = string(storeErr.Kind)
		if storeErr.Kind == domain.KindStorageFault {
			s.log.Error("booking storage failure", "operation", op, "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.Operations.WithLabelValues(op, outcome).Inc()
	}
	return err
}

var _ BookingUseCase = (*BookingStore)(nil)
