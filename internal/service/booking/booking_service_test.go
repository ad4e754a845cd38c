package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/Domenick1991/flightbookings/internal/domain"
	"github.com/Domenick1991/flightbookings/internal/kafka"
	"github.com/Domenick1991/flightbookings/internal/metrics"
	"github.com/Domenick1991/flightbookings/internal/repository"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

// MockBookingMap lets tests force storage failures.
type MockBookingMap struct {
	mock.Mock
}

func (m *MockBookingMap) Get(ctx context.Context, id string) (domain.FlightBooking, bool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.FlightBooking), args.Bool(1), args.Error(2)
}

func (m *MockBookingMap) Insert(ctx context.Context, id string, b domain.FlightBooking) (domain.FlightBooking, bool, error) {
	args := m.Called(ctx, id, b)
	return args.Get(0).(domain.FlightBooking), args.Bool(1), args.Error(2)
}

func (m *MockBookingMap) Remove(ctx context.Context, id string) (domain.FlightBooking, bool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.FlightBooking), args.Bool(1), args.Error(2)
}

func (m *MockBookingMap) Values(ctx context.Context) ([]domain.FlightBooking, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FlightBooking), args.Error(1)
}

func (m *MockBookingMap) Len(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// sequentialIDs yields k1, k2, ... so map order equals creation order for up to nine records.
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("k%d", n)
	}
}

func tickingClock(start uint64) func() uint64 {
	now := start
	return func() uint64 {
		now++
		return now
	}
}

func newTestStore(t *testing.T, opts ...BookingStoreOption) *BookingStore {
	t.Helper()
	opts = append([]BookingStoreOption{
		WithIDGenerator(sequentialIDs()),
		WithClock(tickingClock(1000)),
	}, opts...)
	return NewBookingStore(repository.NewMemoryBookingMap(), opts...)
}

func validPayload(airline string) domain.FlightBookingPayload {
	return domain.FlightBookingPayload{
		Airline:          airline,
		DepartureAirport: "JFK",
		ArrivalAirport:   "LAX",
		DepartureTime:    100,
		ArrivalTime:      200,
	}
}

func TestBookingStore_AddThenGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Add(ctx, validPayload("Delta"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, uint64(1001), created.CreatedAt)
	assert.Nil(t, created.UpdatedAt)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, "Delta", got.Airline)
	assert.Equal(t, "JFK", got.DepartureAirport)
	assert.Equal(t, "LAX", got.ArrivalAirport)
	assert.Equal(t, uint64(100), got.DepartureTime)
	assert.Equal(t, uint64(200), got.ArrivalTime)
}

func TestBookingStore_DefaultIDsAreUnique(t *testing.T) {
	store := NewBookingStore(repository.NewMemoryBookingMap())
	ctx := context.Background()

	a, err := store.Add(ctx, validPayload("Delta"))
	require.NoError(t, err)
	b, err := store.Add(ctx, validPayload("Delta"))
	require.NoError(t, err)

	assert.Len(t, a.ID, 36)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotZero(t, a.CreatedAt)
}

func TestBookingStore_AddValidation(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(p *domain.FlightBookingPayload)
		kind    *domain.Error
		message string
	}{
		{
			name:    "empty airline",
			mutate:  func(p *domain.FlightBookingPayload) { p.Airline = "" },
			kind:    domain.ErrInvalidInput,
			message: "airline",
		},
		{
			name:    "empty airports",
			mutate:  func(p *domain.FlightBookingPayload) { p.DepartureAirport = ""; p.ArrivalAirport = "" },
			kind:    domain.ErrInvalidInput,
			message: "departure_airport, arrival_airport",
		},
		{
			name:    "zero departure time",
			mutate:  func(p *domain.FlightBookingPayload) { p.DepartureTime = 0 },
			kind:    domain.ErrInvalidInput,
			message: "departure_time",
		},
		{
			name:    "zero arrival time",
			mutate:  func(p *domain.FlightBookingPayload) { p.ArrivalTime = 0 },
			kind:    domain.ErrInvalidInput,
			message: "arrival_time",
		},
		{
			name:   "departure equals arrival",
			mutate: func(p *domain.FlightBookingPayload) { p.ArrivalTime = p.DepartureTime },
			kind:   domain.ErrInvalidTimeRange,
		},
		{
			name:   "departure after arrival",
			mutate: func(p *domain.FlightBookingPayload) { p.DepartureTime, p.ArrivalTime = 300, 200 },
			kind:   domain.ErrInvalidTimeRange,
		},
		{
			name: "missing field wins over bad range",
			mutate: func(p *domain.FlightBookingPayload) {
				p.Airline = ""
				p.DepartureTime, p.ArrivalTime = 300, 200
			},
			kind: domain.ErrInvalidInput,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore(t)
			ctx := context.Background()
			payload := validPayload("Delta")
			tc.mutate(&payload)

			booking, err := store.Add(ctx, payload)

			assert.Nil(t, booking)
			assert.ErrorIs(t, err, tc.kind)
			if tc.message != "" {
				assert.Contains(t, err.Error(), tc.message)
			}
			n, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestBookingStore_Update(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Add(ctx, validPayload("Delta"))
	require.NoError(t, err)

	updated, err := store.Update(ctx, created.ID, domain.FlightBookingPayload{
		Airline:          "United",
		DepartureAirport: "SFO",
		ArrivalAirport:   "ORD",
		DepartureTime:    500,
		ArrivalTime:      900,
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	require.NotNil(t, updated.UpdatedAt)
	assert.Greater(t, *updated.UpdatedAt, created.CreatedAt)
	assert.Equal(t, "United", updated.Airline)
	assert.Equal(t, "SFO", updated.DepartureAirport)
	assert.Equal(t, "ORD", updated.ArrivalAirport)
	assert.Equal(t, uint64(500), updated.DepartureTime)
	assert.Equal(t, uint64(900), updated.ArrivalTime)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	again, err := store.Update(ctx, created.ID, validPayload("Delta"))
	require.NoError(t, err)
	assert.Greater(t, *again.UpdatedAt, *updated.UpdatedAt)
}

func TestBookingStore_UpdateValidationLeavesRecordUntouched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Add(ctx, validPayload("Delta"))
	require.NoError(t, err)

	bad := validPayload("United")
	bad.ArrivalTime = bad.DepartureTime
	_, err = store.Update(ctx, created.ID, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestBookingStore_UnknownIDIsNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "ghost")

	_, err = store.Update(ctx, "ghost", validPayload("Delta"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "ghost")

	_, err = store.Delete(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "ghost")
}

func TestBookingStore_UpdateValidatesBeforeLookup(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Update(context.Background(), "ghost", domain.FlightBookingPayload{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBookingStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Add(ctx, validPayload("Delta"))
	require.NoError(t, err)

	removed, err := store.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, removed)

	_, err = store.Get(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBookingStore_Search(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, airline := range []string{"Delta", "united", "DELTA AIR", "aa-lines"} {
		_, err := store.Add(ctx, validPayload(airline))
		require.NoError(t, err)
	}

	all, err := store.Search(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	delta, err := store.Search(ctx, "delta")
	require.NoError(t, err)
	require.Len(t, delta, 2)
	assert.Equal(t, "Delta", delta[0].Airline)
	assert.Equal(t, "DELTA AIR", delta[1].Airline)

	aa, err := store.Search(ctx, "AA")
	require.NoError(t, err)
	require.Len(t, aa, 1)
	assert.Equal(t, "aa-lines", aa[0].Airline)

	airport, err := store.Search(ctx, "JFK")
	require.NoError(t, err)
	assert.Empty(t, airport)
	assert.NotNil(t, airport)
}

func TestBookingStore_SearchAndCountScenario(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, airline := range []string{"Delta", "united", "DELTA AIR"} {
		_, err := store.Add(ctx, validPayload(airline))
		require.NoError(t, err)
	}

	found, err := store.Search(ctx, "delta")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestBookingStore_ByTimeRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	add := func(dep, arr uint64) string {
		p := validPayload("Delta")
		p.DepartureTime, p.ArrivalTime = dep, arr
		b, err := store.Add(ctx, p)
		require.NoError(t, err)
		return b.ID
	}
	inside := add(100, 200)
	onEdges := add(50, 300)
	overlapsStart := add(40, 150)
	overlapsEnd := add(250, 400)
	outside := add(500, 600)

	got, err := store.ByTimeRange(ctx, 50, 300)
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, b := range got {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{inside, onEdges}, ids)
	assert.NotContains(t, ids, overlapsStart)
	assert.NotContains(t, ids, overlapsEnd)
	assert.NotContains(t, ids, outside)

	none, err := store.ByTimeRange(ctx, 1000, 2000)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBookingStore_Paginated(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for i := 0; i < 5; i++ {
		_, err := store.Add(ctx, validPayload(fmt.Sprintf("airline-%d", i+1)))
		require.NoError(t, err)
	}

	ids := func(list []domain.FlightBooking) []string {
		out := make([]string, 0, len(list))
		for _, b := range list {
			out = append(out, b.ID)
		}
		return out
	}

	testCases := []struct {
		name     string
		page     int
		pageSize int
		want     []string
	}{
		{name: "first page", page: 1, pageSize: 2, want: []string{"k1", "k2"}},
		{name: "second page", page: 2, pageSize: 2, want: []string{"k3", "k4"}},
		{name: "last partial page", page: 3, pageSize: 2, want: []string{"k5"}},
		{name: "past the end", page: 10, pageSize: 2, want: []string{}},
		{name: "page size larger than store", page: 1, pageSize: 50, want: []string{"k1", "k2", "k3", "k4", "k5"}},
		{name: "zero page", page: 0, pageSize: 2, want: []string{}},
		{name: "negative page", page: -1, pageSize: 2, want: []string{}},
		{name: "zero page size", page: 1, pageSize: 0, want: []string{}},
		{name: "negative page size", page: 1, pageSize: -3, want: []string{}},
		{name: "huge page", page: int(^uint(0) >> 1), pageSize: 2, want: []string{}},
		{name: "huge page size", page: 1, pageSize: int(^uint(0) >> 1), want: []string{"k1", "k2", "k3", "k4", "k5"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.Paginated(ctx, tc.page, tc.pageSize)
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Equal(t, tc.want, ids(got))
		})
	}
}

func TestBookingStore_ListIsKeyOrderedNotInsertionOrdered(t *testing.T) {
	ctx := context.Background()
	ids := []string{"zulu", "alpha", "mike"}
	next := 0
	store := NewBookingStore(repository.NewMemoryBookingMap(), WithIDGenerator(func() string {
		id := ids[next]
		next++
		return id
	}))

	for range ids {
		_, err := store.Add(ctx, validPayload("Delta"))
		require.NoError(t, err)
	}

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].ID)
	assert.Equal(t, "mike", list[1].ID)
	assert.Equal(t, "zulu", list[2].ID)
}

func TestBookingStore_CountTracksAddsAndDeletes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var created []string
	for i := 0; i < 4; i++ {
		b, err := store.Add(ctx, validPayload("Delta"))
		require.NoError(t, err)
		created = append(created, b.ID)
	}
	_, err := store.Delete(ctx, created[0])
	require.NoError(t, err)
	_, err = store.Delete(ctx, "ghost")
	require.Error(t, err)
	_, err = store.Add(ctx, domain.FlightBookingPayload{})
	require.Error(t, err)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestBookingStore_WorksOnSQLite(t *testing.T) {
	m, err := repository.NewSQLiteBookingMap(":memory:")
	require.NoError(t, err)
	defer m.Close()

	store := NewBookingStore(m, WithIDGenerator(sequentialIDs()), WithClock(tickingClock(0)))
	ctx := context.Background()

	for _, airline := range []string{"Delta", "united", "DELTA AIR"} {
		_, err := store.Add(ctx, validPayload(airline))
		require.NoError(t, err)
	}

	found, err := store.Search(ctx, "delta")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	updated, err := store.Update(ctx, "k2", validPayload("United Airlines"))
	require.NoError(t, err)
	require.NotNil(t, updated.UpdatedAt)

	page, err := store.Paginated(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "k3", page[0].ID)

	removed, err := store.Delete(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "Delta", removed.Airline)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestBookingStore_StorageFaults(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")

	m := &MockBookingMap{}
	m.On("Values", ctx).Return(nil, boom)
	m.On("Len", ctx).Return(0, boom)
	m.On("Get", ctx, "a").Return(domain.FlightBooking{}, false, boom)
	m.On("Remove", ctx, "a").Return(domain.FlightBooking{}, false, boom)
	m.On("Insert", ctx, "k1", mock.AnythingOfType("domain.FlightBooking")).Return(domain.FlightBooking{}, false, boom)

	store := NewBookingStore(m, WithIDGenerator(sequentialIDs()))

	_, err := store.List(ctx)
	assert.ErrorIs(t, err, domain.ErrStorageFault)
	assert.ErrorIs(t, err, boom)

	_, err = store.Search(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrStorageFault)

	_, err = store.ByTimeRange(ctx, 0, 10)
	assert.ErrorIs(t, err, domain.ErrStorageFault)

	_, err = store.Paginated(ctx, 1, 10)
	assert.ErrorIs(t, err, domain.ErrStorageFault)

	_, err = store.Count(ctx)
	assert.ErrorIs(t, err, domain.ErrStorageFault)

	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrStorageFault)

	_, err = store.Update(ctx, "a", validPayload("Delta"))
	assert.ErrorIs(t, err, domain.ErrStorageFault)

	_, err = store.Delete(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrStorageFault)

	_, err = store.Add(ctx, validPayload("Delta"))
	assert.ErrorIs(t, err, domain.ErrStorageFault)

	m.AssertExpectations(t)
}

func TestBookingStore_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	producer := &MockProducer{}
	store := newTestStore(t, WithEvents(producer, "booking-events"))

	producer.On("Publish", ctx, "booking-events", "k1", mock.MatchedBy(func(e kafka.BookingEvent) bool {
		return e.Type == kafka.EventBookingCreated && e.Sequence == 1 && e.BookingID == "k1" && e.Booking.Airline == "Delta"
	})).Return(nil).Once()
	producer.On("Publish", ctx, "booking-events", "k1", mock.MatchedBy(func(e kafka.BookingEvent) bool {
		return e.Type == kafka.EventBookingUpdated && e.Sequence == 2 && e.Booking.UpdatedAt != nil
	})).Return(nil).Once()
	producer.On("Publish", ctx, "booking-events", "k1", mock.MatchedBy(func(e kafka.BookingEvent) bool {
		return e.Type == kafka.EventBookingDeleted && e.Sequence == 3 && e.Booking.Airline == "United"
	})).Return(nil).Once()

	_, err := store.Add(ctx, validPayload("Delta"))
	require.NoError(t, err)
	_, err = store.Update(ctx, "k1", validPayload("United"))
	require.NoError(t, err)
	_, err = store.Delete(ctx, "k1")
	require.NoError(t, err)

	producer.AssertExpectations(t)
}

func TestBookingStore_PublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	producer := &MockProducer{}
	reg := prometheus.NewRegistry()
	m := metrics.New("test", reg)
	store := newTestStore(t, WithEvents(producer, "booking-events"), WithMetrics(m))

	producer.On("Publish", ctx, "booking-events", mock.Anything, mock.Anything).Return(errors.New("kafka down"))

	created, err := store.Add(ctx, validPayload("Delta"))
	require.NoError(t, err)
	assert.NotNil(t, created)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsFailed))
}

func TestBookingStore_NoEventsOnFailedWrites(t *testing.T) {
	ctx := context.Background()
	producer := &MockProducer{}
	store := newTestStore(t, WithEvents(producer, "booking-events"))

	_, err := store.Add(ctx, domain.FlightBookingPayload{})
	require.Error(t, err)
	_, err = store.Delete(ctx, "ghost")
	require.Error(t, err)

	producer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBookingStore_Metrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.New("test", prometheus.NewRegistry())
	store := newTestStore(t, WithMetrics(m))

	created, err := store.Add(ctx, validPayload("Delta"))
	require.NoError(t, err)
	_, err = store.Add(ctx, validPayload("United"))
	require.NoError(t, err)
	_, err = store.Get(ctx, "ghost")
	require.Error(t, err)
	_, err = store.Delete(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("get", string(domain.KindNotFound))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoredRecords))

	_, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoredRecords))
}

func TestBookingStore_EventSequenceFollowsWriteOrder(t *testing.T) {
	ctx := context.Background()
	producer := &MockProducer{}
	store := newTestStore(t,
		WithEvents(producer, "booking-events"),
		WithIDGenerator(uuid.NewString),
		WithClock(func() uint64 { return 1000 }),
	)

	var mu sync.Mutex
	var events []kafka.BookingEvent
	producer.On("Publish", ctx, "booking-events", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, args.Get(3).(kafka.BookingEvent))
		}).
		Return(nil)

	_, err := store.Add(ctx, domain.FlightBookingPayload{})
	require.Error(t, err)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := store.Add(ctx, validPayload("Delta"))
			if !assert.NoError(t, err) {
				return
			}
			_, err = store.Delete(ctx, created.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, events, 2*writers)
	sort.Slice(events, func(i, j int) bool { return events[i].Sequence < events[j].Sequence })

	created := make(map[string]uint64)
	for i, e := range events {
		assert.Equal(t, uint64(i+1), e.Sequence)
		switch e.Type {
		case kafka.EventBookingCreated:
			created[e.BookingID] = e.Sequence
		case kafka.EventBookingDeleted:
			seq, ok := created[e.BookingID]
			assert.True(t, ok, "delete of %s ordered before its create", e.BookingID)
			assert.Less(t, seq, e.Sequence)
		}
	}
}
