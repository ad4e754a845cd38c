package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/flightbookings/config"
	"github.com/Domenick1991/flightbookings/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisBookingMap keeps booking JSON in a hash and the ids in a sorted set with
// every score at 0, so ZRANGE returns them in lexicographic order.
type RedisBookingMap struct {
	client *redis.Client
	prefix string
}

func NewRedisBookingMap(cfg config.RedisConfig) *RedisBookingMap {
	return newRedisBookingMap(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		cfg.KeyPrefix,
	)
}

func newRedisBookingMap(client *redis.Client, prefix string) *RedisBookingMap {
	if prefix == "" {
		prefix = "bookings"
	}
	return &RedisBookingMap{client: client, prefix: prefix}
}

func (m *RedisBookingMap) Close() error {
	return m.client.Close()
}

func (m *RedisBookingMap) Get(ctx context.Context, id string) (domain.FlightBooking, bool, error) {
	return m.get(ctx, id)
}

func (m *RedisBookingMap) Insert(ctx context.Context, id string, b domain.FlightBooking) (domain.FlightBooking, bool, error) {
	data, err := encodeBooking(b)
	if err != nil {
		return domain.FlightBooking{}, false, err
	}

	prev, existed, err := m.get(ctx, id)
	if err != nil {
		return domain.FlightBooking{}, false, err
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, dataKey(m.prefix), id, data)
		pipe.ZAdd(ctx, idsKey(m.prefix), redis.Z{Score: 0, Member: id})
		return nil
	})
	if err != nil {
		return domain.FlightBooking{}, false, fmt.Errorf("insert %q: %w", id, err)
	}
	return prev, existed, nil
}

func (m *RedisBookingMap) Remove(ctx context.Context, id string) (domain.FlightBooking, bool, error) {
	prev, existed, err := m.get(ctx, id)
	if err != nil || !existed {
		return domain.FlightBooking{}, false, err
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, dataKey(m.prefix), id)
		pipe.ZRem(ctx, idsKey(m.prefix), id)
		return nil
	})
	if err != nil {
		return domain.FlightBooking{}, false, fmt.Errorf("remove %q: %w", id, err)
	}
	return prev, true, nil
}

func (m *RedisBookingMap) Values(ctx context.Context) ([]domain.FlightBooking, error) {
	ids, err := m.client.ZRange(ctx, idsKey(m.prefix), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	values := make([]domain.FlightBooking, 0, len(ids))
	if len(ids) == 0 {
		return values, nil
	}

	raw, err := m.client.HMGet(ctx, dataKey(m.prefix), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		b, err := decodeBooking([]byte(s))
		if err != nil {
			return nil, err
		}
		values = append(values, b)
	}
	return values, nil
}

// Len is HLEN, O(1).
func (m *RedisBookingMap) Len(ctx context.Context) (int, error) {
	n, err := m.client.HLen(ctx, dataKey(m.prefix)).Result()
	if err != nil {
		return 0, fmt.Errorf("count bookings: %w", err)
	}
	return int(n), nil
}

func (m *RedisBookingMap) get(ctx context.Context, id string) (domain.FlightBooking, bool, error) {
	data, err := m.client.HGet(ctx, dataKey(m.prefix), id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.FlightBooking{}, false, nil
		}
		return domain.FlightBooking{}, false, fmt.Errorf("get %q: %w", id, err)
	}
	b, err := decodeBooking(data)
	if err != nil {
		return domain.FlightBooking{}, false, err
	}
	return b, true, nil
}

func dataKey(prefix string) string {
	return prefix + ":data"
}

func idsKey(prefix string) string {
	return prefix + ":ids"
}

var _ BookingMap = (*RedisBookingMap)(nil)
