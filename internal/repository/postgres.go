package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/flightbookings/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGBookingMap keeps bookings as JSONB rows. Ordering uses the "C" collation so
// ids compare bytewise regardless of the database locale.
type PGBookingMap struct {
	db *pgxpool.Pool
}

func NewPGBookingMap(db *pgxpool.Pool) *PGBookingMap {
	return &PGBookingMap{db: db}
}

func (m *PGBookingMap) Get(ctx context.Context, id string) (domain.FlightBooking, bool, error) {
	var data []byte
	err := m.db.QueryRow(ctx, `SELECT data FROM flight_bookings WHERE id=$1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.FlightBooking{}, false, nil
	}
	if err != nil {
		return domain.FlightBooking{}, false, fmt.Errorf("get %q: %w", id, err)
	}
	b, err := decodeBooking(data)
	if err != nil {
		return domain.FlightBooking{}, false, err
	}
	return b, true, nil
}

func (m *PGBookingMap) Insert(ctx context.Context, id string, b domain.FlightBooking) (domain.FlightBooking, bool, error) {
	data, err := encodeBooking(b)
	if err != nil {
		return domain.FlightBooking{}, false, err
	}

	tx, err := m.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.FlightBooking{}, false, err
	}
	defer tx.Rollback(ctx)

	var prev domain.FlightBooking
	var prevData []byte
	existed := true
	err = tx.QueryRow(ctx, `SELECT data FROM flight_bookings WHERE id=$1 FOR UPDATE`, id).Scan(&prevData)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		existed = false
	case err != nil:
		return domain.FlightBooking{}, false, fmt.Errorf("read previous %q: %w", id, err)
	default:
		if prev, err = decodeBooking(prevData); err != nil {
			return domain.FlightBooking{}, false, err
		}
	}

	if _, err := tx.Exec(ctx, `INSERT INTO flight_bookings (id, data) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`, id, data); err != nil {
		return domain.FlightBooking{}, false, fmt.Errorf("upsert %q: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.FlightBooking{}, false, err
	}
	return prev, existed, nil
}

func (m *PGBookingMap) Remove(ctx context.Context, id string) (domain.FlightBooking, bool, error) {
	var data []byte
	err := m.db.QueryRow(ctx, `DELETE FROM flight_bookings WHERE id=$1 RETURNING data`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.FlightBooking{}, false, nil
	}
	if err != nil {
		return domain.FlightBooking{}, false, fmt.Errorf("delete %q: %w", id, err)
	}
	b, err := decodeBooking(data)
	if err != nil {
		return domain.FlightBooking{}, false, err
	}
	return b, true, nil
}

func (m *PGBookingMap) Values(ctx context.Context) ([]domain.FlightBooking, error) {
	rows, err := m.db.Query(ctx, `SELECT data FROM flight_bookings ORDER BY id COLLATE "C"`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make([]domain.FlightBooking, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		b, err := decodeBooking(data)
		if err != nil {
			return nil, err
		}
		values = append(values, b)
	}
	return values, rows.Err()
}

// Len runs count(*), which is O(n) in PostgreSQL.
func (m *PGBookingMap) Len(ctx context.Context) (int, error) {
	var n int
	if err := m.db.QueryRow(ctx, `SELECT count(*) FROM flight_bookings`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

var _ BookingMap = (*PGBookingMap)(nil)
