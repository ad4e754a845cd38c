package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Domenick1991/flightbookings/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteBookingMap stores bookings as JSON rows in an embedded SQLite database.
// SQLite's default BINARY collation orders ids bytewise.
type SQLiteBookingMap struct {
	db *sql.DB
}

// NewSQLiteBookingMap opens (or creates) the database at path.
// Use ":memory:" for a throwaway database.
func NewSQLiteBookingMap(path string) (*SQLiteBookingMap, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// one connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS ` + tableName + ` (
		id   TEXT PRIMARY KEY,
		data TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return newSQLBookingMap(db), nil
}

func newSQLBookingMap(db *sql.DB) *SQLiteBookingMap {
	return &SQLiteBookingMap{db: db}
}

func (m *SQLiteBookingMap) Close() error {
	return m.db.Close()
}

func (m *SQLiteBookingMap) Get(ctx context.Context, id string) (domain.FlightBooking, bool, error) {
	var data []byte
	err := m.db.QueryRowContext(ctx, `SELECT data FROM `+tableName+` WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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

func (m *SQLiteBookingMap) Insert(ctx context.Context, id string, b domain.FlightBooking) (domain.FlightBooking, bool, error) {
	data, err := encodeBooking(b)
	if err != nil {
		return domain.FlightBooking{}, false, err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.FlightBooking{}, false, fmt.Errorf("begin insert %q: %w", id, err)
	}
	defer tx.Rollback()

	var prev domain.FlightBooking
	var prevData []byte
	existed := true
	err = tx.QueryRowContext(ctx, `SELECT data FROM `+tableName+` WHERE id = ?`, id).Scan(&prevData)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		existed = false
	case err != nil:
		return domain.FlightBooking{}, false, fmt.Errorf("read previous %q: %w", id, err)
	default:
		if prev, err = decodeBooking(prevData); err != nil {
			return domain.FlightBooking{}, false, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO `+tableName+` (id, data) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		id, string(data),
	); err != nil {
		return domain.FlightBooking{}, false, fmt.Errorf("upsert %q: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.FlightBooking{}, false, fmt.Errorf("commit insert %q: %w", id, err)
	}
	return prev, existed, nil
}

func (m *SQLiteBookingMap) Remove(ctx context.Context, id string) (domain.FlightBooking, bool, error) {
	var data []byte
	err := m.db.QueryRowContext(ctx, `DELETE FROM `+tableName+` WHERE id = ? RETURNING data`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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

func (m *SQLiteBookingMap) Values(ctx context.Context) ([]domain.FlightBooking, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT data FROM `+tableName+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	values := make([]domain.FlightBooking, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		b, err := decodeBooking(data)
		if err != nil {
			return nil, err
		}
		values = append(values, b)
	}
	return values, rows.Err()
}

// Len runs COUNT(*), which is O(n) in SQLite.
func (m *SQLiteBookingMap) Len(ctx context.Context) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+tableName).Scan(&n); err != nil {
		return 0, fmt.Errorf("count bookings: %w", err)
	}
	return n, nil
}

var _ BookingMap = (*SQLiteBookingMap)(nil)
