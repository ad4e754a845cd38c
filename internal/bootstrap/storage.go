package bootstrap

import (
	"context"
	"fmt"

	"github.com/Domenick1991/flightbookings/config"
	"github.com/Domenick1991/flightbookings/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OpenBookingMap builds the ordered map selected by cfg.Storage.Driver. The
// returned closer releases its connections.
func OpenBookingMap(ctx context.Context, cfg *config.Config) (repository.BookingMap, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return repository.NewMemoryBookingMap(), func() {}, nil

	case config.DriverSQLite:
		m, err := repository.NewSQLiteBookingMap(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return m, func() { _ = m.Close() }, nil

	case config.DriverPostgres:
		if err := repository.MigratePostgres(cfg.Database.URL()); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return repository.NewPGBookingMap(pool), pool.Close, nil

	case config.DriverRedis:
		m := repository.NewRedisBookingMap(cfg.Redis)
		return m, func() { _ = m.Close() }, nil

	case config.DriverMongo:
		m, err := repository.NewMongoBookingMap(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		return m, func() { _ = m.Close(context.Background()) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
