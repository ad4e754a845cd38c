package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/flightbookings/config"
	"github.com/Domenick1991/flightbookings/internal/bootstrap"
	"github.com/Domenick1991/flightbookings/internal/kafka"
	"github.com/Domenick1991/flightbookings/internal/logger"
	"github.com/Domenick1991/flightbookings/internal/metrics"
	"github.com/Domenick1991/flightbookings/internal/service/booking"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.LoadConfig(config.Path())
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logg := logger.New(cfg.Log.Level)
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bookingMap, closeMap, err := bootstrap.OpenBookingMap(ctx, cfg)
	if err != nil {
		logg.Error("open booking storage", "driver", cfg.Storage.Driver, "error", err)
		return
	}
	defer closeMap()

	opts := []booking.BookingStoreOption{
		booking.WithLogger(logg.With("component", "booking_store")),
		booking.WithMetrics(metrics.New(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)),
	}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.BookingEventsTopic != "" {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logg)
		defer producer.Close()
		if err := producer.CheckConnection(ctx); err != nil {
			logg.Warn("kafka unavailable, booking events may be dropped", "error", err)
		}
		opts = append(opts, booking.WithEvents(producer, cfg.Kafka.BookingEventsTopic))
	}
	store := booking.NewBookingStore(bookingMap, opts...)

	if n, err := store.Count(ctx); err == nil {
		logg.Info("booking store ready", "driver", cfg.Storage.Driver, "bookings", n)
	}

	if err := bootstrap.Run(ctx, cfg, store, logg, prometheus.DefaultGatherer); err != nil {
		logg.Error("server error", "error", err)
	}
}
