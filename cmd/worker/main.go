package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/flightbookings/config"
	"github.com/Domenick1991/flightbookings/internal/audit"
	"github.com/Domenick1991/flightbookings/internal/kafka"
	"github.com/Domenick1991/flightbookings/internal/logger"
	kafkaGo "github.com/segmentio/kafka-go"
)

// worker consumes booking events and writes the audit trail.
func main() {
	cfg, err := config.LoadConfig(config.Path())
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logg := logger.New(cfg.Log.Level)
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.BookingEventsTopic)
	defer consumer.Close()

	recorder := audit.NewRecorder(logg)

	logg.Info("audit worker started", "topic", cfg.Kafka.BookingEventsTopic, "group", cfg.Kafka.GroupID)
	err = consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
		event, err := kafka.DecodeBookingEvent(msg)
		if err != nil {
			logg.Warn("skipping undecodable event", "error", err)
			return nil
		}
		if err := recorder.Record(ctx, event); err != nil {
			logg.Warn("skipping event", "offset", msg.Offset, "error", err)
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		logg.Error("consumer stopped", "error", err)
		return
	}
	logg.Info("audit worker stopped")
}
