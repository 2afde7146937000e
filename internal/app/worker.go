package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-leave/internal/config"
	"go-leave/internal/messaging/kafka"
	"go-leave/internal/messaging/kafka/producer"
	"go-leave/internal/shared/connection"

	"go.uber.org/zap"
)

// RunWorker relays pending outbox rows to Kafka until SIGINT or SIGTERM.
func RunWorker(cfg config.Config, logger *zap.Logger) error {
	log := logger.Named("app.worker")

	if cfg.KafkaBroker == "" {
		return fmt.Errorf("KAFKA_BROKER is required")
	}

	gormDB, sqlDB, err := connectDatabase(cfg)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := migrate(gormDB); err != nil {
		return err
	}

	kafkaWriter, err := connection.ConnectKafkaWithRetry(cfg.KafkaBroker, cfg.DBMaxRetries)
	if err != nil {
		return err
	}
	defer kafkaWriter.Close()

	outboxRepo := kafka.NewOutboxRepository(sqlDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		producer.ProcessOutboxEvents(ctx, outboxRepo, kafkaWriter, logger, cfg.OutboxPollInterval)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("worker shutting down")
	cancel()
	<-done

	return nil
}
