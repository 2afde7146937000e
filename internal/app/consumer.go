package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go-leave/internal/balance"
	"go-leave/internal/config"
	"go-leave/internal/events"
	"go-leave/internal/messaging/kafka/consumer"
	"go-leave/internal/shared/connection"
	"go-leave/internal/user"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const consumerGroupPrefix = "go-leave"

// RunConsumer runs the leave-notification and balance-initialization
// consumers until SIGINT or SIGTERM.
func RunConsumer(cfg config.Config, logger *zap.Logger) error {
	log := logger.Named("app.consumer")

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

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = connection.ConnectRedisWithRetry(cfg.RedisAddr, cfg.DBMaxRetries)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	userService := user.NewService(sqlDB, user.NewRepository(gormDB), nil, logger)
	balanceService := balance.NewService(
		sqlDB,
		balance.NewRepository(gormDB),
		balance.NewCatalog(cfg.LeaveTypes, cfg.DefaultEntitlement),
		rdb,
		cfg.BalanceCacheTTL,
		logger,
	)
	dispatcher := newDispatcher(cfg, userService, logger)

	leaveReader := newReader(cfg.KafkaBroker, events.LeaveLifecycleTopic, consumerGroupPrefix+"-notifications")
	defer leaveReader.Close()

	userReader := newReader(cfg.KafkaBroker, events.UserLifecycleTopic, consumerGroupPrefix+"-balances")
	defer userReader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		consumer.ConsumeLeaveLifecycle(ctx, leaveReader, dispatcher, logger)
	}()
	go func() {
		defer wg.Done()
		consumer.ConsumeUserLifecycle(ctx, userReader, balanceService, logger)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("consumer shutting down")
	cancel()
	wg.Wait()

	return nil
}

func newReader(broker, topic, groupID string) *kafkago.Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        []string{broker},
		Topic:          topic,
		GroupID:        groupID,
		CommitInterval: 0,
		StartOffset:    kafkago.FirstOffset,
	})
}
