package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const retryDelay = 5 * time.Second

type DBConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

func (c DBConfig) dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case "", "postgres":
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode,
		)
		return postgres.Open(dsn), nil
	case "sqlite":
		// Immediate transactions take the write lock up front so concurrent writers queue instead of failing.
		return sqlite.Open(c.SQLitePath + "?_busy_timeout=5000&_txlock=immediate"), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

func ConnectGORMWithRetry(cfg DBConfig, maxRetries int) (*gorm.DB, error) {
	log := zap.L().Named("connection.db")

	dialector, err := cfg.dialector()
	if err != nil {
		return nil, err
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error

	for i := 1; i <= maxRetries; i++ {
		db, err := gorm.Open(dialector, &gorm.Config{
			Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
			TranslateError: true,
		})
		if err != nil {
			lastErr = err
			log.Warn("gorm open failed", zap.Int("attempt", i), zap.Int("max", maxRetries), zap.Error(err))
			time.Sleep(retryDelay)
			continue
		}

		sqlDB, err := db.DB()
		if err != nil {
			lastErr = err
			log.Warn("get sql.DB failed", zap.Int("attempt", i), zap.Error(err))
			time.Sleep(retryDelay)
			continue
		}

		if err := sqlDB.Ping(); err != nil {
			lastErr = err
			log.Warn("db ping failed", zap.Int("attempt", i), zap.Int("max", maxRetries), zap.Error(err))
			time.Sleep(retryDelay)
			continue
		}

		if cfg.Driver == "sqlite" {
			sqlDB.SetMaxOpenConns(1)
		} else {
			sqlDB.SetMaxOpenConns(25)
			sqlDB.SetMaxIdleConns(10)
			sqlDB.SetConnMaxLifetime(time.Hour)
		}

		log.Info("gorm connected to database", zap.String("driver", cfg.Driver))
		return db, nil
	}

	return nil, fmt.Errorf("database connection failed after %d retries: %w", maxRetries, lastErr)
}

func ConnectRedisWithRetry(addr string, maxRetries int) (*redis.Client, error) {
	log := zap.L().Named("connection.redis")
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	var lastErr error
	for i := 1; i <= maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		lastErr = rdb.Ping(ctx).Err()
		cancel()
		if lastErr == nil {
			log.Info("connected to redis", zap.String("addr", addr))
			return rdb, nil
		}

		log.Warn("redis ping failed", zap.Int("attempt", i), zap.Int("max", maxRetries), zap.Error(lastErr))
		time.Sleep(retryDelay)
	}

	_ = rdb.Close()
	return nil, fmt.Errorf("failed to connect redis at %s: %w", addr, lastErr)
}

// ConnectKafkaWithRetry waits until the broker accepts connections and returns
// a writer that routes messages by their own Topic field.
func ConnectKafkaWithRetry(broker string, maxRetries int) (*kafkago.Writer, error) {
	log := zap.L().Named("connection.kafka")

	var lastErr error
	for i := 1; i <= maxRetries; i++ {
		conn, err := kafkago.Dial("tcp", broker)
		if err == nil {
			_, lastErr = conn.Brokers()
			_ = conn.Close()
			if lastErr == nil {
				log.Info("connected to kafka", zap.String("broker", broker))
				return &kafkago.Writer{
					Addr:                   kafkago.TCP(broker),
					Balancer:               &kafkago.Hash{},
					RequiredAcks:           kafkago.RequireAll,
					AllowAutoTopicCreation: true,
				}, nil
			}
		} else {
			lastErr = err
		}

		log.Warn("kafka dial failed", zap.Int("attempt", i), zap.Int("max", maxRetries), zap.Error(lastErr))
		time.Sleep(retryDelay)
	}

	return nil, fmt.Errorf("failed to connect kafka at %s: %w", broker, lastErr)
}
