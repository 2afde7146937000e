package app

import (
	"database/sql"
	"fmt"

	"go-leave/internal/balance"
	"go-leave/internal/config"
	"go-leave/internal/leave"
	"go-leave/internal/messaging/kafka"
	"go-leave/internal/shared/connection"
	"go-leave/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds the infrastructure handles BuildApp opened, so main can release
// them once the HTTP server has stopped.
type App struct {
	GormDB   *gorm.DB
	SQLDB    *sql.DB
	Redis    *redis.Client
	shutdown []func()
}

// Close waits for in-flight notifications, then closes redis and the database.
func (a *App) Close() {
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		a.shutdown[i]()
	}
}

func BuildApp(router *gin.Engine, cfg config.Config, logger *zap.Logger) (*App, error) {
	log := logger.Named("app")

	gormDB, sqlDB, err := connectDatabase(cfg)
	if err != nil {
		return nil, err
	}
	log.Info("database connection established", zap.String("driver", cfg.DBDriver))

	a := &App{GormDB: gormDB, SQLDB: sqlDB}
	a.shutdown = append(a.shutdown, func() { _ = sqlDB.Close() })

	if err := migrate(gormDB); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.RedisAddr != "" {
		rdb, err := connection.ConnectRedisWithRetry(cfg.RedisAddr, cfg.DBMaxRetries)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = rdb
		a.shutdown = append(a.shutdown, func() { _ = rdb.Close() })
		log.Info("redis connection established")
	} else {
		log.Warn("REDIS_ADDR not set; balance cache and idempotency keys disabled")
	}

	wait, err := registerModules(router, cfg, sqlDB, gormDB, a.Redis, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.shutdown = append(a.shutdown, wait)

	return a, nil
}

func connectDatabase(cfg config.Config) (*gorm.DB, *sql.DB, error) {
	gormDB, err := connection.ConnectGORMWithRetry(connection.DBConfig{
		Driver:     cfg.DBDriver,
		Host:       cfg.DBHost,
		Port:       cfg.DBPort,
		User:       cfg.DBUser,
		Password:   cfg.DBPassword,
		Name:       cfg.DBName,
		SSLMode:    cfg.DBSSLMode,
		SQLitePath: cfg.SQLitePath,
	}, cfg.DBMaxRetries)
	if err != nil {
		return nil, nil, err
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, nil, err
	}
	return gormDB, sqlDB, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&user.User{},
		&leave.Leave{},
		&balance.LeaveBalance{},
		&kafka.OutboxRecord{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
