package main

import (
	"time"

	"go-leave/internal/app"
	"go-leave/internal/bootstrap"
	"go-leave/internal/config"
	"go-leave/internal/shared/apperror"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	apperror.Init()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	a, err := app.BuildApp(r, cfg, logger)
	if err != nil {
		logger.Fatal("build app failed", zap.Error(err))
	}

	bootstrap.StartHTTPServer(
		r,
		bootstrap.ServerConfig{
			Port:         cfg.Port,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		bootstrap.NewStdoutAuditLogger(),
		a.Close,
	)
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
