package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// StartHTTPServer blocks until SIGINT or SIGTERM, then drains in-flight
// requests and runs the onShutdown hooks in order.
func StartHTTPServer(
	router *gin.Engine,
	cfg ServerConfig,
	auditLogger AuditLogger,
	onShutdown ...func(),
) {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		zap.L().Info("HTTP server running", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("ListenAndServe error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	zap.L().Info("Shutdown signal received", zap.String("signal", sig.String()))

	auditLogger.Log(context.Background(), AuditLog{
		Action:  "SERVER_SHUTDOWN",
		Message: "Server is shutting down",
		Meta: map[string]any{
			"signal": sig.String(),
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zap.L().Error("Forced shutdown", zap.Error(err))
	} else {
		zap.L().Info("Server exited gracefully")
	}

	for _, fn := range onShutdown {
		fn()
	}
}
