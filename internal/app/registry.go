package app

import (
	"context"
	"database/sql"

	"go-leave/internal/auth"
	"go-leave/internal/balance"
	"go-leave/internal/config"
	"go-leave/internal/leave"
	"go-leave/internal/messaging/kafka"
	"go-leave/internal/middleware"
	"go-leave/internal/notification"
	"go-leave/internal/rbac"
	"go-leave/internal/rbac/infra"
	"go-leave/internal/shared/lock"
	"go-leave/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// registerModules wires every feature onto router and returns a hook that
// waits for background notification deliveries.
func registerModules(
	router *gin.Engine,
	cfg config.Config,
	db *sql.DB,
	gormDB *gorm.DB,
	rdb *redis.Client,
	logger *zap.Logger,
) (func(), error) {
	// --- Repositories ---
	userRepo := user.NewRepository(gormDB)
	leaveRepo := leave.NewRepository(gormDB)
	balanceRepo := balance.NewRepository(gormDB)

	var outboxRepo kafka.OutboxRepository
	if cfg.OutboxEnabled() {
		outboxRepo = kafka.NewOutboxRepository(db)
	}

	// --- RBAC Core ---
	enforcer, err := infra.NewEnforcer()
	if err != nil {
		return nil, err
	}
	rbacService := rbac.NewService(enforcer, logger)
	if err := rbacService.LoadDefaultPolicy(); err != nil {
		return nil, err
	}

	// --- Services ---
	userService := user.NewService(db, userRepo, outboxRepo, logger)
	if err := userService.EnsureAdmin(context.Background(), cfg.SeedAdminUsername, cfg.SeedAdminPassword, cfg.SeedAdminEmail); err != nil {
		return nil, err
	}

	catalog := balance.NewCatalog(cfg.LeaveTypes, cfg.DefaultEntitlement)
	balanceService := balance.NewService(db, balanceRepo, catalog, rdb, cfg.BalanceCacheTTL, logger)

	deps := leave.Dependencies{
		DB:       db,
		Repo:     leaveRepo,
		Ledger:   balance.NewLedger(balanceRepo, logger),
		Catalog:  catalog,
		Policy:   policyFrom(cfg),
		Locker:   newDecisionLocker(cfg, rdb, logger),
		Balances: balanceService,
	}

	wait := func() {}
	switch cfg.NotifyMode {
	case config.NotifyInline:
		async := notification.NewAsyncDispatcher(newDispatcher(cfg, userService, logger), cfg.NotifyTimeout)
		deps.Notifier = async
		wait = async.Wait
	case config.NotifyOutbox:
		deps.Outbox = outboxRepo
	}
	leaveService := leave.NewService(deps, logger)

	authService := auth.NewService(userRepo, cfg.JWTSecret, cfg.JWTTTL, logger)

	// --- Handlers ---
	authHandler := auth.NewHandler(authService, cfg.IsProduction(), logger)
	leaveHandler := leave.NewHandler(leaveService, logger)
	balanceHandler := balance.NewHandler(balanceService, logger)
	userHandler := user.NewHandler(userService, logger)
	rbacHandler := rbac.NewHandler(rbacService, logger)

	// --- Routes Registration ---
	router.Use(middleware.ContextLogger(logger))

	api := router.Group("/api/v1")
	auth.RegisterRoutes(api, authHandler)

	protected := api.Group("")
	protected.Use(
		middleware.AuthMiddleware(cfg.JWTSecret),
		middleware.RateLimitByUser(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
	)

	var submitGuards []gin.HandlerFunc
	if rdb != nil {
		submitGuards = append(submitGuards, middleware.Idempotency(rdb, cfg.IdempotencyTTL))
	}

	leave.RegisterRoutes(protected, leaveHandler, rbacService, submitGuards...)
	balance.RegisterRoutes(protected, balanceHandler, rbacService)
	user.RegisterRoutes(protected, userHandler, rbacService)
	rbac.RegisterRoutes(protected, rbacHandler)

	return wait, nil
}

func policyFrom(cfg config.Config) leave.Policy {
	return leave.Policy{
		CheckBalanceOnSubmit: cfg.CheckBalanceOnSubmit,
		AllowCancelDecided:   cfg.AllowCancelDecided,
		ReleaseOnCancel:      cfg.ReleaseOnCancel,
		AllowSelfDecision:    cfg.AllowSelfDecision,
		MaxReasonLength:      cfg.MaxReasonLength,
	}
}

func newDecisionLocker(cfg config.Config, rdb *redis.Client, logger *zap.Logger) lock.Locker {
	if !cfg.DecisionLockEnabled || rdb == nil {
		return lock.NewNoopLocker()
	}
	opts := lock.DefaultOptions()
	opts.Expiry = cfg.DecisionLockTTL
	return lock.NewRedisLocker(rdb, opts, logger)
}

// newDispatcher builds SMTP -> circuit breaker -> templated dispatcher.
func newDispatcher(cfg config.Config, identities notification.IdentityLookup, logger *zap.Logger) *notification.Dispatcher {
	var notifier notification.Notifier = notification.NewNoopNotifier()
	if cfg.SMTPEnabled() {
		notifier = notification.NewBreakerNotifier(
			notification.NewSMTPNotifier(notification.SMTPConfig{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				User:     cfg.SMTPUser,
				Password: cfg.SMTPPassword,
				From:     cfg.EmailFrom,
				UseTLS:   cfg.SMTPUseTLS,
			}),
			notification.BreakerSettings{
				Name:                "smtp",
				ConsecutiveFailures: uint32(cfg.NotifierBreakerMaxFailure),
			},
			logger,
		)
	} else {
		logger.Named("app").Warn("SMTP_HOST not set; leave notifications are discarded")
	}
	return notification.NewDispatcher(identities, notifier, logger)
}
