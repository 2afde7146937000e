package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	NotifyInline = "inline"
	NotifyOutbox = "outbox"
	NotifyOff    = "off"
)

type Config struct {
	Environment string
	Port        string

	DBDriver     string
	DBHost       string
	DBPort       string
	DBUser       string
	DBPassword   string
	DBName       string
	DBSSLMode    string
	SQLitePath   string
	DBMaxRetries int

	RedisAddr   string
	KafkaBroker string

	JWTSecret string
	JWTTTL    time.Duration

	SeedAdminUsername string
	SeedAdminPassword string
	SeedAdminEmail    string

	LeaveTypes                []string
	DefaultEntitlement        int
	MaxReasonLength           int
	CheckBalanceOnSubmit      bool
	AllowCancelDecided        bool
	ReleaseOnCancel           bool
	AllowSelfDecision         bool
	DecisionLockEnabled       bool
	DecisionLockTTL           time.Duration
	BalanceCacheTTL           time.Duration
	NotifyMode                string
	NotifyTimeout             time.Duration
	OutboxPollInterval        time.Duration
	RateLimitRPS              float64
	RateLimitBurst            int
	IdempotencyTTL            time.Duration
	EmailFrom                 string
	SMTPHost                  string
	SMTPPort                  int
	SMTPUser                  string
	SMTPPassword              string
	SMTPUseTLS                bool
	NotifierBreakerMaxFailure int
}

func Load() Config {
	return Config{
		Environment: getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "3000"),

		DBDriver:     strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:       getEnv("DB_HOST", "localhost"),
		DBPort:       getEnv("DB_PORT", "5432"),
		DBUser:       getEnv("DB_USER", "postgres"),
		DBPassword:   getEnv("DB_PASSWORD", ""),
		DBName:       getEnv("DB_NAME", "go_leave"),
		DBSSLMode:    getEnv("DB_SSLMODE", "disable"),
		SQLitePath:   getEnv("SQLITE_PATH", "go-leave.db"),
		DBMaxRetries: getEnvInt("DB_MAX_RETRIES", 5),

		RedisAddr:   getEnv("REDIS_ADDR", ""),
		KafkaBroker: getEnv("KAFKA_BROKER", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTTTL:    getEnvDuration("JWT_TTL", 24*time.Hour),

		SeedAdminUsername: getEnv("SEED_ADMIN_USERNAME", ""),
		SeedAdminPassword: getEnv("SEED_ADMIN_PASSWORD", ""),
		SeedAdminEmail:    getEnv("SEED_ADMIN_EMAIL", ""),

		LeaveTypes:                getEnvList("LEAVE_TYPES", []string{"CASUAL", "SICK", "ANNUAL"}),
		DefaultEntitlement:        getEnvInt("LEAVE_DEFAULT_ENTITLEMENT", 20),
		MaxReasonLength:           getEnvInt("LEAVE_REASON_MAX", 200),
		CheckBalanceOnSubmit:      getEnvBool("LEAVE_CHECK_BALANCE_ON_SUBMIT", false),
		AllowCancelDecided:        getEnvBool("LEAVE_ALLOW_CANCEL_DECIDED", false),
		ReleaseOnCancel:           getEnvBool("LEAVE_RELEASE_ON_CANCEL", true),
		AllowSelfDecision:         getEnvBool("LEAVE_ALLOW_SELF_DECISION", false),
		DecisionLockEnabled:       getEnvBool("LEAVE_DECISION_LOCK", false),
		DecisionLockTTL:           getEnvDuration("LEAVE_DECISION_LOCK_TTL", 10*time.Second),
		BalanceCacheTTL:           getEnvDuration("BALANCE_CACHE_TTL", 5*time.Minute),
		NotifyMode:                strings.ToLower(getEnv("NOTIFY_MODE", NotifyInline)),
		NotifyTimeout:             getEnvDuration("NOTIFY_TIMEOUT", 15*time.Second),
		OutboxPollInterval:        getEnvDuration("OUTBOX_POLL_INTERVAL", 3*time.Second),
		RateLimitRPS:              getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:            getEnvInt("RATE_LIMIT_BURST", 10),
		IdempotencyTTL:            getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		EmailFrom:                 getEnv("EMAIL_FROM", "no-reply@go-leave.local"),
		SMTPHost:                  getEnv("SMTP_HOST", ""),
		SMTPPort:                  getEnvInt("SMTP_PORT", 587),
		SMTPUser:                  getEnv("SMTP_USER", ""),
		SMTPPassword:              getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:                getEnvBool("SMTP_USE_TLS", true),
		NotifierBreakerMaxFailure: getEnvInt("NOTIFIER_BREAKER_MAX_FAILURES", 5),
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if len(c.LeaveTypes) == 0 {
		return fmt.Errorf("LEAVE_TYPES must name at least one leave type")
	}
	if c.DefaultEntitlement < 0 {
		return fmt.Errorf("LEAVE_DEFAULT_ENTITLEMENT must not be negative")
	}
	if c.MaxReasonLength <= 0 {
		return fmt.Errorf("LEAVE_REASON_MAX must be positive")
	}
	switch c.NotifyMode {
	case NotifyInline, NotifyOff:
	case NotifyOutbox:
		if c.KafkaBroker == "" {
			return fmt.Errorf("NOTIFY_MODE=outbox requires KAFKA_BROKER")
		}
	default:
		return fmt.Errorf("NOTIFY_MODE must be inline, outbox or off, got %q", c.NotifyMode)
	}
	if c.DecisionLockEnabled && c.RedisAddr == "" {
		return fmt.Errorf("LEAVE_DECISION_LOCK requires REDIS_ADDR")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) OutboxEnabled() bool {
	return c.KafkaBroker != ""
}

func (c Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvList splits a comma separated value, upper-cases and de-duplicates it.
func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		item := strings.ToUpper(strings.TrimSpace(part))
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
