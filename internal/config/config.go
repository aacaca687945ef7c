package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Admin        AdminConfig
	RateLimit    RateLimitConfig
	Email        EmailConfig
	Geo          GeoConfig
	Notification NotificationConfig
	Sentry       SentryConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	PublicBaseURL         string
	PlatformIPHeader      string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AdminConfig holds the bearer secret guarding admin endpoints.
type AdminConfig struct {
	APIKey string
}

// RateLimitConfig tunes the submission limiter.
type RateLimitConfig struct {
	Backend       string
	Limit         int
	WindowMinutes int
	SweepMinutes  int
}

// EmailConfig selects and configures the confirmation mail transport.
type EmailConfig struct {
	Provider          string
	FromName          string
	FromAddress       string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	SESRegion         string
	SESAccessKey      string
	SESSecretKey      string
	UnsubscribeSecret string
	UnsubscribeTTLHrs int
}

// GeoConfig configures the IP geolocation provider.
type GeoConfig struct {
	Enabled   bool
	BaseURL   string
	APIToken  string
	TimeoutMS int
}

// NotificationConfig holds the optional admin webhook.
type NotificationConfig struct {
	WebhookURL string
}

// SentryConfig enables error capture when a DSN is present.
type SentryConfig struct {
	DSN string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "waitlist-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			PublicBaseURL:         strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
			PlatformIPHeader:      os.Getenv("APP_PLATFORM_IP_HEADER"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Admin: AdminConfig{
			APIKey: os.Getenv("ADMIN_API_KEY"),
		},
		RateLimit: RateLimitConfig{
			Backend:       strings.ToLower(getEnv("RATE_LIMIT_BACKEND", "memory")),
			Limit:         getEnvAsInt("RATE_LIMIT_MAX_SUBMISSIONS", 3),
			WindowMinutes: getEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 60),
			SweepMinutes:  getEnvAsInt("RATE_LIMIT_SWEEP_MINUTES", 10),
		},
		Email: EmailConfig{
			Provider:          strings.ToLower(getEnv("EMAIL_PROVIDER", "smtp")),
			FromName:          getEnv("EMAIL_FROM_NAME", "Revolutionary Farmers"),
			FromAddress:       getEnv("EMAIL_FROM_ADDRESS", os.Getenv("GMAIL_USER")),
			SMTPHost:          getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:          smtpPort,
			SMTPUsername:      getEnv("SMTP_USERNAME", os.Getenv("GMAIL_USER")),
			SMTPPassword:      getEnv("SMTP_PASSWORD", os.Getenv("GMAIL_APP_PASSWORD")),
			SESRegion:         getEnv("SES_REGION", "us-east-1"),
			SESAccessKey:      os.Getenv("SES_ACCESS_KEY_ID"),
			SESSecretKey:      os.Getenv("SES_SECRET_ACCESS_KEY"),
			UnsubscribeSecret: os.Getenv("UNSUBSCRIBE_SECRET"),
			UnsubscribeTTLHrs: getEnvAsInt("UNSUBSCRIBE_TOKEN_TTL_HOURS", 24),
		},
		Geo: GeoConfig{
			Enabled:   getEnvAsBool("GEO_ENABLED", true),
			BaseURL:   strings.TrimRight(getEnv("GEO_BASE_URL", "https://ipinfo.io"), "/"),
			APIToken:  os.Getenv("GEO_API_TOKEN"),
			TimeoutMS: getEnvAsInt("GEO_TIMEOUT_MS", 3000),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Sentry: SentryConfig{
			DSN: os.Getenv("SENTRY_DSN"),
		},
	}

	if cfg.RateLimit.Backend != "memory" && cfg.RateLimit.Backend != "redis" {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BACKEND %q", cfg.RateLimit.Backend)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Window returns the limiter window as a duration.
func (r RateLimitConfig) Window() time.Duration {
	if r.WindowMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(r.WindowMinutes) * time.Minute
}

// SweepInterval returns how often expired limiter entries are purged.
func (r RateLimitConfig) SweepInterval() time.Duration {
	if r.SweepMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(r.SweepMinutes) * time.Minute
}

// UnsubscribeTTL returns the validity of unsubscribe links.
func (e EmailConfig) UnsubscribeTTL() time.Duration {
	if e.UnsubscribeTTLHrs <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(e.UnsubscribeTTLHrs) * time.Hour
}

// SigningSecret returns the secret used for unsubscribe tokens. It falls back to
// the admin key so a single secret is enough for small deployments.
func (c *Config) SigningSecret() string {
	if c.Email.UnsubscribeSecret != "" {
		return c.Email.UnsubscribeSecret
	}
	return c.Admin.APIKey
}

// Timeout returns the geolocation request timeout.
func (g GeoConfig) Timeout() time.Duration {
	if g.TimeoutMS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(g.TimeoutMS) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
