package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config represents the full runtime configuration tree.
type Config struct {
	App         AppConfig
	Backend     BackendConfig
	Session     SessionConfig
	Google      GoogleConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
	Cors        CORSConfig
	Monitoring  MonitoringConfig
	Diagnostics DiagnosticsConfig
}

// AppConfig captures application-level settings.
type AppConfig struct {
	Name    string `env:"APP_NAME" envDefault:"authbridge"`
	Env     string `env:"APP_ENV" envDefault:"development" validate:"oneof=development staging production test"`
	Version string `env:"APP_VERSION" envDefault:"0.1.0"`
	Port    string `env:"PORT" envDefault:"8080"`
}

// BackendConfig points at the session-issuing backend.
type BackendConfig struct {
	BaseURL           string        `env:"BACKEND_URL" validate:"required,url"`
	DefaultAvatarPath string        `env:"DEFAULT_AVATAR_PATH" envDefault:"media/profile_pictures/default_profile_picture.png"`
	DefaultLocale     string        `env:"DEFAULT_LOCALE" envDefault:"en" validate:"required"`
	Timeout           time.Duration `env:"BACKEND_TIMEOUT" envDefault:"15s"`
	Providers         []string      `env:"AUTH_PROVIDERS" envDefault:"google" envSeparator:","`
}

// SessionConfig governs the authentication context.
type SessionConfig struct {
	TTL          time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	CookieName   string        `env:"SESSION_COOKIE" envDefault:"authbridge_session"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"true"`
	KeyPrefix    string        `env:"SESSION_KEY_PREFIX" envDefault:"session"`
}

// GoogleConfig feeds the loopback OAuth flow used by the CLI.
type GoogleConfig struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	Issuer       string `env:"GOOGLE_ISSUER" envDefault:"https://accounts.google.com"`
	CallbackAddr string `env:"GOOGLE_CALLBACK_ADDR" envDefault:"127.0.0.1:0"`
}

// DatabaseConfig stores database connectivity info.
type DatabaseConfig struct {
	Driver          string        `env:"DB_DRIVER" envDefault:"sqlite" validate:"oneof=postgres mysql sqlite"`
	DSN             string        `env:"DB_DSN" envDefault:"file:authbridge.db"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN" envDefault:"10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	AutoMigrate     bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

// RedisConfig stores redis connectivity info. An empty Addr keeps state in memory.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Username string `env:"REDIS_USER"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	TLS      bool   `env:"REDIS_TLS" envDefault:"false"`
}

// RateLimitConfig manages throttling parameters.
type RateLimitConfig struct {
	Enabled           bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RequestsPerMinute int    `env:"RATE_LIMIT_PER_MIN" envDefault:"30" validate:"gte=1"`
	Burst             int    `env:"RATE_LIMIT_BURST" envDefault:"5" validate:"gte=0"`
	RedisPrefix       string `env:"RATE_LIMIT_PREFIX" envDefault:"ratelimit"`
}

// CORSConfig declares cross-origin policy.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000,http://localhost:5173" envSeparator:","`
	AllowedMethods   []string `env:"CORS_METHODS" envDefault:"GET,POST,OPTIONS" envSeparator:","`
	AllowedHeaders   []string `env:"CORS_HEADERS" envDefault:"Content-Type,Accept,Accept-Language,X-Login-Trigger" envSeparator:","`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
}

// MonitoringConfig adds observability tunables.
type MonitoringConfig struct {
	PrometheusEnabled bool    `env:"PROMETHEUS_ENABLED" envDefault:"true"`
	SentryDSN         string  `env:"SENTRY_DSN"`
	SentrySampleRate  float64 `env:"SENTRY_SAMPLE_RATE" envDefault:"0.2"`
}

// DiagnosticsConfig governs debug helpers.
type DiagnosticsConfig struct {
	MaxLogLines int `env:"DEBUG_LOG_LIMIT" envDefault:"200"`
}

// Load reads from environment (optionally .env) and builds Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	c.Backend.DefaultAvatarPath = strings.TrimLeft(strings.TrimSpace(c.Backend.DefaultAvatarPath), "/")
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Backend.Providers = trimAll(c.Backend.Providers)
	c.Cors.AllowedOrigins = trimAll(c.Cors.AllowedOrigins)
	c.Cors.AllowedMethods = trimAll(c.Cors.AllowedMethods)
	c.Cors.AllowedHeaders = trimAll(c.Cors.AllowedHeaders)
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("invalid config: BACKEND_TIMEOUT must not be negative")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("invalid config: SESSION_TTL must be positive")
	}
	return nil
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		trim := strings.TrimSpace(v)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
