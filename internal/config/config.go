package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the auth service, read from environment
// variables.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"SERVER_PORT" envDefault:"3001"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"social"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"social_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"social_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis (access-token denylist)
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Google OAuth. Deliberately no defaults: a request arriving while these
	// are unset is answered with a CONFIG_ERROR, not rejected at startup.
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI  string `env:"GOOGLE_REDIRECT_URI"`

	// Timeout applied to each outbound identity provider call.
	OAuthTimeout time.Duration `env:"OAUTH_TIMEOUT" envDefault:"10s"`

	// JWT. Access and refresh tokens are signed with distinct secrets.
	JWTAccessSecret  string        `env:"JWT_ACCESS_SECRET" envDefault:"dev-access-secret"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET" envDefault:"dev-refresh-secret"`
	AccessTokenTTL   time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL  time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}

	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be distinct")
	}

	// Outside development the default secrets must be replaced with strong ones.
	if cfg.Environment != "development" {
		for name, secret := range map[string]string{
			"JWT_ACCESS_SECRET":  cfg.JWTAccessSecret,
			"JWT_REFRESH_SECRET": cfg.JWTRefreshSecret,
		} {
			if secret == "dev-access-secret" || secret == "dev-refresh-secret" {
				return nil, fmt.Errorf("%s must be explicitly set in %q mode", name, cfg.Environment)
			}
			if len(secret) < 32 {
				return nil, fmt.Errorf("%s must be at least 32 characters long, got %d", name, len(secret))
			}
		}
	}

	return cfg, nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// RedisAddr returns the Redis address string.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}
