// Package config loads application configuration from environment
// variables.  A .env file in the working directory is read first when it
// exists; real environment variables always win over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.
type Config struct {
	Env  string `env:"APP_ENV" env-default:"dev"`
	Port string `env:"APP_PORT" env-default:"8080"`

	Log       Log
	Database  Database
	Auth      Auth
	Redis     Redis
	AMQP      AMQP
	Booking   Booking
	RateLimit RateLimitConfig
}

type Log struct {
	Level string `env:"LOG_LEVEL" env-default:"info"`
	Text  bool   `env:"LOG_TEXT" env-default:"false"`
}

type Database struct {
	User string `env:"DB_USER" env-required:"true"`
	Pass string `env:"DB_PASS"`
	Host string `env:"DB_HOST" env-default:"localhost"`
	Port string `env:"DB_PORT" env-default:"3306"`
	Name string `env:"DB_NAME" env-required:"true"`

	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"25"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`
	// AutoMigrate applies the embedded schema at startup.
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" env-default:"true"`
}

type Auth struct {
	JWTSecret      string `env:"JWT_SECRET" env-required:"true"`
	AccessTTLMin   int    `env:"ACCESS_TOKEN_TTL_MIN" env-default:"15"`
	RefreshTTLDays int    `env:"REFRESH_TOKEN_TTL_DAYS" env-default:"7"`
	BcryptCost     int    `env:"BCRYPT_COST" env-default:"10"`
}

// AMQP configures the booking event exchange.  An empty URL disables
// publishing and the audit consumer.
type AMQP struct {
	URL          string `env:"AMQP_URL"`
	Exchange     string `env:"AMQP_EXCHANGE" env-default:"booking.events"`
	AuditQueue   string `env:"AMQP_AUDIT_QUEUE" env-default:"booking.audit"`
	AuditLogPath string `env:"BOOKING_AUDIT_LOG" env-default:"logs/booking.log"`
}

// Booking tunes the seat lock protocol.
type Booking struct {
	HoldDuration    time.Duration `env:"BOOKING_HOLD_DURATION" env-default:"5m"`
	SweepInterval   time.Duration `env:"LOCK_SWEEP_INTERVAL" env-default:"1m"`
	SeatMapCacheTTL time.Duration `env:"SEATMAP_CACHE_TTL" env-default:"30s"`
}

// Load reads the configuration.  Missing required variables produce an
// error listing them.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment variables: %w", err)
	}
	cfg.RateLimit.normalize()
	return cfg, nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string { return ":" + c.Port }
