package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendAuto     = "auto"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`
	Env  string `env:"ENV" envDefault:"development"`

	// HMACSecret signs access tokens. It is read once at startup and
	// never changes for the life of the process.
	HMACSecret string `env:"HMAC_SECRET"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"auto"`
	DatabaseURL  string `env:"DATABASE_URL"`
	RedisURL     string `env:"REDIS_URL"`
	SQLitePath   string `env:"SQLITE_PATH"`

	ClaimSeats      bool   `env:"CLAIM_SEATS" envDefault:"false"`
	MessageIDFormat string `env:"MESSAGE_ID" envDefault:"ulid"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Rate limiting
	RateLimitWhitelist []string `env:"RATE_LIMIT_WHITELIST" envSeparator:","` // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     `env:"AUTO_BLOCK_ENABLED" envDefault:"false"` // Enable auto-blocking after repeated violations
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg, err := Parse()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Parse reads and validates configuration from the environment without
// touching .env files.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.RateLimitWhitelist = compact(cfg.RateLimitWhitelist)
	cfg.CORSAllowedOrigins = compact(cfg.CORSAllowedOrigins)

	switch cfg.StoreBackend {
	case BackendAuto, BackendMemory, BackendRedis, BackendPostgres, BackendSQLite:
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	// In production, require a signing secret and durable storage
	if !cfg.IsDevelopment() {
		if cfg.HMACSecret == "" {
			return nil, fmt.Errorf("HMAC_SECRET is required in %s", cfg.Env)
		}
		if cfg.Backend() == BackendMemory {
			return nil, fmt.Errorf("a durable STORE_BACKEND is required in %s", cfg.Env)
		}
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Backend resolves "auto" to the first configured store: PostgreSQL,
// then Redis, then SQLite, then memory.
func (c *Config) Backend() string {
	if c.StoreBackend != BackendAuto {
		return c.StoreBackend
	}
	switch {
	case c.DatabaseURL != "":
		return BackendPostgres
	case c.RedisURL != "":
		return BackendRedis
	case c.SQLitePath != "":
		return BackendSQLite
	default:
		return BackendMemory
	}
}

func compact(entries []string) []string {
	out := entries[:0]
	for _, e := range entries {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}
