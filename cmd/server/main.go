package main

import (
	"context"
	"crypto/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/piriwata/Council1901/internal/api"
	"github.com/piriwata/Council1901/internal/api/middleware"
	"github.com/piriwata/Council1901/internal/config"
	"github.com/piriwata/Council1901/internal/crypto"
	"github.com/piriwata/Council1901/internal/messages"
	"github.com/piriwata/Council1901/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Signing secret
	secret := []byte(cfg.HMACSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.Fatal().Err(err).Msg("failed to generate secret")
		}
		logger.Warn().Msg("HMAC_SECRET not set, using an ephemeral secret; tokens will not survive a restart")
	}
	tokens, err := crypto.NewTokenService(secret)
	if err != nil {
		logger.Fatal().Err(err).Msg("token service")
	}

	newID, err := crypto.IDGeneratorFor(cfg.MessageIDFormat)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid MESSAGE_ID")
	}

	// Initialize Redis (rate limiting, and storage when selected)
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Initialize key-value store
	backend := cfg.Backend()
	var kv store.KV
	switch backend {
	case config.BackendPostgres:
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pgStore.Close()
		kv = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	case config.BackendRedis:
		if redisStore == nil {
			logger.Fatal().Msg("STORE_BACKEND=redis requires REDIS_URL")
		}
		kv = redisStore
	case config.BackendSQLite:
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		defer sqliteStore.Close()
		kv = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened SQLite")
	default:
		kv = store.NewMemoryStore()
		logger.Warn().Msg("using in-memory store; data is lost on restart")
	}
	kv = store.Instrument(kv, backend)

	var redisClient *redis.Client
	if redisStore != nil {
		redisClient = redisStore.Client()
	}

	// Create router
	router := api.NewRouter(logger, api.Deps{
		KV:     kv,
		Tokens: tokens,
		Log:    messages.NewLog(kv, messages.WithIDGenerator(newID)),
		Redis:  redisClient,
		RateLimit: middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: cfg.AutoBlockEnabled,
		},
		ClaimSeats:     cfg.ClaimSeats,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("store", backend).
			Bool("claim_seats", cfg.ClaimSeats).
			Msg("starting Council1901 server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
