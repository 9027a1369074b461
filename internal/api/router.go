package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/piriwata/Council1901/internal/api/middleware"
	"github.com/piriwata/Council1901/internal/crypto"
	"github.com/piriwata/Council1901/internal/handlers"
	"github.com/piriwata/Council1901/internal/messages"
	"github.com/piriwata/Council1901/internal/store"
)

// maxBodyBytes fits a 4096-byte message even when every byte needs a
// six-character JSON escape.
const maxBodyBytes = 32 * 1024

// Deps are the collaborators the router wires into its handlers.
type Deps struct {
	KV     store.KV
	Tokens *crypto.TokenService
	Log    *messages.Log

	// Redis enables rate limiting when set.
	Redis     *redis.Client
	RateLimit middleware.RateLimiterConfig

	ClaimSeats     bool
	AllowedOrigins []string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, deps Deps) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(maxBodyBytes))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	if deps.Redis != nil {
		limiter := middleware.NewRateLimiter(deps.Redis, logger, deps.RateLimit)
		r.Use(limiter.Middleware)
	}

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(deps.KV, deps.Tokens, deps.Log, handlers.Options{ClaimSeats: deps.ClaimSeats})
	auth := middleware.NewAuthMiddleware(deps.Tokens, logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Public routes (no auth required)
		r.Get("/", h.Root)
		r.Get("/health", h.Health)
		r.Post("/auth", h.IssueToken)

		// Authenticated routes (require bearer token)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireToken)

			r.Get("/conversations", h.ListConversations)
			r.Post("/conversations", h.CreateConversation)
			r.Get("/messages", h.ListMessages)
			r.Post("/messages", h.SendMessage)
		})
	})

	return r
}
