package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "council_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "council_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	TokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "council_tokens_issued_total",
			Help: "Total access tokens issued",
		},
	)

	ConversationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "council_conversations_created_total",
			Help: "Total conversation create requests",
		},
		[]string{"result"}, // "created" or "existing"
	)

	MessagesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "council_messages_posted_total",
			Help: "Total messages posted",
		},
		[]string{"participants"}, // "2" or "3"
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "council_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "council_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)

	// Infrastructure metrics
	KVLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "council_kv_latency_seconds",
			Help:    "Key-value store operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{"backend", "op"},
	)

	KVErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "council_kv_errors_total",
			Help: "Key-value store operations that failed",
		},
		[]string{"backend", "op"},
	)
)
