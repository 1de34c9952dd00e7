package server

import (
	"encoding/hex"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/sertdev/inference-gateway/internal/config"
	"github.com/sertdev/inference-gateway/internal/gateway"
	"github.com/sertdev/inference-gateway/internal/health"
	"github.com/sertdev/inference-gateway/internal/logging"
	"github.com/sertdev/inference-gateway/internal/metrics"
	"github.com/sertdev/inference-gateway/internal/ratelimit"
	"github.com/sertdev/inference-gateway/internal/router"
)

// SnapshotSource supplies the current config snapshot to request handlers,
// so routes always see the latest reload without holding a stale pointer.
type SnapshotSource interface {
	Current() *config.Snapshot
}

// Opts holds optional middleware and dependencies for server construction.
type Opts struct {
	RateLimiter *ratelimit.Limiter   // nil = disabled
	Metrics     *metrics.Metrics     // nil = no /metrics endpoint, no HTTP metrics middleware
	AsyncLogger *logging.AsyncLogger // nil = no access logging
}

// New creates and configures the chi router with all gateway routes mounted.
func New(corsOrigins []string, snapshots SnapshotSource, core *gateway.Core, rtr *router.Router, healthCache *health.Cache, opts *Opts) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(SecurityHeaders)

	if opts != nil && opts.Metrics != nil {
		r.Use(metrics.Middleware(opts.Metrics))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Provider-Priority"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if opts != nil && opts.RateLimiter != nil {
		r.Use(rateLimitMiddleware(opts.RateLimiter))
	}

	var accessLog *logging.AsyncLogger
	if opts != nil {
		accessLog = opts.AsyncLogger
	}
	handlers := &chatHandlers{snapshots: snapshots, core: core, router: rtr, health: healthCache, accessLog: accessLog}

	r.Post("/v1/chat/completions", handlers.completions)
	r.Get("/health", HealthHandler())
	r.Get("/ready", ReadinessHandler(healthCache))
	r.Get("/health/detailed", handlers.healthDetailed)
	r.Get("/health/providers", handlers.healthProviders)
	r.Get("/health/providers/{name}", handlers.healthProvider)
	r.Get("/health/circuit-breakers", handlers.circuitBreakers)
	r.Get("/health/circuit-breakers/{name}", handlers.circuitBreaker)

	if opts != nil && opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			u := uuid.New()
			id = "req-" + hex.EncodeToString(u[:8])
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware creates a chi middleware that rate-limits by caller
// identity, falling back to remote address when no request ID is set.
func rateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-Request-ID")
			if key == "" {
				key = r.RemoteAddr
			}

			if !limiter.Allow(key) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":{"message":"rate limit exceeded"}}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
