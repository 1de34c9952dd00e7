package server

import (
	"net/http"

	"github.com/sertdev/inference-gateway/internal/health"
)

// HealthHandler returns a liveness probe handler that always returns 200 OK.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadinessHandler returns a readiness probe handler backed by the health
// cache: ready iff at least one enabled, registered upstream is healthy.
func ReadinessHandler(cache *health.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !cache.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":    "not_ready",
				"upstreams": cache.All(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
