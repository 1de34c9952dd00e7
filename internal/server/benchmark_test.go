package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sertdev/inference-gateway/internal/config"
	"github.com/sertdev/inference-gateway/internal/gateway"
	"github.com/sertdev/inference-gateway/internal/health"
	"github.com/sertdev/inference-gateway/internal/ratelimit"
	"github.com/sertdev/inference-gateway/internal/registry"
	"github.com/sertdev/inference-gateway/internal/router"
)

func BenchmarkSecurityHeadersMiddleware(b *testing.B) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	req := httptest.NewRequest("GET", "/", nil)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}
}

func BenchmarkRateLimiterAllow(b *testing.B) {
	l := ratelimit.NewLimiter(1_000_000, 1_000_000) // very high limit to not deny
	defer l.Close()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		l.Allow("bench-key")
	}
}

func BenchmarkFullMiddlewareChain(b *testing.B) {
	reg := registry.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	snap := &config.Snapshot{Upstreams: []config.UpstreamConfig{{Name: "m", Kind: "mock", Enabled: true}}}
	reg.Initialize(snap)

	core := gateway.NewCore(reg)
	rtr, _ := router.New(snap, reg)
	hc := health.New(reg, snap)

	limiter := ratelimit.NewLimiter(1_000_000, 1_000_000)
	defer limiter.Close()

	mux := New([]string{"*"}, staticSnapshot{snap}, core, rtr, hc, &Opts{RateLimiter: limiter})
	req := httptest.NewRequest("GET", "/health", nil)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
	}
}
