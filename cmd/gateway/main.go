package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sertdev/inference-gateway/internal/config"
	"github.com/sertdev/inference-gateway/internal/gateway"
	"github.com/sertdev/inference-gateway/internal/health"
	"github.com/sertdev/inference-gateway/internal/logging"
	"github.com/sertdev/inference-gateway/internal/metrics"
	"github.com/sertdev/inference-gateway/internal/ratelimit"
	"github.com/sertdev/inference-gateway/internal/registry"
	"github.com/sertdev/inference-gateway/internal/router"
	"github.com/sertdev/inference-gateway/internal/server"
	"github.com/sertdev/inference-gateway/internal/slogger"
)

// snapshotHolder is the single SnapshotSource handed to the HTTP layer; the
// watcher's OnChange callback is the only writer.
type snapshotHolder struct {
	mu  sync.RWMutex
	cur *config.Snapshot
}

func (h *snapshotHolder) Current() *config.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cur
}

func (h *snapshotHolder) set(s *config.Snapshot) {
	h.mu.Lock()
	h.cur = s
	h.mu.Unlock()
}

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Validate config
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}

	// 3. Setup structured logging
	logger := slogger.Setup(cfg.LogFormat)

	// 4. Initialize metrics (if enabled)
	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	snapshot := config.SnapshotFrom(cfg)

	// 5. Initialize upstream registry and resolve adapters
	reg := registry.New(logger)
	reg.Initialize(snapshot)

	// 6. Initialize router over the registered upstreams
	rtr, err := router.New(snapshot, reg)
	if err != nil {
		log.Fatalf("failed to build router: %v", err)
	}

	// 7. Initialize health cache
	healthCache := health.New(reg, snapshot)

	// 8. Initialize resilience core (per-upstream breaker/retry composers)
	core := gateway.NewCore(reg)

	// 9. Wire metrics into the components that emit them
	if m != nil {
		core.SetMetrics(m)
		rtr.SetMetrics(m)
		healthCache.SetMetrics(m)
	}

	holder := &snapshotHolder{cur: snapshot}

	// 10. Start config watcher, rebuilding registry/router/health on reload
	configPath := os.Getenv("GATEWAY_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	watcher, err := config.NewWatcher(configPath, snapshot, logger)
	if err != nil {
		log.Fatalf("failed to start config watcher: %v", err)
	}
	watcher.OnChange(func(old, next *config.Snapshot) {
		reg.Initialize(next)
		if err := rtr.Reconfigure(next, reg); err != nil {
			logger.Warn("config reload produced an invalid router, keeping previous", "error", err)
		}
		healthCache.Reconfigure(next)
		holder.set(next)
	})
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	watcher.Start(watchCtx)
	defer cancelWatch()
	defer watcher.Close()

	// 11. Initialize async request logger
	var dropCounter logging.DroppedCounter
	if m != nil {
		dropCounter = m.DroppedLogsTotal
	}
	asyncLogger := logging.NewAsyncLogger(logger, cfg.LogBufferSize, dropCounter)
	defer asyncLogger.Close()

	// 12. Initialize rate limiter (if configured)
	var rateLimiter *ratelimit.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = int(cfg.RateLimitRPS * 2)
		}
		rateLimiter = ratelimit.NewLimiter(cfg.RateLimitRPS, burst)
		defer rateLimiter.Close()
	}

	// 13. Build the main server router with middleware
	serverOpts := &server.Opts{
		RateLimiter: rateLimiter,
		Metrics:     m,
		AsyncLogger: asyncLogger,
	}
	mux := server.New(cfg.CORSOrigins, holder, core, rtr, healthCache, serverOpts)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // disabled — upstream completions can run long under retry/backoff
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("inference-gateway listening", slog.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server shutdown failed: %v", err)
	}
	reg.CloseAll()
	logger.Info("server stopped")
}
