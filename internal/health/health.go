// Package health maintains a process-wide, lazily-refreshed cache of
// per-upstream liveness.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sertdev/inference-gateway/internal/config"
	"github.com/sertdev/inference-gateway/internal/metrics"
	"github.com/sertdev/inference-gateway/internal/registry"
)

// Status is the liveness classification of one upstream.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// Entry is one upstream's most recent liveness check result.
type Entry struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Cache tracks liveness per upstream, refreshing at most once per
// check_interval across concurrently racing callers.
type Cache struct {
	mu           sync.Mutex
	entries      map[string]Entry
	lastRefresh  time.Time
	reg          *registry.Registry
	client       *http.Client
	checkTimeout time.Duration
	interval     time.Duration
	metrics      *metrics.Metrics
}

// SetMetrics attaches a metrics sink; nil (the default) disables recording.
func (c *Cache) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// New builds a Cache bound to reg, using snapshot's health tuning.
func New(reg *registry.Registry, snapshot *config.Snapshot) *Cache {
	return &Cache{
		entries:      make(map[string]Entry),
		reg:          reg,
		client:       &http.Client{},
		checkTimeout: snapshot.Health.Timeout(),
		interval:     snapshot.Health.CheckInterval(),
	}
}

// Reconfigure updates the cache's tuning from a new snapshot, without
// discarding cached entries.
func (c *Cache) Reconfigure(snapshot *config.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkTimeout = snapshot.Health.Timeout()
	c.interval = snapshot.Health.CheckInterval()
}

// Refresh triggers a check across snapshot's enabled upstreams, but
// performs at most one actual refresh per check_interval; concurrent
// callers within that window observe the cached entries as-is.
func (c *Cache) Refresh(ctx context.Context, snapshot *config.Snapshot) {
	c.mu.Lock()
	if time.Since(c.lastRefresh) < c.interval && !c.lastRefresh.IsZero() {
		c.mu.Unlock()
		return
	}
	c.lastRefresh = time.Now()
	timeout := c.checkTimeout
	c.mu.Unlock()

	var wg sync.WaitGroup
	results := make(chan Entry, len(snapshot.Upstreams))

	for _, u := range snapshot.Upstreams {
		if !u.Enabled {
			continue
		}
		wg.Add(1)
		go func(u config.UpstreamConfig) {
			defer wg.Done()
			e := c.checkOne(ctx, u, timeout)
			if c.metrics != nil {
				c.metrics.HealthCheckTotal.WithLabelValues(u.Name, string(e.Status)).Inc()
			}
			results <- e
		}(u)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	c.mu.Lock()
	for e := range results {
		c.entries[e.Name] = e
	}
	c.mu.Unlock()
}

func (c *Cache) checkOne(ctx context.Context, u config.UpstreamConfig, timeout time.Duration) Entry {
	entry := Entry{Name: u.Name, CheckedAt: time.Now()}

	if u.HealthURL == "" {
		entry.Status = StatusHealthy
		return entry
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, u.HealthURL, nil)
	if err != nil {
		entry.Status = StatusUnknown
		entry.Error = err.Error()
		return entry
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	entry.Latency = time.Since(start)
	if err != nil {
		entry.Status = StatusUnhealthy
		entry.Error = err.Error()
		return entry
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		entry.Status = StatusHealthy
	} else {
		entry.Status = StatusUnhealthy
		entry.Error = resp.Status
	}
	return entry
}

// Get returns the cached entry for name, if any.
func (c *Cache) Get(name string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	return e, ok
}

// All returns a snapshot copy of every cached entry.
func (c *Cache) All() map[string]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Entry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Ready reports whether at least one enabled, registered upstream has a
// current healthy entry.
func (c *Cache) Ready() bool {
	names := c.reg.Names()
	c.mu.Lock()
	defer c.mu.Unlock()
	for name := range names {
		if e, ok := c.entries[name]; ok && e.Status == StatusHealthy {
			return true
		}
	}
	return false
}
