// Package gateway composes the breaker, retry, and adapter layers per
// upstream and exposes the single entry point request handling uses.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sertdev/inference-gateway/internal/chatapi"
	"github.com/sertdev/inference-gateway/internal/config"
	"github.com/sertdev/inference-gateway/internal/gwerr"
	"github.com/sertdev/inference-gateway/internal/metrics"
	"github.com/sertdev/inference-gateway/internal/registry"
	"github.com/sertdev/inference-gateway/internal/resilience"
)

// tuning is the slice of a snapshot's resilience config a composer was
// built from; used to detect when an upstream's breaker/retry need to be
// recreated rather than reused across a reload.
type tuning struct {
	breaker resilience.CircuitBreakerOpts
	retry   resilience.RetryOpts
}

// composer pairs one upstream's breaker and retry handler with the tuning
// they were constructed from.
type composer struct {
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryOpts
	tuning  tuning
}

// Composers lazily builds and caches one composer per upstream name,
// recreating it when the upstream's resilience tuning changes.
type Composers struct {
	mu   sync.Mutex
	byName map[string]*composer
}

// NewComposers builds an empty Composers cache.
func NewComposers() *Composers {
	return &Composers{byName: make(map[string]*composer)}
}

func buildTuning(snapshot *config.Snapshot, upstreamName string) tuning {
	rc := snapshot.Resilience
	if u, ok := snapshot.Upstream(upstreamName); ok && u.MaxRetries > 0 {
		rc.Retry.MaxAttempts = u.MaxRetries
	}
	return tuning{
		breaker: resilience.CircuitBreakerOpts{
			Threshold: rc.CircuitBreaker.FailureThreshold,
			Timeout:   rc.CircuitBreaker.RecoveryTimeout(),
		},
		retry: resilience.RetryOpts{
			MaxAttempts: rc.Retry.MaxAttempts,
			MinWait:     rc.Retry.MinWait(),
			MaxWait:     rc.Retry.MaxWait(),
			ExpBase:     rc.Retry.ExpBase,
			Jitter:      rc.Retry.Jitter,
		},
	}
}

func (c *Composers) get(name string, snapshot *config.Snapshot) *composer {
	want := buildTuning(snapshot, name)

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.byName[name]
	if ok && existing.tuning == want {
		return existing
	}

	cmp := &composer{
		breaker: resilience.NewCircuitBreaker(want.breaker),
		retry:   want.retry,
		tuning:  want,
	}
	c.byName[name] = cmp
	return cmp
}

// BreakerSnapshot returns the current breaker state for name, if a
// composer has been built for it yet.
func (c *Composers) BreakerSnapshot(name string) (resilience.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmp, ok := c.byName[name]
	if !ok {
		return resilience.Snapshot{}, false
	}
	return cmp.breaker.StateSnapshot(), true
}

// Names returns the upstream names a composer has been built for.
func (c *Composers) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.byName))
	for name := range c.byName {
		out = append(out, name)
	}
	return out
}

// Core bundles the live registry and the per-upstream composers a request
// handler needs.
type Core struct {
	Registry  *registry.Registry
	Composers *Composers
	metrics   *metrics.Metrics
}

// NewCore builds an empty Core; Registry must be Initialize'd separately.
func NewCore(reg *registry.Registry) *Core {
	return &Core{Registry: reg, Composers: NewComposers()}
}

// SetMetrics attaches a metrics sink; nil (the default) disables recording.
func (c *Core) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// Complete runs a chat-completion exchange against upstreamName through
// that upstream's breaker(retry(adapter)) stack.
func (c *Core) Complete(ctx context.Context, snapshot *config.Snapshot, upstreamName string, req *chatapi.Request, requestID string) (*chatapi.Response, error) {
	a, ok := c.Registry.Get(upstreamName)
	if !ok {
		return nil, gwerr.ErrNoProviderAvailable
	}

	cmp := c.Composers.get(upstreamName, snapshot)
	before := cmp.breaker.StateSnapshot()
	start := time.Now()

	var resp *chatapi.Response
	err := runThroughBreaker(cmp, func() error {
		return resilience.Do(ctx, cmp.retry, func() error {
			attemptStart := time.Now()
			r, err := a.Complete(ctx, req, requestID)
			c.observeAttempt(upstreamName, attemptStart, err)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
	})

	c.observeRequest(upstreamName, start, err)
	c.observeBreaker(upstreamName, before, cmp.breaker.StateSnapshot())

	if errors.Is(err, gwerr.ErrCircuitOpen) {
		err = fmt.Errorf("%s: %w", upstreamName, err)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Core) observeAttempt(upstream string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.AdapterCallDuration.WithLabelValues(upstream).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.RetryAttemptsTotal.WithLabelValues(upstream, outcome).Inc()
}

func (c *Core) observeRequest(upstream string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := gwerr.PublicStatus(err)
	c.metrics.RequestsTotal.WithLabelValues(upstream, strconv.Itoa(status)).Inc()
	c.metrics.RequestDuration.WithLabelValues(upstream).Observe(time.Since(start).Seconds())
}

func (c *Core) observeBreaker(upstream string, before, after resilience.Snapshot) {
	if c.metrics == nil {
		return
	}
	c.metrics.CircuitBreakerState.WithLabelValues(upstream).Set(metrics.BreakerStateValue(after.State))
	if before.State != "open" && after.State == "open" {
		c.metrics.CircuitBreakerTrips.WithLabelValues(upstream).Inc()
	}
}

// Probe runs a liveness probe against upstreamName through its breaker,
// without the retry layer (a single attempt is sufficient for a probe).
func (c *Core) Probe(ctx context.Context, snapshot *config.Snapshot, upstreamName string) (time.Duration, error) {
	a, ok := c.Registry.Get(upstreamName)
	if !ok {
		return 0, gwerr.ErrNoProviderAvailable
	}

	cmp := c.Composers.get(upstreamName, snapshot)

	var latency time.Duration
	err := runThroughBreaker(cmp, func() error {
		l, err := a.Probe(ctx)
		latency = l
		return err
	})
	return latency, err
}

// runThroughBreaker invokes fn under cmp's circuit breaker, skipping the
// breaker's success/failure accounting when fn's failure is caller-origin
// cancellation rather than an adapter outcome.
func runThroughBreaker(cmp *composer, fn func() error) error {
	done, err := cmp.breaker.Allow()
	if err != nil {
		return err
	}

	callErr := fn()

	if errors.Is(callErr, context.Canceled) {
		cmp.breaker.Release()
		return callErr
	}

	done(callErr == nil)
	return callErr
}
