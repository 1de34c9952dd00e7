// Package router selects which upstream should handle a request, given an
// optional header-supplied priority and the registry of live adapters.
package router

import (
	"math/rand/v2"
	"sync"

	"github.com/sertdev/inference-gateway/internal/config"
	"github.com/sertdev/inference-gateway/internal/gwerr"
	"github.com/sertdev/inference-gateway/internal/metrics"
	"github.com/sertdev/inference-gateway/internal/registry"
)

// weightedEntry is one normalized, resolvable candidate.
type weightedEntry struct {
	name   string
	weight float64
}

// Router picks an upstream name from a config snapshot's weights, falling
// back to the registry's currently resolvable set.
type Router struct {
	mu         sync.RWMutex
	candidates []weightedEntry
	totalOK    bool // true if weights sum to > 0
	metrics    *metrics.Metrics
}

// SetMetrics attaches a metrics sink; nil (the default) disables recording.
func (r *Router) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// New builds a Router from the upstreams in snapshot that are enabled and
// present in reg. Negative weights are rejected.
func New(snapshot *config.Snapshot, reg *registry.Registry) (*Router, error) {
	candidates, total, err := buildCandidates(snapshot, reg)
	if err != nil {
		return nil, err
	}

	r := &Router{}
	r.setCandidates(candidates, total)
	return r, nil
}

// Reconfigure rebuilds the router's candidate set in place from a fresh
// snapshot, so callers holding this *Router see the new weights without a
// pointer swap.
func (r *Router) Reconfigure(snapshot *config.Snapshot, reg *registry.Registry) error {
	candidates, total, err := buildCandidates(snapshot, reg)
	if err != nil {
		return err
	}
	r.setCandidates(candidates, total)
	return nil
}

func (r *Router) setCandidates(candidates []weightedEntry, total float64) {
	if total > 0 {
		for i := range candidates {
			candidates[i].weight /= total
		}
	}
	r.mu.Lock()
	r.candidates = candidates
	r.totalOK = total > 0
	r.mu.Unlock()
}

func buildCandidates(snapshot *config.Snapshot, reg *registry.Registry) ([]weightedEntry, float64, error) {
	names := reg.Names()

	var candidates []weightedEntry
	var total float64
	for _, u := range snapshot.Upstreams {
		if _, ok := names[u.Name]; !ok {
			continue
		}
		if u.Weight < 0 {
			return nil, 0, gwerr.New(gwerr.KindInternalError, u.Name, "upstream weight must not be negative", 0)
		}
		candidates = append(candidates, weightedEntry{name: u.Name, weight: u.Weight})
		total += u.Weight
	}
	return candidates, total, nil
}

// Select returns the chosen upstream name. If priority is non-empty and
// resolves in the registry, it wins outright. Otherwise weighted random
// selection runs over the resolvable candidate set; if all resolving
// weights sum to zero, selection is uniform.
func (r *Router) Select(priority string, reg *registry.Registry) (string, error) {
	if priority != "" {
		if _, ok := reg.Get(priority); ok {
			r.recordSelection(priority, "header_override")
			return priority, nil
		}
	}

	resolvable := r.resolvableCandidates(reg)
	if len(resolvable) == 0 {
		return "", gwerr.ErrNoProviderAvailable
	}

	var positiveTotal float64
	for _, c := range resolvable {
		positiveTotal += c.weight
	}
	if positiveTotal <= 0 {
		name := resolvable[rand.IntN(len(resolvable))].name
		r.recordSelection(name, "uniform_fallback")
		return name, nil
	}

	draw := rand.Float64() * positiveTotal
	var cumulative float64
	for _, c := range resolvable {
		cumulative += c.weight
		if draw < cumulative {
			r.recordSelection(c.name, "weighted")
			return c.name, nil
		}
	}
	name := resolvable[len(resolvable)-1].name
	r.recordSelection(name, "weighted")
	return name, nil
}

func (r *Router) recordSelection(upstream, reason string) {
	if r.metrics == nil {
		return
	}
	r.metrics.RouterSelectionsTotal.WithLabelValues(upstream, reason).Inc()
}

// resolvableCandidates filters the router's candidate set down to names
// still present in reg — the registry may have shrunk since construction
// (a later reload, or an upstream whose adapter construction failed).
func (r *Router) resolvableCandidates(reg *registry.Registry) []weightedEntry {
	names := reg.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]weightedEntry, 0, len(r.candidates))
	for _, c := range r.candidates {
		if _, ok := names[c.name]; ok {
			out = append(out, c)
		}
	}
	return out
}
