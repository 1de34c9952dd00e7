// Package registry builds and owns the set of live upstream adapters for
// the current configuration snapshot.
package registry

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/sertdev/inference-gateway/internal/config"
	"github.com/sertdev/inference-gateway/internal/upstream"
)

// Registry maps upstream name to its live adapter.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]upstream.Adapter
	logger   *slog.Logger
}

// New builds an empty Registry.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		adapters: make(map[string]upstream.Adapter),
		logger:   logger,
	}
}

// Initialize closes any previously-held adapters and constructs one per
// enabled upstream in snapshot. Individual construction failures are
// logged and skipped; the rest still initialize.
func (r *Registry) Initialize(snapshot *config.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, a := range r.adapters {
		a.Close()
		delete(r.adapters, name)
	}

	for _, u := range snapshot.Upstreams {
		if !u.Enabled {
			r.logger.Info("upstream disabled, skipping", "upstream", u.Name)
			continue
		}

		a, err := buildAdapter(u)
		if err != nil {
			r.logger.Warn("skipping upstream, construction failed",
				"upstream", u.Name, "error", err)
			continue
		}
		r.adapters[u.Name] = a
	}
}

func buildAdapter(u config.UpstreamConfig) (upstream.Adapter, error) {
	switch u.Kind {
	case "mock":
		return upstream.NewMockAdapter(u.Name, 100*time.Millisecond), nil

	case "openai":
		cred, ok := os.LookupEnv(u.CredentialSource)
		if !ok || cred == "" {
			return nil, fmt.Errorf("credential variable %q is not set", u.CredentialSource)
		}
		return upstream.NewHTTPAdapter(upstream.HTTPOpts{
			Name:       u.Name,
			BaseURL:    u.BaseURL,
			Credential: cred,
			Timeout:    u.Timeout(),
		}), nil

	case "vllm":
		return upstream.NewHTTPAdapter(upstream.HTTPOpts{
			Name:    u.Name,
			BaseURL: u.BaseURL,
			Timeout: u.Timeout(),
		}), nil

	default:
		return nil, fmt.Errorf("unknown upstream kind %q", u.Kind)
	}
}

// Get returns the adapter registered under name, if any.
func (r *Registry) Get(name string) (upstream.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns the set of currently registered upstream names.
func (r *Registry) Names() map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]struct{}, len(r.adapters))
	for name := range r.adapters {
		out[name] = struct{}{}
	}
	return out
}

// CloseAll tears down every held adapter. Idempotent.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, a := range r.adapters {
		a.Close()
		delete(r.adapters, name)
	}
}
