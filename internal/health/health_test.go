package health

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sertdev/inference-gateway/internal/config"
	"github.com/sertdev/inference-gateway/internal/registry"
)

func testRegistry(t *testing.T, names ...string) *registry.Registry {
	t.Helper()
	r := registry.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	var upstreams []config.UpstreamConfig
	for _, n := range names {
		upstreams = append(upstreams, config.UpstreamConfig{Name: n, Kind: "mock", Enabled: true})
	}
	r.Initialize(&config.Snapshot{Upstreams: upstreams})
	return r
}

func TestRefreshMarksHealthyWithoutHealthURL(t *testing.T) {
	reg := testRegistry(t, "a")
	snap := &config.Snapshot{
		Health:    config.HealthConfig{CheckIntervalS: 1, TimeoutS: 1},
		Upstreams: []config.UpstreamConfig{{Name: "a", Enabled: true}},
	}
	c := New(reg, snap)
	c.Refresh(context.Background(), snap)

	e, ok := c.Get("a")
	if !ok || e.Status != StatusHealthy {
		t.Fatalf("expected healthy entry, got %+v ok=%v", e, ok)
	}
}

func TestRefreshMarksUnhealthyOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
	}))
	defer srv.Close()

	reg := testRegistry(t, "a")
	snap := &config.Snapshot{
		Health:    config.HealthConfig{CheckIntervalS: 1, TimeoutS: 1},
		Upstreams: []config.UpstreamConfig{{Name: "a", Enabled: true, HealthURL: srv.URL}},
	}
	c := New(reg, snap)
	c.Refresh(context.Background(), snap)

	e, ok := c.Get("a")
	if !ok || e.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy entry, got %+v ok=%v", e, ok)
	}
}

func TestRefreshRateLimitedWithinInterval(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(200)
	}))
	defer srv.Close()

	reg := testRegistry(t, "a")
	snap := &config.Snapshot{
		Health:    config.HealthConfig{CheckIntervalS: 10, TimeoutS: 1},
		Upstreams: []config.UpstreamConfig{{Name: "a", Enabled: true, HealthURL: srv.URL}},
	}
	c := New(reg, snap)
	c.Refresh(context.Background(), snap)
	c.Refresh(context.Background(), snap)
	c.Refresh(context.Background(), snap)

	if hits != 1 {
		t.Fatalf("expected exactly 1 refresh within the interval, got %d", hits)
	}
}

func TestReadyRequiresHealthyAndRegistered(t *testing.T) {
	reg := testRegistry(t, "a")
	snap := &config.Snapshot{
		Health:    config.HealthConfig{CheckIntervalS: 1, TimeoutS: 1},
		Upstreams: []config.UpstreamConfig{{Name: "a", Enabled: true}},
	}
	c := New(reg, snap)
	if c.Ready() {
		t.Fatal("expected not ready before any refresh")
	}

	c.Refresh(context.Background(), snap)
	if !c.Ready() {
		t.Fatal("expected ready after healthy refresh")
	}
}

func TestReadyFalseWhenUpstreamUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	reg := testRegistry(t, "a")
	snap := &config.Snapshot{
		Health:    config.HealthConfig{CheckIntervalS: 1, TimeoutS: 1},
		Upstreams: []config.UpstreamConfig{{Name: "a", Enabled: true, HealthURL: srv.URL}},
	}
	c := New(reg, snap)
	c.Refresh(context.Background(), snap)

	if c.Ready() {
		t.Fatal("expected not ready when the only upstream is unhealthy")
	}
}
