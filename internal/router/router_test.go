package router

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/sertdev/inference-gateway/internal/config"
	"github.com/sertdev/inference-gateway/internal/gwerr"
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

func TestRouterPriorityOverride(t *testing.T) {
	reg := testRegistry(t, "a", "b")
	snap := &config.Snapshot{Upstreams: []config.UpstreamConfig{
		{Name: "a", Weight: 1},
		{Name: "b", Weight: 1},
	}}
	r, err := New(snap, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	name, err := r.Select("b", reg)
	if err != nil || name != "b" {
		t.Fatalf("expected priority override to win, got name=%q err=%v", name, err)
	}
}

func TestRouterPriorityFallsThroughWhenUnresolvable(t *testing.T) {
	reg := testRegistry(t, "a")
	snap := &config.Snapshot{Upstreams: []config.UpstreamConfig{{Name: "a", Weight: 1}}}
	r, err := New(snap, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	name, err := r.Select("nonexistent", reg)
	if err != nil || name != "a" {
		t.Fatalf("expected fallback to a, got name=%q err=%v", name, err)
	}
}

func TestRouterNoProviderAvailable(t *testing.T) {
	reg := testRegistry(t)
	snap := &config.Snapshot{}
	r, err := New(snap, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = r.Select("", reg)
	if !errors.Is(err, gwerr.ErrNoProviderAvailable) {
		t.Fatalf("expected ErrNoProviderAvailable, got %v", err)
	}
}

func TestRouterRejectsNegativeWeight(t *testing.T) {
	reg := testRegistry(t, "a")
	snap := &config.Snapshot{Upstreams: []config.UpstreamConfig{{Name: "a", Weight: -1}}}
	if _, err := New(snap, reg); err == nil {
		t.Fatal("expected error for negative weight")
	}
}

func TestRouterUniformWhenAllWeightsZero(t *testing.T) {
	reg := testRegistry(t, "a", "b")
	snap := &config.Snapshot{Upstreams: []config.UpstreamConfig{
		{Name: "a", Weight: 0},
		{Name: "b", Weight: 0},
	}}
	r, err := New(snap, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		name, err := r.Select("", reg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seen[name] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("expected uniform selection to eventually hit both names, got %v", seen)
	}
}

func TestRouterWeightedSelectionSkipsShrunkRegistry(t *testing.T) {
	reg := testRegistry(t, "a")
	snap := &config.Snapshot{Upstreams: []config.UpstreamConfig{
		{Name: "a", Weight: 1},
		{Name: "b", Weight: 1},
	}}
	r, err := New(snap, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 20; i++ {
		name, err := r.Select("", reg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if name != "a" {
			t.Fatalf("expected only resolvable upstream a to be selected, got %q", name)
		}
	}
}
