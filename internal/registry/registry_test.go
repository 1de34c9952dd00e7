package registry

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/sertdev/inference-gateway/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitializeSkipsDisabled(t *testing.T) {
	r := New(testLogger())
	snap := &config.Snapshot{
		Upstreams: []config.UpstreamConfig{
			{Name: "a", Kind: "mock", Enabled: false},
			{Name: "b", Kind: "mock", Enabled: true},
		},
	}
	r.Initialize(snap)

	if _, ok := r.Get("a"); ok {
		t.Fatal("disabled upstream should not be registered")
	}
	if _, ok := r.Get("b"); !ok {
		t.Fatal("enabled upstream should be registered")
	}
}

func TestInitializeSkipsMissingCredential(t *testing.T) {
	os.Unsetenv("TEST_GATEWAY_MISSING_CRED")
	r := New(testLogger())
	snap := &config.Snapshot{
		Upstreams: []config.UpstreamConfig{
			{Name: "a", Kind: "openai", Enabled: true, BaseURL: "http://x", CredentialSource: "TEST_GATEWAY_MISSING_CRED"},
			{Name: "b", Kind: "mock", Enabled: true},
		},
	}
	r.Initialize(snap)

	if _, ok := r.Get("a"); ok {
		t.Fatal("openai upstream with missing credential should be skipped")
	}
	if _, ok := r.Get("b"); !ok {
		t.Fatal("other upstreams should still initialize")
	}
}

func TestInitializeResolvesCredential(t *testing.T) {
	os.Setenv("TEST_GATEWAY_CRED", "sk-test")
	defer os.Unsetenv("TEST_GATEWAY_CRED")

	r := New(testLogger())
	snap := &config.Snapshot{
		Upstreams: []config.UpstreamConfig{
			{Name: "a", Kind: "openai", Enabled: true, BaseURL: "http://x", CredentialSource: "TEST_GATEWAY_CRED"},
		},
	}
	r.Initialize(snap)

	if _, ok := r.Get("a"); !ok {
		t.Fatal("openai upstream with resolvable credential should register")
	}
}

func TestInitializeReplacesPreviousAdapters(t *testing.T) {
	r := New(testLogger())
	r.Initialize(&config.Snapshot{Upstreams: []config.UpstreamConfig{
		{Name: "a", Kind: "mock", Enabled: true},
	}})
	if _, ok := r.Get("a"); !ok {
		t.Fatal("expected a registered")
	}

	r.Initialize(&config.Snapshot{Upstreams: []config.UpstreamConfig{
		{Name: "b", Kind: "mock", Enabled: true},
	}})
	if _, ok := r.Get("a"); ok {
		t.Fatal("expected a to be gone after re-initialize")
	}
	if _, ok := r.Get("b"); !ok {
		t.Fatal("expected b registered")
	}
}

func TestCloseAllIsIdempotent(t *testing.T) {
	r := New(testLogger())
	r.Initialize(&config.Snapshot{Upstreams: []config.UpstreamConfig{
		{Name: "a", Kind: "mock", Enabled: true},
	}})
	r.CloseAll()
	r.CloseAll()

	if len(r.Names()) != 0 {
		t.Fatal("expected empty registry after CloseAll")
	}
}
