package upstream

import (
	"context"
	"sync"
	"time"

	"github.com/sertdev/inference-gateway/internal/chatapi"
	"github.com/sertdev/inference-gateway/internal/gwerr"
)

// MockAdapter always succeeds with a canned response. It backs the "mock"
// upstream kind, used for local development and integration tests that
// don't want a live backend.
type MockAdapter struct {
	name    string
	latency time.Duration
}

// NewMockAdapter builds a MockAdapter that echoes a fixed response after an
// optional simulated latency.
func NewMockAdapter(name string, latency time.Duration) *MockAdapter {
	return &MockAdapter{name: name, latency: latency}
}

func (a *MockAdapter) Complete(ctx context.Context, req *chatapi.Request, requestID string) (*chatapi.Response, error) {
	if a.latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.latency):
		}
	}
	return &chatapi.Response{
		ID:      "mock-" + requestID,
		Object:  "chat.completion",
		Created: 0,
		Model:   req.Model,
		Choices: []chatapi.Choice{
			{
				Index: 0,
				Message: chatapi.Message{
					Role:    chatapi.RoleAssistant,
					Content: "mock response",
				},
				FinishReason: "stop",
			},
		},
		Usage: chatapi.Usage{
			PromptTokens:     1,
			CompletionTokens: 1,
			TotalTokens:      2,
		},
	}, nil
}

func (a *MockAdapter) Probe(ctx context.Context) (time.Duration, error) {
	return a.latency, nil
}

func (a *MockAdapter) Close() {}

// ScriptedOutcome is one canned result a ScriptedAdapter will return, in
// order, as calls to Complete come in.
type ScriptedOutcome struct {
	Resp *chatapi.Response
	Err  error
}

// ScriptedAdapter drains a caller-supplied queue of canned outcomes,
// repeating the last entry once the queue is exhausted. It exists to drive
// the resilience layer's breaker/retry state machines through deterministic
// sequences in tests.
type ScriptedAdapter struct {
	mu       sync.Mutex
	name     string
	outcomes []ScriptedOutcome
	calls    int
	probeErr error
}

// NewScriptedAdapter builds a ScriptedAdapter over outcomes. An empty
// outcomes slice always returns gwerr.KindInternalError.
func NewScriptedAdapter(name string, outcomes []ScriptedOutcome) *ScriptedAdapter {
	return &ScriptedAdapter{name: name, outcomes: outcomes}
}

func (a *ScriptedAdapter) Complete(ctx context.Context, req *chatapi.Request, requestID string) (*chatapi.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.outcomes) == 0 {
		return nil, gwerr.New(gwerr.KindInternalError, a.name, "no scripted outcomes configured", 0)
	}

	idx := a.calls
	if idx >= len(a.outcomes) {
		idx = len(a.outcomes) - 1
	}
	a.calls++

	out := a.outcomes[idx]
	return out.Resp, out.Err
}

// CallCount reports how many times Complete has been invoked.
func (a *ScriptedAdapter) CallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// SetProbeErr configures the error Probe returns; nil means success.
func (a *ScriptedAdapter) SetProbeErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.probeErr = err
}

func (a *ScriptedAdapter) Probe(ctx context.Context) (time.Duration, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return 0, a.probeErr
}

func (a *ScriptedAdapter) Close() {}
