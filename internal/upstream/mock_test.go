package upstream

import (
	"context"
	"testing"
	"time"

	"github.com/sertdev/inference-gateway/internal/chatapi"
	"github.com/sertdev/inference-gateway/internal/gwerr"
)

func TestMockAdapterEchoesModel(t *testing.T) {
	a := NewMockAdapter("m", 0)
	resp, err := a.Complete(context.Background(), req(), "rid-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Model != "gpt-4" {
		t.Fatalf("expected model passthrough, got %q", resp.Model)
	}
}

func TestMockAdapterRespectsContextCancellation(t *testing.T) {
	a := NewMockAdapter("m", 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Complete(ctx, req(), "rid-2")
	if err != ctx.Err() {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestScriptedAdapterDrainsQueueThenRepeatsLast(t *testing.T) {
	transient := gwerr.New(gwerr.KindUpstreamServerError, "s", "down", 503)
	ok := &chatapi.Response{ID: "ok"}

	a := NewScriptedAdapter("s", []ScriptedOutcome{
		{Err: transient},
		{Err: transient},
		{Resp: ok},
	})

	for i := 0; i < 2; i++ {
		_, err := a.Complete(context.Background(), req(), "rid")
		if err != transient {
			t.Fatalf("call %d: expected transient error, got %v", i, err)
		}
	}

	resp, err := a.Complete(context.Background(), req(), "rid")
	if err != nil || resp != ok {
		t.Fatalf("call 3: expected ok response, got resp=%v err=%v", resp, err)
	}

	// Queue exhausted — repeats the last outcome.
	resp, err = a.Complete(context.Background(), req(), "rid")
	if err != nil || resp != ok {
		t.Fatalf("call 4: expected repeated ok response, got resp=%v err=%v", resp, err)
	}

	if a.CallCount() != 4 {
		t.Fatalf("expected 4 calls recorded, got %d", a.CallCount())
	}
}

func TestScriptedAdapterProbe(t *testing.T) {
	a := NewScriptedAdapter("s", nil)
	if _, err := a.Probe(context.Background()); err != nil {
		t.Fatalf("expected nil probe error by default, got %v", err)
	}

	probeErr := gwerr.New(gwerr.KindConnectivity, "s", "down", 0)
	a.SetProbeErr(probeErr)
	if _, err := a.Probe(context.Background()); err != probeErr {
		t.Fatalf("expected configured probe error, got %v", err)
	}
}
