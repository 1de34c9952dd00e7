// Package upstream adapts a normalized chat-completion call into one HTTP
// exchange with a specific upstream kind, classifying the outcome per the
// gateway's error taxonomy.
package upstream

import (
	"context"
	"time"

	"github.com/sertdev/inference-gateway/internal/chatapi"
)

// Adapter is the capability every upstream kind implements: complete a
// chat request, probe liveness, and release held resources. No
// inheritance hierarchy — kinds are concrete types behind this interface.
type Adapter interface {
	Complete(ctx context.Context, req *chatapi.Request, requestID string) (*chatapi.Response, error)
	Probe(ctx context.Context) (latency time.Duration, err error)
	Close()
}

// ProbeTimeout is the fixed deadline applied to Probe, independent of the
// upstream's configured request timeout.
const ProbeTimeout = 5 * time.Second
