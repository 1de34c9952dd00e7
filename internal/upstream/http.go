package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/sertdev/inference-gateway/internal/chatapi"
	"github.com/sertdev/inference-gateway/internal/gwerr"
)

// HTTPOpts configures an HTTPAdapter.
type HTTPOpts struct {
	Name       string
	BaseURL    string
	Credential string // bearer token; empty means no Authorization header (vllm)
	Timeout    time.Duration
}

// HTTPAdapter speaks the OpenAI-compatible chat-completions wire contract
// over HTTP. It backs both the "openai" and "vllm" upstream kinds — the
// only difference between them is whether a bearer credential is attached.
type HTTPAdapter struct {
	name       string
	baseURL    string
	credential string
	timeout    time.Duration
	client     *http.Client
}

// NewHTTPAdapter builds an HTTPAdapter with a pooled, keep-alive transport.
func NewHTTPAdapter(opts HTTPOpts) *HTTPAdapter {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &HTTPAdapter{
		name:       opts.Name,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		credential: opts.Credential,
		timeout:    opts.Timeout,
		client: &http.Client{
			Transport: transport,
		},
	}
}

// Close releases the adapter's idle connections.
func (a *HTTPAdapter) Close() {
	a.client.CloseIdleConnections()
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one chat-completion exchange and classifies the result.
func (a *HTTPAdapter) Complete(ctx context.Context, req *chatapi.Request, requestID string) (*chatapi.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	payload, err := sonic.Marshal(req)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.KindInternalError, a.name, err)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, a.baseURL+"/chat/completions", strings.NewReader(string(payload)))
	if err != nil {
		return nil, gwerr.Wrap(gwerr.KindInternalError, a.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if a.credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.credential)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(a.name, ctx, attemptCtx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(a.name, ctx, attemptCtx, err)
	}

	return classifyResponse(a.name, resp.StatusCode, body)
}

// classifyTransportError distinguishes caller-origin cancellation from the
// adapter's own per-attempt deadline, and maps everything else to a
// connectivity outcome.
func classifyTransportError(name string, callerCtx, attemptCtx context.Context, err error) error {
	if errors.Is(callerCtx.Err(), context.Canceled) {
		return context.Canceled
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return gwerr.Wrap(gwerr.KindTimeout, name, attemptCtx.Err())
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return gwerr.Wrap(gwerr.KindTimeout, name, err)
	}
	return gwerr.Wrap(gwerr.KindConnectivity, name, err)
}

// classifyResponse maps an HTTP status + body to an adapter outcome per the
// outcome-classification table.
func classifyResponse(name string, status int, body []byte) (*chatapi.Response, error) {
	switch {
	case status == 200:
		var out chatapi.Response
		if err := sonic.Unmarshal(body, &out); err != nil {
			return nil, gwerr.New(gwerr.KindBadGateway, name, "upstream returned an unparseable success body", status)
		}
		return &out, nil

	case status == 400:
		return nil, gwerr.New(gwerr.KindBadRequest, name, extractErrorMessage(body), status)

	case status == 401:
		return nil, gwerr.New(gwerr.KindAuthenticationFailed, name, "authentication failed", status)

	case status == 408 || status == 429:
		kind := gwerr.KindRateLimit
		if status == 408 {
			kind = gwerr.KindTimeout
		}
		return nil, gwerr.New(kind, name, extractErrorMessage(body), status)

	case status >= 500 && status <= 599:
		return nil, gwerr.New(gwerr.KindUpstreamServerError, name, extractErrorMessage(body), status)

	case status >= 402 && status <= 499:
		return nil, gwerr.New(gwerr.KindBadRequest, name, extractErrorMessage(body), status)

	default:
		return nil, gwerr.New(gwerr.KindBadGateway, name, fmt.Sprintf("unexpected upstream status %d", status), status)
	}
}

// extractErrorMessage pulls {"error":{"message":...}} out of body, falling
// back to the raw text when the body isn't JSON shaped that way.
func extractErrorMessage(body []byte) string {
	var eb errorBody
	if err := sonic.Unmarshal(body, &eb); err == nil && eb.Error.Message != "" {
		return eb.Error.Message
	}
	return string(body)
}

// Probe issues a lightweight liveness check against the models endpoint,
// using a fixed deadline independent of the adapter's main timeout.
func (a *HTTPAdapter) Probe(ctx context.Context) (time.Duration, error) {
	probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, a.baseURL+"/models", nil)
	if err != nil {
		return 0, gwerr.Wrap(gwerr.KindInternalError, a.name, err)
	}
	if a.credential != "" {
		req.Header.Set("Authorization", "Bearer "+a.credential)
	}

	start := time.Now()
	resp, err := a.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return latency, classifyTransportError(a.name, ctx, probeCtx, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != 200 {
		return latency, gwerr.New(gwerr.KindUpstreamServerError, a.name, fmt.Sprintf("probe status %d", resp.StatusCode), resp.StatusCode)
	}
	return latency, nil
}
