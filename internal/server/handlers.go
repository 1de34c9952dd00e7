package server

import (
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"

	"github.com/sertdev/inference-gateway/internal/chatapi"
	"github.com/sertdev/inference-gateway/internal/gateway"
	"github.com/sertdev/inference-gateway/internal/gwerr"
	"github.com/sertdev/inference-gateway/internal/health"
	"github.com/sertdev/inference-gateway/internal/logging"
	"github.com/sertdev/inference-gateway/internal/router"
)

type chatHandlers struct {
	snapshots SnapshotSource
	core      *gateway.Core
	router    *router.Router
	health    *health.Cache
	accessLog *logging.AsyncLogger
}

func (h *chatHandlers) completions(w http.ResponseWriter, r *http.Request) {
	requestID := w.Header().Get("X-Request-ID")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gwerr.New(gwerr.KindBadRequest, "", "could not read request body", 0))
		return
	}

	var req chatapi.Request
	if err := sonic.Unmarshal(body, &req); err != nil {
		writeError(w, gwerr.New(gwerr.KindBadRequest, "", "malformed request body", 0))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, gwerr.New(gwerr.KindBadRequest, "", err.Error(), 0))
		return
	}

	snapshot := h.snapshots.Current()
	priority := r.Header.Get("X-Provider-Priority")

	name, err := h.router.Select(priority, h.core.Registry)
	if err != nil {
		writeError(w, err)
		return
	}

	timer := logging.NewTimer()
	resp, err := h.core.Complete(r.Context(), snapshot, name, &req, requestID)
	h.logCompletion(requestID, name, req.Model, timer, resp, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *chatHandlers) logCompletion(requestID, upstream, model string, timer *logging.Timer, resp *chatapi.Response, err error) {
	if h.accessLog == nil {
		return
	}
	entry := &logging.LogEntry{
		RequestID:  requestID,
		Timestamp:  time.Now(),
		Upstream:   upstream,
		Model:      model,
		StatusCode: gwerr.PublicStatus(err),
		LatencyMS:  int64(timer.ElapsedMS()),
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
	} else if resp != nil {
		entry.InputTokens = resp.Usage.PromptTokens
		entry.OutputTokens = resp.Usage.CompletionTokens
	}
	h.accessLog.Log(entry)
}

func (h *chatHandlers) healthDetailed(w http.ResponseWriter, r *http.Request) {
	snapshot := h.snapshots.Current()
	h.health.Refresh(r.Context(), snapshot)

	entries := h.health.All()
	healthyCount, total := 0, 0
	detail := make(map[string]health.Entry, len(entries))
	for _, u := range snapshot.Upstreams {
		if !u.Enabled {
			continue
		}
		total++
		if e, ok := entries[u.Name]; ok {
			detail[u.Name] = e
			if e.Status == health.StatusHealthy {
				healthyCount++
			}
		}
	}

	status := "unhealthy"
	switch {
	case total > 0 && healthyCount == total:
		status = "healthy"
	case healthyCount > 0:
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"upstreams": detail,
	})
}

func (h *chatHandlers) healthProviders(w http.ResponseWriter, r *http.Request) {
	snapshot := h.snapshots.Current()
	h.health.Refresh(r.Context(), snapshot)
	writeJSON(w, http.StatusOK, h.health.All())
}

func (h *chatHandlers) healthProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snapshot := h.snapshots.Current()
	h.health.Refresh(r.Context(), snapshot)

	e, ok := h.health.Get(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *chatHandlers) circuitBreakers(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]any)
	for _, name := range h.core.Composers.Names() {
		if snap, ok := h.core.Composers.BreakerSnapshot(name); ok {
			out[name] = snap
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *chatHandlers) circuitBreaker(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, ok := h.core.Composers.BreakerSnapshot(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := gwerr.PublicStatus(err)
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"message": err.Error()},
	})
}
