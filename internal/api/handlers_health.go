package api

import (
	"context"
	"net/http"
	"time"

	"lawyrs/internal/domain"
)

const healthCheckTimeout = 3 * time.Second

type HealthHandler struct {
	store   Pinger
	remote  RemoteChecker
	llm     domain.TextGenerator
	version string
}

type serviceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status      string       `json:"status"`
	Version     string       `json:"version,omitempty"`
	Store       serviceCheck `json:"store"`
	RemoteAgent serviceCheck `json:"remote_agent"`
	LLM         serviceCheck `json:"llm"`
}

// Health reports the store and both generation backends. Only a store
// failure makes the service unhealthy; the backends have fallbacks.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Version: h.version}

	switch {
	case h.store == nil:
		resp.Store = serviceCheck{Status: "disabled"}
	default:
		if err := h.store.Ping(ctx); err != nil {
			resp.Store = serviceCheck{Status: "error", Message: err.Error()}
			resp.Status = "error"
		} else {
			resp.Store = serviceCheck{Status: "ok"}
		}
	}

	switch {
	case h.remote == nil || !h.remote.Enabled():
		resp.RemoteAgent = serviceCheck{Status: "disabled"}
	default:
		if err := h.remote.Health(ctx); err != nil {
			resp.RemoteAgent = serviceCheck{Status: "error", Message: err.Error()}
			if resp.Status == "ok" {
				resp.Status = "degraded"
			}
		} else {
			resp.RemoteAgent = serviceCheck{Status: "ok"}
		}
	}

	if h.llm != nil && h.llm.Configured() {
		resp.LLM = serviceCheck{Status: "configured", Message: h.llm.Name()}
	} else {
		resp.LLM = serviceCheck{Status: "disabled"}
	}

	status := http.StatusOK
	if resp.Status == "error" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
