package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

const healthCheckTimeout = time.Second

// HealthCheck pings one dependency such as the database or Redis.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks    map[string]HealthCheck
	now       func() time.Time
	responder responder
}

func NewHealthHandler(checks map[string]HealthCheck, now func() time.Time, logger *zerolog.Logger) *HealthHandler {
	if now == nil {
		now = time.Now
	}
	return &HealthHandler{checks: checks, now: now, responder: newResponder(logger)}
}

// Get reports "ok" with 200 when every check passes and "degraded" with 503 otherwise.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil {
		notConfigured(w)
		return
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{Status: "ok", Time: formatTime(h.now()), Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := h.checks[name](ctx)
		cancel()
		if err != nil {
			logger := h.responder.loggerFor(r.Context())
			logger.Warn().Err(err).Str("check", name).Msg("health check failed")
			resp.Checks[name] = "error"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	h.responder.writeJSON(r.Context(), w, status, resp)
}

type healthResponse struct {
	Status string            `json:"status"`
	Time   string            `json:"time"`
	Checks map[string]string `json:"checks,omitempty"`
}
