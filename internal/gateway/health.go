package gateway

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status         string `json:"status"` // "ok" or "degraded"
	Uptime         int64  `json:"uptime_seconds"`
	Storage        string `json:"storage,omitempty"`
	TelegramOffset *int64 `json:"telegram_offset,omitempty"`
}

const healthPingTimeout = 2 * time.Second

// handleHealth returns 200 when the session store answers, 503 otherwise.
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status: "ok",
			Uptime: int64(time.Since(s.startedAt).Seconds()),
		}
		if s.opts.Offset != nil {
			off := s.opts.Offset()
			resp.TelegramOffset = &off
		}

		if s.opts.Sessions != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
			defer cancel()
			resp.Storage = "ok"
			if err := s.opts.Sessions.Ping(ctx); err != nil {
				s.logger.Warn("health: session store unreachable", "error", err)
				resp.Status = "degraded"
				resp.Storage = "unreachable"
			}
		}

		code := http.StatusOK
		if resp.Status == "degraded" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
