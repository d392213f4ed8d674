package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/relaybot/internal/memory"
)

const maxListLimit = 100

// SessionsResponse is the JSON response for GET /sessions.
type SessionsResponse struct {
	Sessions []memory.Session `json:"sessions"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
}

func (s *Server) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, err := positiveInt(q.Get("limit"), memory.DefaultListLimit)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(limit, maxListLimit)
		page, err := positiveInt(q.Get("page"), 1)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}

		sessions, err := s.opts.Sessions.ListSessions(r.Context(), memory.ListOptions{
			AgentID: q.Get("agent_id"),
			Limit:   limit,
			Offset:  (page - 1) * limit,
		})
		if err != nil {
			s.logger.Error("listing sessions", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list sessions")
			return
		}
		if sessions == nil {
			sessions = []memory.Session{}
		}
		writeJSON(w, http.StatusOK, SessionsResponse{Sessions: sessions, Page: page, Limit: limit})
	}
}

func (s *Server) handleSessionRuns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := s.opts.Sessions.SessionRuns(r.Context(), chi.URLParam(r, "id"))
		switch {
		case errors.Is(err, memory.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "session not found")
			return
		case err != nil:
			s.logger.Error("loading session runs", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load runs")
			return
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func (s *Server) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := s.opts.Sessions.DeleteSession(r.Context(), id); err != nil {
			s.logger.Error("deleting session", "session_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to delete session")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// positiveInt parses raw, returning def when it is empty.
func positiveInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("must be a positive integer")
	}
	return n, nil
}
