package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/flemzord/relaybot/internal/knowledge"
)

// SearchResponse is the JSON response for GET /knowledge/search.
type SearchResponse struct {
	Query   string            `json:"query"`
	Results []knowledge.Match `json:"results"`
}

// ReloadResponse is the JSON response for POST /knowledge/reload.
type ReloadResponse struct {
	Chunks int `json:"chunks"`
}

func (s *Server) handleKnowledgeSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kb := s.opts.Knowledge
		if kb == nil {
			writeError(w, http.StatusServiceUnavailable, "knowledge base not configured")
			return
		}
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			writeError(w, http.StatusBadRequest, "q is required")
			return
		}
		limit, err := positiveInt(r.URL.Query().Get("limit"), kb.MaxResults())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}

		matches, err := kb.Search(r.Context(), query, limit)
		switch {
		case errors.Is(err, knowledge.ErrNotConfigured):
			writeError(w, http.StatusServiceUnavailable, "knowledge base not configured")
			return
		case err != nil:
			s.logger.Error("knowledge search failed", "error", err)
			writeError(w, http.StatusInternalServerError, "search failed")
			return
		}
		if matches == nil {
			matches = []knowledge.Match{}
		}
		writeJSON(w, http.StatusOK, SearchResponse{Query: query, Results: matches})
	}
}

func (s *Server) handleKnowledgeReload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kb := s.opts.Knowledge
		if kb == nil {
			writeError(w, http.StatusServiceUnavailable, "knowledge base not configured")
			return
		}

		n, err := kb.Reload(r.Context())
		switch {
		case errors.Is(err, knowledge.ErrNotConfigured):
			writeError(w, http.StatusServiceUnavailable, "knowledge base not configured")
			return
		case errors.Is(err, knowledge.ErrNoSource), errors.Is(err, knowledge.ErrSourceNotFound):
			writeError(w, http.StatusNotFound, err.Error())
			return
		case err != nil:
			s.logger.Error("knowledge reload failed", "error", err)
			writeError(w, http.StatusInternalServerError, "reload failed")
			return
		}
		s.logger.Info("knowledge reloaded", "chunks", n)
		writeJSON(w, http.StatusOK, ReloadResponse{Chunks: n})
	}
}
