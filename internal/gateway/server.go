package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler builds the chi mux with all routes wired.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// Health and metrics stay public.
	r.Get("/health", s.handleHealth())
	r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.opts.Config.SecurityKey))

		r.Get("/config", s.handleConfig())

		r.Get("/agents", s.handleListAgents())
		r.Get("/agents/{id}", s.handleGetAgent())
		r.Post("/agents/{id}/runs", s.handleCreateRun())

		r.Get("/sessions", s.handleListSessions())
		r.Get("/sessions/{id}/runs", s.handleSessionRuns())
		r.Delete("/sessions/{id}", s.handleDeleteSession())

		r.Get("/knowledge/search", s.handleKnowledgeSearch())
		r.Post("/knowledge/reload", s.handleKnowledgeReload())
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
