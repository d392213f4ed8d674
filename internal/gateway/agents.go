package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/flemzord/relaybot/internal/agent"
	"github.com/flemzord/relaybot/internal/knowledge"
	"github.com/flemzord/relaybot/internal/security"
)

// Limits for POST /agents/{id}/runs bodies.
const (
	maxRunBody      = security.DefaultMaxBodyBytes
	maxRunJSONDepth = 8
)

// ConfigResponse is the JSON response for GET /config.
type ConfigResponse struct {
	OSID        string             `json:"os_id"`
	Description string             `json:"description,omitempty"`
	Agents      []agent.Descriptor `json:"agents"`
	Knowledge   *KnowledgeSummary  `json:"knowledge,omitempty"`
}

// KnowledgeSummary describes the attached knowledge base.
type KnowledgeSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MaxResults  int    `json:"max_results"`
	Chunks      int    `json:"chunks"`
}

// RunRequest is the body accepted by POST /agents/{id}/runs, either as
// JSON or as form fields of the same names.
type RunRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

func (s *Server) descriptors() []agent.Descriptor {
	out := make([]agent.Descriptor, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.agents[id].Describe())
	}
	return out
}

func (s *Server) handleConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := ConfigResponse{
			OSID:        s.opts.Config.OSID,
			Description: s.opts.Config.Description,
			Agents:      s.descriptors(),
		}
		if kb := s.opts.Knowledge; kb != nil {
			sum := &KnowledgeSummary{
				Name:        kb.Name(),
				Description: kb.Description(),
				MaxResults:  kb.MaxResults(),
			}
			if n, err := kb.Count(r.Context()); err == nil {
				sum.Chunks = n
			} else if !errors.Is(err, knowledge.ErrNotConfigured) {
				s.logger.Warn("config: counting knowledge chunks", "error", err)
			}
			resp.Knowledge = sum
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleListAgents() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.descriptors())
	}
}

func (s *Server) handleGetAgent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := s.agents[chi.URLParam(r, "id")]
		if !ok {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
		writeJSON(w, http.StatusOK, a.Describe())
	}
}

func (s *Server) handleCreateRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := s.agents[chi.URLParam(r, "id")]
		if !ok {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRunBody)
		req, err := decodeRunRequest(r)
		if errors.Is(err, security.ErrBodyTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			writeError(w, http.StatusBadRequest, "message is required")
			return
		}
		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}

		out, err := a.Run(r.Context(), agent.RunInput{
			SessionID: req.SessionID,
			UserID:    req.UserID,
			Message:   req.Message,
		})
		switch {
		case errors.Is(err, agent.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "message is required")
			return
		case err != nil:
			s.logger.Error("agent run failed",
				"agent_id", a.ID(),
				"session_id", req.SessionID,
				"error", err,
			)
			writeError(w, http.StatusInternalServerError, "agent run failed")
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func decodeRunRequest(r *http.Request) (RunRequest, error) {
	var req RunRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return req, bodyError(err, "invalid JSON body")
		}
		err = security.CheckJSONBody(data, security.BodyLimits{MaxBytes: maxRunBody, MaxDepth: maxRunJSONDepth})
		switch {
		case errors.Is(err, security.ErrInvalidJSON):
			return req, errors.New("invalid JSON body")
		case err != nil:
			return req, err
		case len(data) == 0:
			return req, nil
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return req, errors.New("invalid JSON body")
		}
		return req, nil
	}

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxRunBody); err != nil {
			return req, bodyError(err, "invalid form body")
		}
	} else if err := r.ParseForm(); err != nil {
		return req, bodyError(err, "invalid form body")
	}
	req.Message = r.FormValue("message")
	req.SessionID = r.FormValue("session_id")
	req.UserID = r.FormValue("user_id")
	return req, nil
}

// bodyError maps a read cut short by http.MaxBytesReader to
// security.ErrBodyTooLarge and anything else to msg.
func bodyError(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return security.ErrBodyTooLarge
	}
	return errors.New(msg)
}
