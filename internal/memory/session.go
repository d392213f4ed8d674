// Package memory defines the session store that persists agent runs, with
// an in-memory implementation. SQL-backed stores live under modules/memory.
package memory

import (
	"context"
	"errors"
	"time"

	"github.com/flemzord/relaybot/internal/provider"
)

// ErrSessionNotFound is returned when a session has no stored runs.
var ErrSessionNotFound = errors.New("memory: session not found")

// Run is one persisted user turn and the agent's answer to it.
type Run struct {
	ID               string    `json:"run_id" db:"id"`
	SessionID        string    `json:"session_id" db:"session_id"`
	UserID           string    `json:"user_id,omitempty" db:"user_id"`
	AgentID          string    `json:"agent_id" db:"agent_id"`
	Input            string    `json:"input" db:"input"`
	Content          string    `json:"content" db:"content"`
	Model            string    `json:"model,omitempty" db:"model"`
	PromptTokens     int       `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens" db:"completion_tokens"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// Messages returns the run as a user/assistant message pair for history.
func (r Run) Messages() []provider.LLMMessage {
	msgs := []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: r.Input}}
	if r.Content != "" {
		msgs = append(msgs, provider.LLMMessage{Role: provider.MessageRoleAssistant, Content: r.Content})
	}
	return msgs
}

// Session is an aggregate view over the runs sharing a session id.
type Session struct {
	ID        string    `json:"session_id" db:"session_id"`
	AgentID   string    `json:"agent_id" db:"agent_id"`
	UserID    string    `json:"user_id,omitempty" db:"user_id"`
	Runs      int       `json:"runs" db:"runs"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ListOptions filters and pages ListSessions.
type ListOptions struct {
	// AgentID restricts the listing to one agent when set.
	AgentID string
	Limit   int
	Offset  int
}

// DefaultListLimit applies when ListOptions.Limit is not positive.
const DefaultListLimit = 20

// SessionStore persists agent runs grouped by session.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	// AppendRun stores a finished run.
	AppendRun(ctx context.Context, run Run) error

	// RecentRuns returns up to n most recent runs of a session, oldest first.
	RecentRuns(ctx context.Context, sessionID string, n int) ([]Run, error)

	// SessionRuns returns every run of a session, oldest first, or
	// ErrSessionNotFound.
	SessionRuns(ctx context.Context, sessionID string) ([]Run, error)

	// ListSessions returns sessions, most recently updated first.
	ListSessions(ctx context.Context, opts ListOptions) ([]Session, error)

	// DeleteSession removes all runs of a session. Deleting an unknown
	// session is not an error.
	DeleteSession(ctx context.Context, sessionID string) error

	// PruneBefore deletes runs created before t and returns how many.
	PruneBefore(ctx context.Context, t time.Time) (int64, error)

	// Ping checks the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// History flattens runs into the message list fed to the provider.
func History(runs []Run) []provider.LLMMessage {
	msgs := make([]provider.LLMMessage, 0, len(runs)*2)
	for _, r := range runs {
		msgs = append(msgs, r.Messages()...)
	}
	return msgs
}
