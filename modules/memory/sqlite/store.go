package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/flemzord/relaybot/internal/memory"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements memory.SessionStore backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ memory.SessionStore = (*Store)(nil)

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// AppendRun implements memory.SessionStore.
func (s *Store) AppendRun(ctx context.Context, run memory.Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, session_id, user_id, agent_id, input, content, model,
		                  prompt_tokens, completion_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SessionID, run.UserID, run.AgentID, run.Input, run.Content, run.Model,
		run.PromptTokens, run.CompletionTokens, formatTime(run.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append run: %w", err)
	}
	return nil
}

// RecentRuns implements memory.SessionStore.
func (s *Store) RecentRuns(ctx context.Context, sessionID string, n int) ([]memory.Run, error) {
	if n <= 0 {
		return nil, nil
	}
	runs, err := s.queryRuns(ctx, `
		SELECT id, session_id, user_id, agent_id, input, content, model,
		       prompt_tokens, completion_tokens, created_at
		FROM runs
		WHERE session_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, sessionID, n)
	if err != nil {
		return nil, err
	}
	slices.Reverse(runs)
	return runs, nil
}

// SessionRuns implements memory.SessionStore.
func (s *Store) SessionRuns(ctx context.Context, sessionID string) ([]memory.Run, error) {
	runs, err := s.queryRuns(ctx, `
		SELECT id, session_id, user_id, agent_id, input, content, model,
		       prompt_tokens, completion_tokens, created_at
		FROM runs
		WHERE session_id = ?
		ORDER BY created_at, rowid`, sessionID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, memory.ErrSessionNotFound
	}
	return runs, nil
}

// ListSessions implements memory.SessionStore.
func (s *Store) ListSessions(ctx context.Context, opts memory.ListOptions) ([]memory.Session, error) {
	if opts.Limit <= 0 {
		opts.Limit = memory.DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, MAX(agent_id), MAX(user_id), COUNT(*), MIN(created_at), MAX(created_at)
		FROM runs
		WHERE ? = '' OR agent_id = ?
		GROUP BY session_id
		ORDER BY MAX(created_at) DESC, session_id
		LIMIT ? OFFSET ?`,
		opts.AgentID, opts.AgentID, opts.Limit, max(opts.Offset, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sessions := []memory.Session{}
	for rows.Next() {
		var (
			sess             memory.Session
			created, updated string
		)
		if err := rows.Scan(&sess.ID, &sess.AgentID, &sess.UserID, &sess.Runs, &created, &updated); err != nil {
			return nil, fmt.Errorf("sqlite: scan session: %w", err)
		}
		if sess.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if sess.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list sessions rows: %w", err)
	}
	return sessions, nil
}

// DeleteSession implements memory.SessionStore.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("sqlite: delete session: %w", err)
	}
	return nil
}

// PruneBefore implements memory.SessionStore.
func (s *Store) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE created_at < ?", formatTime(t))
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune runs: %w", err)
	}
	return res.RowsAffected()
}

// Ping implements memory.SessionStore.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements memory.SessionStore.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]memory.Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []memory.Run
	for rows.Next() {
		var (
			r       memory.Run
			created string
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.UserID, &r.AgentID, &r.Input, &r.Content, &r.Model,
			&r.PromptTokens, &r.CompletionTokens, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan run: %w", err)
		}
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: query runs rows: %w", err)
	}
	return runs, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse timestamp %q: %w", s, err)
	}
	return t, nil
}
