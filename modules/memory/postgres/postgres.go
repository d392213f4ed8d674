// Package postgres implements memory.SessionStore on PostgreSQL through
// sqlx and lib/pq.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver registration

	"github.com/flemzord/relaybot/internal/memory"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS relaybot_runs (
		id                TEXT        PRIMARY KEY,
		session_id        TEXT        NOT NULL,
		user_id           TEXT        NOT NULL DEFAULT '',
		agent_id          TEXT        NOT NULL DEFAULT '',
		input             TEXT        NOT NULL DEFAULT '',
		content           TEXT        NOT NULL DEFAULT '',
		model             TEXT        NOT NULL DEFAULT '',
		prompt_tokens     INTEGER     NOT NULL DEFAULT 0,
		completion_tokens INTEGER     NOT NULL DEFAULT 0,
		created_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_relaybot_runs_session ON relaybot_runs(session_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_relaybot_runs_created ON relaybot_runs(created_at)`,
}

const runColumns = `id, session_id, user_id, agent_id, input, content, model,
	prompt_tokens, completion_tokens, created_at`

// Store implements memory.SessionStore backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ memory.SessionStore = (*Store)(nil)

// Open connects to dsn (a postgres:// URL or key=value string) and
// creates the schema when missing.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection. The schema must already exist.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}

// AppendRun implements memory.SessionStore.
func (s *Store) AppendRun(ctx context.Context, run memory.Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO relaybot_runs (`+runColumns+`)
		VALUES (:id, :session_id, :user_id, :agent_id, :input, :content, :model,
		        :prompt_tokens, :completion_tokens, :created_at)`, run)
	if err != nil {
		return fmt.Errorf("postgres: append run: %w", err)
	}
	return nil
}

// RecentRuns implements memory.SessionStore.
func (s *Store) RecentRuns(ctx context.Context, sessionID string, n int) ([]memory.Run, error) {
	if n <= 0 {
		return nil, nil
	}
	var runs []memory.Run
	err := sqlx.SelectContext(ctx, s.db, &runs, `
		SELECT * FROM (
			SELECT `+runColumns+` FROM relaybot_runs
			WHERE session_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC`, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent runs: %w", err)
	}
	return normalize(runs), nil
}

// SessionRuns implements memory.SessionStore.
func (s *Store) SessionRuns(ctx context.Context, sessionID string) ([]memory.Run, error) {
	var runs []memory.Run
	err := sqlx.SelectContext(ctx, s.db, &runs, `
		SELECT `+runColumns+` FROM relaybot_runs
		WHERE session_id = $1
		ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: session runs: %w", err)
	}
	if len(runs) == 0 {
		return nil, memory.ErrSessionNotFound
	}
	return normalize(runs), nil
}

// ListSessions implements memory.SessionStore.
func (s *Store) ListSessions(ctx context.Context, opts memory.ListOptions) ([]memory.Session, error) {
	if opts.Limit <= 0 {
		opts.Limit = memory.DefaultListLimit
	}
	sessions := []memory.Session{}
	err := sqlx.SelectContext(ctx, s.db, &sessions, `
		SELECT session_id,
		       MAX(agent_id)   AS agent_id,
		       MAX(user_id)    AS user_id,
		       COUNT(*)        AS runs,
		       MIN(created_at) AS created_at,
		       MAX(created_at) AS updated_at
		FROM relaybot_runs
		WHERE $1 = '' OR agent_id = $1
		GROUP BY session_id
		ORDER BY MAX(created_at) DESC, session_id
		LIMIT $2 OFFSET $3`, opts.AgentID, opts.Limit, max(opts.Offset, 0))
	if err != nil {
		return nil, fmt.Errorf("postgres: list sessions: %w", err)
	}
	for i := range sessions {
		sessions[i].CreatedAt = sessions[i].CreatedAt.UTC()
		sessions[i].UpdatedAt = sessions[i].UpdatedAt.UTC()
	}
	return sessions, nil
}

// DeleteSession implements memory.SessionStore.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM relaybot_runs WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("postgres: delete session: %w", err)
	}
	return nil
}

// PruneBefore implements memory.SessionStore.
func (s *Store) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM relaybot_runs WHERE created_at < $1`, t)
	if err != nil {
		return 0, fmt.Errorf("postgres: prune runs: %w", err)
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

func normalize(runs []memory.Run) []memory.Run {
	for i := range runs {
		runs[i].CreatedAt = runs[i].CreatedAt.UTC()
	}
	return runs
}
