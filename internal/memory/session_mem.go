package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// InMemorySessionStore is a thread-safe, in-memory SessionStore.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]Run
}

// NewInMemorySessionStore creates a new empty store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[string][]Run),
	}
}

// Compile-time interface check.
var _ SessionStore = (*InMemorySessionStore)(nil)

// AppendRun stores a finished run.
func (s *InMemorySessionStore) AppendRun(_ context.Context, run Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Keep runs ordered by creation time; equal timestamps keep insertion order.
	runs := s.sessions[run.SessionID]
	i := len(runs)
	for i > 0 && runs[i-1].CreatedAt.After(run.CreatedAt) {
		i--
	}
	s.sessions[run.SessionID] = slices.Insert(runs, i, run)
	return nil
}

// RecentRuns returns up to n most recent runs, oldest first.
func (s *InMemorySessionStore) RecentRuns(_ context.Context, sessionID string, n int) ([]Run, error) {
	if n <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := s.sessions[sessionID]
	if n < len(runs) {
		runs = runs[len(runs)-n:]
	}
	return slices.Clone(runs), nil
}

// SessionRuns returns every run of a session.
func (s *InMemorySessionStore) SessionRuns(_ context.Context, sessionID string) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs, ok := s.sessions[sessionID]
	if !ok || len(runs) == 0 {
		return nil, ErrSessionNotFound
	}
	return slices.Clone(runs), nil
}

// ListSessions returns sessions, most recently updated first.
func (s *InMemorySessionStore) ListSessions(_ context.Context, opts ListOptions) ([]Session, error) {
	s.mu.RLock()
	var out []Session
	for id, runs := range s.sessions {
		if len(runs) == 0 {
			continue
		}
		first, last := runs[0], runs[len(runs)-1]
		if opts.AgentID != "" && last.AgentID != opts.AgentID {
			continue
		}
		out = append(out, Session{
			ID:        id,
			AgentID:   last.AgentID,
			UserID:    first.UserID,
			Runs:      len(runs),
			CreatedAt: first.CreatedAt,
			UpdatedAt: last.CreatedAt,
		})
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Session) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return page(out, opts), nil
}

// DeleteSession removes all runs of a session.
func (s *InMemorySessionStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// PruneBefore deletes runs created before t.
func (s *InMemorySessionStore) PruneBefore(_ context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, runs := range s.sessions {
		kept := runs[:0]
		for _, r := range runs {
			if r.CreatedAt.Before(t) {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			delete(s.sessions, id)
		} else {
			s.sessions[id] = kept
		}
	}
	return removed, nil
}

// Ping always succeeds.
func (s *InMemorySessionStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *InMemorySessionStore) Close() error { return nil }

func page(sessions []Session, opts ListOptions) []Session {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if opts.Offset >= len(sessions) {
		return []Session{}
	}
	sessions = sessions[max(opts.Offset, 0):]
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions
}
