// Package memorytest holds a behaviour suite shared by every
// memory.SessionStore implementation.
package memorytest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/flemzord/relaybot/internal/memory"
)

// Base is the timestamp of the first run written by the suite.
var Base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// NewRun builds the i-th run of a session, i minutes after Base.
func NewRun(session string, i int) memory.Run {
	return memory.Run{
		ID:               fmt.Sprintf("%s-%d", session, i),
		SessionID:        session,
		UserID:           "user-" + session,
		AgentID:          "agent",
		Input:            fmt.Sprintf("q%d", i),
		Content:          fmt.Sprintf("a%d", i),
		Model:            "model",
		PromptTokens:     10 + i,
		CompletionTokens: i,
		CreatedAt:        Base.Add(time.Duration(i) * time.Minute),
	}
}

// Run exercises a fresh store returned by newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) memory.SessionStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("RecentRunsChronological", func(t *testing.T) {
		s := newStore(t)
		for i := range 5 {
			mustAppend(t, s, NewRun("s1", i))
		}
		runs, err := s.RecentRuns(ctx, "s1", 3)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 3 || runs[0].Input != "q2" || runs[2].Input != "q4" {
			t.Fatalf("runs = %+v, want q2..q4", runs)
		}
		want := NewRun("s1", 4)
		got := runs[2]
		if got.ID != want.ID || got.UserID != want.UserID || got.Model != want.Model ||
			got.PromptTokens != want.PromptTokens || !got.CreatedAt.Equal(want.CreatedAt) {
			t.Errorf("round trip = %+v, want %+v", got, want)
		}
		if runs, _ := s.RecentRuns(ctx, "missing", 3); len(runs) != 0 {
			t.Errorf("missing session returned %d runs", len(runs))
		}
	})

	t.Run("SessionRuns", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.SessionRuns(ctx, "nope"); !errors.Is(err, memory.ErrSessionNotFound) {
			t.Fatalf("err = %v, want ErrSessionNotFound", err)
		}
		mustAppend(t, s, NewRun("s", 1))
		mustAppend(t, s, NewRun("s", 0))
		runs, err := s.SessionRuns(ctx, "s")
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 2 || runs[0].Input != "q0" {
			t.Errorf("runs = %+v, want oldest first", runs)
		}
	})

	t.Run("ListSessions", func(t *testing.T) {
		s := newStore(t)
		mustAppend(t, s, NewRun("old", 0))
		mustAppend(t, s, NewRun("new", 5))
		mustAppend(t, s, NewRun("new", 6))
		mustAppend(t, s, NewRun("mid", 2))

		sessions, err := s.ListSessions(ctx, memory.ListOptions{AgentID: "agent"})
		if err != nil {
			t.Fatal(err)
		}
		if len(sessions) != 3 || sessions[0].ID != "new" || sessions[2].ID != "old" {
			t.Fatalf("sessions = %+v", sessions)
		}
		if sessions[0].Runs != 2 || !sessions[0].UpdatedAt.Equal(NewRun("new", 6).CreatedAt) ||
			!sessions[0].CreatedAt.Equal(NewRun("new", 5).CreatedAt) {
			t.Errorf("aggregate = %+v", sessions[0])
		}

		page, err := s.ListSessions(ctx, memory.ListOptions{Limit: 1, Offset: 1})
		if err != nil {
			t.Fatal(err)
		}
		if len(page) != 1 || page[0].ID != "mid" {
			t.Errorf("page = %+v, want [mid]", page)
		}

		none, err := s.ListSessions(ctx, memory.ListOptions{AgentID: "someone-else"})
		if err != nil || len(none) != 0 {
			t.Errorf("other agent = %+v, %v", none, err)
		}
	})

	t.Run("DeleteSession", func(t *testing.T) {
		s := newStore(t)
		mustAppend(t, s, NewRun("a", 0))
		mustAppend(t, s, NewRun("b", 0))
		if err := s.DeleteSession(ctx, "a"); err != nil {
			t.Fatal(err)
		}
		if err := s.DeleteSession(ctx, "a"); err != nil {
			t.Fatalf("second delete: %v", err)
		}
		if _, err := s.SessionRuns(ctx, "a"); !errors.Is(err, memory.ErrSessionNotFound) {
			t.Errorf("session a still present: %v", err)
		}
		if _, err := s.SessionRuns(ctx, "b"); err != nil {
			t.Errorf("session b removed: %v", err)
		}
	})

	t.Run("PruneBefore", func(t *testing.T) {
		s := newStore(t)
		for i := range 4 {
			mustAppend(t, s, NewRun("a", i))
		}
		n, err := s.PruneBefore(ctx, Base.Add(2*time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("pruned = %d, want 2", n)
		}
		runs, _ := s.SessionRuns(ctx, "a")
		if len(runs) != 2 || runs[0].Input != "q2" {
			t.Errorf("remaining = %+v", runs)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := newStore(t).Ping(ctx); err != nil {
			t.Fatal(err)
		}
	})
}

func mustAppend(t *testing.T, s memory.SessionStore, r memory.Run) {
	t.Helper()
	if err := s.AppendRun(context.Background(), r); err != nil {
		t.Fatalf("AppendRun(%s): %v", r.ID, err)
	}
}
