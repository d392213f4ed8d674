package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/flemzord/relaybot/internal/agent"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

// fakeAPI is an in-memory Bot API that records sendMessage calls.
type fakeAPI struct {
	t   *testing.T
	srv *httptest.Server

	mu         sync.Mutex
	sent       []SendMessageRequest
	actions    int
	rejectHTML bool
	failPlain  bool
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{t: t}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) client() *Client {
	return NewClient("123:TEST", f.srv.URL)
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/sendChatAction"):
		f.mu.Lock()
		f.actions++
		f.mu.Unlock()
		writeJSON(f.t, w, APIResponse[bool]{OK: true, Result: true})

	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		var req SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("decode sendMessage: %v", err)
		}
		f.mu.Lock()
		f.sent = append(f.sent, req)
		rejectHTML, failPlain := f.rejectHTML, f.failPlain
		f.mu.Unlock()

		if (req.ParseMode == ParseModeHTML && rejectHTML) || (req.ParseMode == "" && failPlain) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(APIResponse[json.RawMessage]{
				ErrorCode:   400,
				Description: "Bad Request: can't parse entities: unexpected end tag",
			})
			return
		}
		writeJSON(f.t, w, APIResponse[Message]{OK: true, Result: Message{MessageID: len(f.sent), Chat: Chat{ID: req.ChatID}}})

	default:
		f.t.Errorf("unexpected method: %s", r.URL.Path)
		http.NotFound(w, r)
	}
}

func (f *fakeAPI) chatActions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.actions
}

func (f *fakeAPI) messages() []SendMessageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SendMessageRequest(nil), f.sent...)
}

// stubAgent answers every run with a fixed reply and records inputs.
type stubAgent struct {
	mu     sync.Mutex
	inputs []agent.RunInput
	reply  string
	err    error
}

func (s *stubAgent) Run(_ context.Context, in agent.RunInput) (*agent.RunOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, in)
	if s.err != nil {
		return nil, s.err
	}
	return &agent.RunOutput{RunID: "run-1", SessionID: in.SessionID, Content: s.reply}, nil
}

func (s *stubAgent) calls() []agent.RunInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]agent.RunInput(nil), s.inputs...)
}

type stubSessions struct {
	deleted []string
}

func (s *stubSessions) DeleteSession(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func textUpdate(id, chatID int64, text string) Update {
	return Update{
		UpdateID: id,
		Message: &Message{
			MessageID: int(id),
			From:      &User{ID: 100, FirstName: "Alice", Username: "alice"},
			Chat:      Chat{ID: chatID, Type: "private"},
			Text:      text,
		},
	}
}
