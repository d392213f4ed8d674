package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/flemzord/relaybot/internal/agent"
	"github.com/flemzord/relaybot/internal/config"
	"github.com/flemzord/relaybot/internal/knowledge"
	"github.com/flemzord/relaybot/internal/memory"
	"github.com/flemzord/relaybot/internal/metrics"
	"github.com/flemzord/relaybot/internal/provider"
	"github.com/flemzord/relaybot/internal/provider/providertest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// letterEmbedder maps text to letter frequencies over a..z.
type letterEmbedder struct{}

func (letterEmbedder) Model() string { return "letters" }

func (letterEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 26)
		for _, r := range strings.ToLower(t) {
			if r >= 'a' && r <= 'z' {
				v[r-'a']++
			}
		}
		out[i] = v
	}
	return out, nil
}

type staticSource []knowledge.Document

func (s staticSource) Documents(context.Context) ([]knowledge.Document, error) {
	return s, nil
}

// downStore fails every ping.
type downStore struct {
	memory.SessionStore
}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

type fixture struct {
	srv      *httptest.Server
	sessions memory.SessionStore
	provider *providertest.MockProvider
	kb       *knowledge.Knowledge
	metrics  *metrics.Metrics
}

type fixtureOptions struct {
	securityKey string
	noKnowledge bool
	sessions    memory.SessionStore
	offset      func() int64
	complete    func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error)
}

func newFixture(t *testing.T, o fixtureOptions) *fixture {
	t.Helper()

	f := &fixture{
		sessions: o.sessions,
		provider: &providertest.MockProvider{CompleteFunc: o.complete},
		metrics:  metrics.New(),
	}
	if f.provider.CompleteFunc == nil {
		f.provider.CompleteFunc = providertest.Reply("hello from the agent")
	}
	if f.sessions == nil {
		f.sessions = memory.NewInMemorySessionStore()
	}
	if !o.noKnowledge {
		f.kb = knowledge.New(knowledge.Config{
			Name:       "Event Knowledge",
			MaxResults: 2,
			Embedder:   letterEmbedder{},
			Store:      knowledge.NewMemoryStore(),
			Source: staticSource{
				{Name: "venue.md", Content: "The venue is the harbour hall."},
				{Name: "food.md", Content: "Lunch is served at noon."},
			},
			Logger: discardLogger(),
		})
		if _, err := f.kb.Reload(context.Background()); err != nil {
			t.Fatalf("Reload: %v", err)
		}
	}

	a, err := agent.New(agent.Config{
		ID:          "event-agent",
		Name:        "Event Assistant",
		HistoryRuns: 3,
		Knowledge:   f.kb,
	}, agent.Deps{
		Provider: f.provider,
		Sessions: f.sessions,
		Logger:   discardLogger(),
		Metrics:  f.metrics,
	})
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}

	s := New(Options{
		Config:    config.ServerConfig{OSID: "event-os", Description: "test runtime", SecurityKey: o.securityKey},
		Agents:    []*agent.Agent{a},
		Sessions:  f.sessions,
		Knowledge: f.kb,
		Metrics:   f.metrics,
		Logger:    discardLogger(),
		Offset:    o.offset,
	})
	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, contentType, body string, header ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}
