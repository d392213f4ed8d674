package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/flemzord/relaybot/internal/agent"
	"github.com/flemzord/relaybot/internal/config"
	"github.com/flemzord/relaybot/internal/memory"
	"github.com/flemzord/relaybot/internal/provider"
)

func TestHealth(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{offset: func() int64 { return 42 }})
	resp := f.do(t, http.MethodGet, "/health", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	h := decode[HealthResponse](t, resp)
	if h.Status != "ok" || h.Storage != "ok" {
		t.Errorf("health = %+v", h)
	}
	if h.TelegramOffset == nil || *h.TelegramOffset != 42 {
		t.Errorf("telegram_offset = %v, want 42", h.TelegramOffset)
	}
}

func TestHealth_Degraded(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{sessions: downStore{memory.NewInMemorySessionStore()}})
	resp := f.do(t, http.MethodGet, "/health", "", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if h := decode[HealthResponse](t, resp); h.Status != "degraded" {
		t.Errorf("status = %q, want degraded", h.Status)
	}
}

func TestAuth(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{securityKey: "s3cret"})

	tests := []struct {
		name   string
		path   string
		header []string
		want   int
	}{
		{name: "health is public", path: "/health", want: http.StatusOK},
		{name: "metrics is public", path: "/metrics", want: http.StatusOK},
		{name: "missing token", path: "/agents", want: http.StatusUnauthorized},
		{name: "wrong token", path: "/agents", header: []string{"Authorization", "Bearer nope"}, want: http.StatusUnauthorized},
		{name: "basic scheme", path: "/agents", header: []string{"Authorization", "Basic czNjcmV0"}, want: http.StatusUnauthorized},
		{name: "valid token", path: "/agents", header: []string{"Authorization", "Bearer s3cret"}, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodGet, tt.path, "", "", tt.header...)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestConfigAndAgents(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})

	cfg := decode[ConfigResponse](t, f.do(t, http.MethodGet, "/config", "", ""))
	if cfg.OSID != "event-os" || len(cfg.Agents) != 1 {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.Knowledge == nil || cfg.Knowledge.Name != "Event Knowledge" || cfg.Knowledge.Chunks != 2 {
		t.Errorf("knowledge = %+v", cfg.Knowledge)
	}

	agents := decode[[]agent.Descriptor](t, f.do(t, http.MethodGet, "/agents", "", ""))
	if len(agents) != 1 || agents[0].ID != "event-agent" || agents[0].Model != "mock" {
		t.Errorf("agents = %+v", agents)
	}

	one := decode[agent.Descriptor](t, f.do(t, http.MethodGet, "/agents/event-agent", "", ""))
	if one.Name != "Event Assistant" {
		t.Errorf("agent = %+v", one)
	}

	if resp := f.do(t, http.MethodGet, "/agents/ghost", "", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown agent status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateRun_JSON(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	resp := f.do(t, http.MethodPost, "/agents/event-agent/runs", "application/json",
		`{"message":"where is the venue?","session_id":"s-1","user_id":"u-1"}`)
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	out := decode[agent.RunOutput](t, resp)
	if out.Content != "hello from the agent" || out.SessionID != "s-1" || out.AgentID != "event-agent" {
		t.Errorf("output = %+v", out)
	}

	runs, err := f.sessions.SessionRuns(context.Background(), "s-1")
	if err != nil || len(runs) != 1 || runs[0].UserID != "u-1" {
		t.Fatalf("runs = %+v, %v", runs, err)
	}
}

func TestCreateRun_FormAssignsSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	form := url.Values{"message": {"when is lunch?"}}
	resp := f.do(t, http.MethodPost, "/agents/event-agent/runs", "application/x-www-form-urlencoded", form.Encode())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	out := decode[agent.RunOutput](t, resp)
	if len(out.SessionID) != 36 {
		t.Errorf("session id = %q, want a uuid", out.SessionID)
	}
}

func TestCreateRun_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{complete: func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
		return provider.CompletionResponse{}, errors.New("upstream down")
	}})

	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		want        int
	}{
		{name: "unknown agent", path: "/agents/ghost/runs", contentType: "application/json", body: `{"message":"hi"}`, want: http.StatusNotFound},
		{name: "blank message", path: "/agents/event-agent/runs", contentType: "application/json", body: `{"message":"  "}`, want: http.StatusBadRequest},
		{name: "bad json", path: "/agents/event-agent/runs", contentType: "application/json", body: `{"message":`, want: http.StatusBadRequest},
		{name: "empty form", path: "/agents/event-agent/runs", contentType: "application/x-www-form-urlencoded", body: "", want: http.StatusBadRequest},
		{name: "nested json", path: "/agents/event-agent/runs", contentType: "application/json", body: `{"message":"hi","x":` + strings.Repeat("[", 9) + strings.Repeat("]", 9) + `}`, want: http.StatusBadRequest},
		{name: "provider failure", path: "/agents/event-agent/runs", contentType: "application/json", body: `{"message":"hi"}`, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, tt.path, tt.contentType, tt.body)
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if e := decode[errorResponse](t, resp); e.Error == "" {
				t.Error("missing error message")
			}
		})
	}
}

func TestSessions(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	for _, sid := range []string{"a", "b", "a"} {
		resp := f.do(t, http.MethodPost, "/agents/event-agent/runs", "application/json",
			`{"message":"hi","session_id":"`+sid+`"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("run status = %d", resp.StatusCode)
		}
	}

	list := decode[SessionsResponse](t, f.do(t, http.MethodGet, "/sessions?agent_id=event-agent&limit=1", "", ""))
	if len(list.Sessions) != 1 || list.Page != 1 || list.Limit != 1 {
		t.Fatalf("list = %+v", list)
	}
	page2 := decode[SessionsResponse](t, f.do(t, http.MethodGet, "/sessions?limit=1&page=2", "", ""))
	if len(page2.Sessions) != 1 || page2.Sessions[0].ID == list.Sessions[0].ID {
		t.Fatalf("page 2 = %+v", page2)
	}
	if resp := f.do(t, http.MethodGet, "/sessions?limit=zero", "", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", resp.StatusCode)
	}

	runs := decode[[]memory.Run](t, f.do(t, http.MethodGet, "/sessions/a/runs", "", ""))
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}

	if resp := f.do(t, http.MethodDelete, "/sessions/a", "", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/sessions/a/runs", "", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("runs after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestKnowledgeSearch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})

	res := decode[SearchResponse](t, f.do(t, http.MethodGet, "/knowledge/search?q=venue+harbour&limit=1", "", ""))
	if len(res.Results) != 1 || res.Results[0].Document != "venue.md" {
		t.Fatalf("results = %+v", res.Results)
	}
	if resp := f.do(t, http.MethodGet, "/knowledge/search", "", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing q status = %d", resp.StatusCode)
	}

	reload := decode[ReloadResponse](t, f.do(t, http.MethodPost, "/knowledge/reload", "", ""))
	if reload.Chunks != 2 {
		t.Errorf("reload chunks = %d, want 2", reload.Chunks)
	}
}

func TestKnowledge_NotConfigured(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{noKnowledge: true})
	if resp := f.do(t, http.MethodGet, "/knowledge/search?q=x", "", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("search status = %d, want 503", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPost, "/knowledge/reload", "", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("reload status = %d, want 503", resp.StatusCode)
	}
	if cfg := decode[ConfigResponse](t, f.do(t, http.MethodGet, "/config", "", "")); cfg.Knowledge != nil {
		t.Errorf("knowledge = %+v, want nil", cfg.Knowledge)
	}
}

func TestMetrics_RecordsRoutes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fixtureOptions{})
	f.do(t, http.MethodGet, "/agents/event-agent", "", "")
	f.do(t, http.MethodGet, "/agents/ghost", "", "")

	n, err := testutil.GatherAndCount(f.metrics.Registry(), "relaybot_http_requests_total")
	if err != nil {
		t.Fatal(err)
	}
	// One series per route and status class.
	if n != 2 {
		t.Errorf("series = %d, want 2", n)
	}

	resp := f.do(t, http.MethodGet, "/metrics", "", "")
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `route="/agents/{id}"`) {
		t.Errorf("metrics output missing route label:\n%s", body)
	}
}

func TestRun_ServesAndShutsDown(t *testing.T) {
	t.Parallel()

	s := New(Options{
		Config:   config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Sessions: memory.NewInMemorySessionStore(),
		Logger:   discardLogger(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	var addr net.Addr
	for range 100 {
		if addr = s.BoundAddr(); addr != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == nil {
		t.Fatal("server never bound")
	}

	resp, err := http.Get("http://" + addr.String() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_ListenError(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	s := New(Options{
		Config: config.ServerConfig{Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port},
		Logger: discardLogger(),
	})
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected listen error on a busy port")
	}
}
