// Package gateway serves the agent over HTTP: health and metrics endpoints,
// agent runs, session history and knowledge search.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/flemzord/relaybot/internal/agent"
	"github.com/flemzord/relaybot/internal/config"
	"github.com/flemzord/relaybot/internal/knowledge"
	"github.com/flemzord/relaybot/internal/memory"
	"github.com/flemzord/relaybot/internal/metrics"
)

// Options wires the server to the rest of the application.
type Options struct {
	Config   config.ServerConfig
	Timeouts Timeouts
	Agents   []*agent.Agent
	Sessions memory.SessionStore
	// Knowledge is optional; knowledge routes answer 503 without it.
	Knowledge *knowledge.Knowledge
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	// Offset reports the Telegram poll watermark on /health when set.
	Offset func() int64
}

// Server is the HTTP app.
type Server struct {
	opts      Options
	logger    *slog.Logger
	agents    map[string]*agent.Agent
	order     []string
	startedAt time.Time

	mu   sync.Mutex
	addr net.Addr
}

// New creates a Server. Agents are served in the given order.
func New(opts Options) *Server {
	opts.Timeouts.defaults()
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		opts:      opts,
		logger:    opts.Logger.With("component", "gateway"),
		agents:    make(map[string]*agent.Agent, len(opts.Agents)),
		startedAt: time.Now(),
	}
	for _, a := range opts.Agents {
		if _, dup := s.agents[a.ID()]; dup {
			continue
		}
		s.agents[a.ID()] = a
		s.order = append(s.order, a.ID())
	}
	return s
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.opts.Config.Host, strconv.Itoa(s.opts.Config.Port))
}

// BoundAddr returns the address the listener is bound to, or nil before Run
// has started listening.
func (s *Server) BoundAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run listens and serves until ctx is cancelled, then shuts down
// gracefully. Listen and serve failures are returned.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("gateway: listen %s: %w", s.Addr(), err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.opts.Timeouts.ReadHeader,
		ReadTimeout:       s.opts.Timeouts.Read,
		WriteTimeout:      s.opts.Timeouts.Write,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("gateway: serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("gateway shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timeouts.Shutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway: shutdown: %w", err)
	}
	<-errCh
	return nil
}
