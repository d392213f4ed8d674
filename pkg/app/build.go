// Package app wires relaybot together from configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/flemzord/relaybot/internal/agent"
	"github.com/flemzord/relaybot/internal/config"
	"github.com/flemzord/relaybot/internal/core"
	"github.com/flemzord/relaybot/internal/cron"
	"github.com/flemzord/relaybot/internal/gateway"
	"github.com/flemzord/relaybot/internal/knowledge"
	"github.com/flemzord/relaybot/internal/memory"
	"github.com/flemzord/relaybot/internal/metrics"
	"github.com/flemzord/relaybot/internal/provider"
	"github.com/flemzord/relaybot/internal/security"
	"github.com/flemzord/relaybot/internal/telemetry"
	"github.com/flemzord/relaybot/internal/tool"
	rediscache "github.com/flemzord/relaybot/modules/cache/redis"
	"github.com/flemzord/relaybot/modules/channel/telegram"
	"github.com/flemzord/relaybot/modules/embedder/openai"
	"github.com/flemzord/relaybot/modules/knowledge/s3"
	"github.com/flemzord/relaybot/modules/memory/postgres"
	memsqlite "github.com/flemzord/relaybot/modules/memory/sqlite"
	"github.com/flemzord/relaybot/modules/provider/openrouter"
	vecsqlite "github.com/flemzord/relaybot/modules/vectordb/sqlite"
)

// BuildOptions tune Build beyond what the configuration covers.
type BuildOptions struct {
	Version string

	// Ephemeral keeps sessions in memory instead of SQLite or Postgres.
	Ephemeral bool

	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer

	// Provider replaces the OpenRouter provider when set.
	Provider provider.Provider
	// Embedder replaces the OpenAI embedder when set.
	Embedder knowledge.Embedder
}

// Runtime is a fully wired application.
type Runtime struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	Sessions  memory.SessionStore
	Knowledge *knowledge.Knowledge // nil when no embedder is configured
	Agent     *agent.Agent

	// Telegram parts are nil when no token is configured.
	Client *telegram.Client
	Bot    *telegram.Bot
	Poller *telegram.Poller

	Server    *gateway.Server
	Scheduler *cron.Scheduler

	app *core.App
}

// Build assembles every component described by cfg. Close releases
// everything Build opened; Run does so on return.
func Build(ctx context.Context, cfg *config.Config, opts BuildOptions) (_ *Runtime, err error) {
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	logger, err := newLogger(cfg, opts.LogOutput)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
		app:     core.NewApp(logger),
	}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, opts.Version)
	if err != nil {
		return nil, err
	}
	rt.app.Add("telemetry", stopperFunc(shutdownTracing))

	if rt.Sessions, err = openSessions(ctx, cfg, opts.Ephemeral); err != nil {
		return nil, err
	}
	rt.app.Add("sessions", rt.Sessions)

	if cfg.KnowledgeEnabled() || opts.Embedder != nil {
		if rt.Knowledge, err = rt.buildKnowledge(ctx, opts); err != nil {
			return nil, err
		}
	}

	if cfg.Telegram.Token != "" {
		rt.Client = telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.APIURL)
	}

	llm := opts.Provider
	if llm == nil {
		llm, err = openrouter.New(openrouter.Config{
			APIKey:  cfg.Provider.APIKey,
			Model:   cfg.Provider.Model,
			BaseURL: cfg.Provider.BaseURL,
			Referer: cfg.Provider.Referer,
			Title:   cfg.Provider.Title,
		})
		if err != nil {
			return nil, err
		}
	}

	if rt.Agent, err = rt.buildAgent(llm); err != nil {
		return nil, err
	}

	if rt.Client != nil {
		tgCfg := telegramConfig(cfg.Telegram)
		if err := tgCfg.Validate(); err != nil {
			return nil, err
		}
		rt.Bot = telegram.NewBot(rt.Client, rt.Agent, rt.Sessions, logger, tgCfg, rt.Metrics)
		rt.Poller = telegram.NewPoller(rt.Client, rt.Bot, logger, tgCfg, rt.Metrics)
	}

	var offset func() int64
	if rt.Poller != nil {
		offset = rt.Poller.Offset
	}
	rt.Server = gateway.New(gateway.Options{
		Config:    cfg.Server,
		Timeouts:  gateway.Timeouts{Write: cfg.Agent.Timeout + 30*time.Second},
		Agents:    []*agent.Agent{rt.Agent},
		Sessions:  rt.Sessions,
		Knowledge: rt.Knowledge,
		Metrics:   rt.Metrics,
		Logger:    logger,
		Offset:    offset,
	})

	if rt.Scheduler, err = rt.buildScheduler(); err != nil {
		return nil, err
	}
	return rt, nil
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := security.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	redactor := security.NewRedactor()
	redactor.AddLiteral(cfg.Secrets()...)
	return security.NewLogger(w, level, cfg.Logging.Format, redactor), nil
}

func openSessions(ctx context.Context, cfg *config.Config, ephemeral bool) (memory.SessionStore, error) {
	switch {
	case ephemeral:
		return memory.NewInMemorySessionStore(), nil
	case cfg.Storage.DatabaseURL != "":
		store, err := postgres.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		store, err := memsqlite.Open(ctx, memsqlite.Config{Path: cfg.SessionsPath()})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func (rt *Runtime) buildKnowledge(ctx context.Context, opts BuildOptions) (*knowledge.Knowledge, error) {
	cfg := rt.Config

	embedder := opts.Embedder
	if embedder == nil {
		e, err := openai.New(openai.Config{
			APIKey:  cfg.Embedder.APIKey,
			BaseURL: cfg.Embedder.BaseURL,
			Model:   cfg.Embedder.Model,
		})
		if err != nil {
			return nil, err
		}
		embedder = e
	}

	var store knowledge.VectorStore
	if opts.Ephemeral {
		store = knowledge.NewMemoryStore()
	} else {
		s, err := vecsqlite.Open(ctx, vecsqlite.Config{Path: cfg.VectorsPath(), Table: cfg.Knowledge.Table})
		if err != nil {
			return nil, err
		}
		store = s
	}
	rt.app.Add("vectors", store)

	var cache knowledge.EmbeddingCache
	if cfg.Storage.RedisURL != "" {
		c, err := rediscache.Open(ctx, cfg.Storage.RedisURL)
		if err != nil {
			// Searches still work, only slower.
			rt.Logger.Warn("embedding cache unavailable", "error", err)
		} else {
			cache = c
			rt.app.Add("embedding-cache", c)
		}
	}

	var source knowledge.Source
	if s3.IsURL(cfg.Knowledge.Source) {
		src, err := s3.Open(ctx, cfg.Knowledge.Source)
		if err != nil {
			return nil, err
		}
		source = src
	} else if cfg.Knowledge.Source != "" {
		source = knowledge.NewDirSource(cfg.Knowledge.Source)
	}

	return knowledge.New(knowledge.Config{
		Name:        cfg.Knowledge.Name,
		Description: cfg.Knowledge.Description,
		MaxResults:  cfg.Knowledge.MaxResults,
		Embedder:    embedder,
		Store:       store,
		Source:      source,
		Metadata:    map[string]string{"source": cfg.Knowledge.Source},
		Cache:       cache,
		CacheTTL:    cfg.Embedder.CacheTTL,
		Logger:      rt.Logger,
	}), nil
}

func (rt *Runtime) buildAgent(llm provider.Provider) (*agent.Agent, error) {
	cfg := rt.Config
	tools := tool.NewRegistry()

	if rt.Client != nil && cfg.Telegram.DefaultChatID != "" {
		chatID, err := strconv.ParseInt(cfg.Telegram.DefaultChatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("app: invalid TELEGRAM_CHAT_ID %q: %w", cfg.Telegram.DefaultChatID, err)
		}
		sender := telegram.NewSender(rt.Client, rt.Logger, rt.Metrics, cfg.Telegram.DisablePreview)
		if err := tools.Register(telegram.NewSendMessageTool(sender, chatID)); err != nil {
			return nil, err
		}
	}

	return agent.New(agent.Config{
		ID:                    cfg.Agent.ID,
		Name:                  cfg.Agent.Name,
		Description:           cfg.Agent.Description,
		Instructions:          cfg.Agent.Instructions,
		Markdown:              cfg.Agent.Markdown,
		HistoryRuns:           cfg.Agent.HistoryRuns,
		Knowledge:             rt.Knowledge,
		AddKnowledgeToContext: rt.Knowledge != nil,
		SearchKnowledge:       rt.Knowledge != nil,
		Loop: agent.LoopConfig{
			MaxIterations: cfg.Agent.MaxIterations,
			TokenBudget:   cfg.Agent.TokenBudget,
			Timeout:       cfg.Agent.Timeout,
			LoopThreshold: cfg.Agent.LoopThreshold,
		},
	}, agent.Deps{
		Provider: llm,
		Tools:    tools,
		Sessions: rt.Sessions,
		Logger:   rt.Logger,
		Metrics:  rt.Metrics,
	})
}

func (rt *Runtime) buildScheduler() (*cron.Scheduler, error) {
	cfg := rt.Config
	s := cron.NewScheduler(rt.Logger.With("component", "cron"))

	if rt.Knowledge != nil && cfg.Schedule.KnowledgeRefresh != "" {
		if err := s.RegisterJob(&cron.KnowledgeRefreshJob{
			Knowledge:    rt.Knowledge,
			ScheduleExpr: cfg.Schedule.KnowledgeRefresh,
			Logger:       rt.Logger,
		}); err != nil {
			return nil, err
		}
	}
	if cfg.Schedule.SessionRetention > 0 {
		if err := s.RegisterJob(&cron.SessionPruneJob{
			Store:     rt.Sessions,
			Retention: cfg.Schedule.SessionRetention,
			Logger:    rt.Logger,
		}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func telegramConfig(t config.TelegramConfig) telegram.Config {
	return telegram.Config{
		Token:          t.Token,
		APIURL:         t.APIURL,
		PollInterval:   t.PollIntervalDuration(),
		PollTimeout:    t.PollTimeout,
		Concurrency:    t.Concurrency,
		AllowUsers:     t.AllowUsers,
		AllowChats:     t.AllowChats,
		RatePerMinute:  t.RatePerMinute,
		DisablePreview: t.DisablePreview,
	}
}

// EnsureKnowledge performs the one-time knowledge ingestion guarded by the
// marker file in the storage directory. Failures are logged, never fatal.
func (rt *Runtime) EnsureKnowledge(ctx context.Context) {
	if rt.Knowledge == nil {
		return
	}
	loaded, err := rt.Knowledge.EnsureLoaded(ctx, rt.Config.Storage.Dir)
	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		rt.Logger.Error("knowledge load failed", "error", err)
	case loaded:
		rt.Logger.Info("knowledge base initialized", "source", rt.Config.Knowledge.Source)
	}
}

// Close releases every opened resource in reverse order.
func (rt *Runtime) Close() {
	rt.app.Stop()
}

type stopperFunc func(context.Context) error

func (f stopperFunc) Stop(ctx context.Context) error { return f(ctx) }
