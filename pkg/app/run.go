package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/flemzord/relaybot/internal/config"
	"github.com/flemzord/relaybot/internal/core"
)

// ErrUnsupportedMode is returned for a RUN_MODE other than web, bot or hybrid.
var ErrUnsupportedMode = errors.New("unsupported RUN_MODE")

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is consulted; the file is optional.
	ConfigPath string

	// Mode overrides RUN_MODE when set.
	Mode string

	// Version is injected at build time via ldflags.
	Version string

	Ephemeral bool
	LogOutput io.Writer
}

// Run loads configuration, builds the runtime and supervises the runners
// selected by the mode until SIGINT or SIGTERM, or until a runner fails.
func Run(params RunParams) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, params)
}

// RunContext is Run without signal handling; it returns once ctx is done.
func RunContext(ctx context.Context, params RunParams) error {
	cfg, err := LoadConfig(params.ConfigPath, params.Mode)
	if err != nil {
		return err
	}
	rt, err := Build(ctx, cfg, BuildOptions{
		Version:   params.Version,
		Ephemeral: params.Ephemeral,
		LogOutput: params.LogOutput,
	})
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// Runners returns the supervised tasks for the configured mode.
func (rt *Runtime) Runners() ([]core.Runner, error) {
	web := core.Runner{Name: "web", Run: rt.Server.Run}

	var runners []core.Runner
	switch mode := rt.Config.NormalizedMode(); mode {
	case config.ModeWeb:
		runners = append(runners, web)
	case config.ModeBot, config.ModeHybrid:
		if rt.Poller == nil {
			return nil, config.ErrMissingToken
		}
		runners = append(runners, core.Runner{Name: "bot", Run: rt.Poller.Run})
		if mode == config.ModeHybrid {
			runners = append(runners, web)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, rt.Config.Mode)
	}

	if rt.Scheduler.Len() > 0 {
		runners = append(runners, core.Runner{Name: "cron", Run: rt.Scheduler.Run})
	}
	return runners, nil
}

// Run ingests the knowledge base on first start, then supervises the
// runners until ctx is cancelled or one of them fails. Resources are
// released before Run returns.
func (rt *Runtime) Run(ctx context.Context) error {
	runners, err := rt.Runners()
	if err != nil {
		rt.Close()
		return err
	}

	rt.Logger.Info("starting relaybot",
		"mode", rt.Config.NormalizedMode(),
		"agent", rt.Agent.ID(),
		"knowledge", rt.Knowledge != nil,
	)
	rt.EnsureKnowledge(ctx)
	return rt.app.Run(ctx, runners...)
}
