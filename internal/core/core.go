// Package core owns the process lifecycle: components are started in order
// and stopped in reverse, while runners are raced by a supervisor.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const shutdownTimeout = 30 * time.Second

// App manages the lifecycle of a set of components.
type App struct {
	components []component
	logger     *slog.Logger
}

type component struct {
	name    string
	value   any
	started bool
}

// NewApp creates an empty App.
func NewApp(logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{logger: logger.With("component", "core")}
}

// Add registers a component. It may implement Starter, Stopper or Closer;
// values implementing none of them are ignored. Components without a
// Start method are considered running as soon as they are added, so Stop
// releases them even if Start is never called.
func (a *App) Add(name string, c any) {
	_, starter := c.(Starter)
	a.components = append(a.components, component{name: name, value: c, started: !starter})
}

// Len returns the number of registered components.
func (a *App) Len() int { return len(a.components) }

// Start starts all components that implement Starter, in order.
// If any Start fails, already-started components are stopped in reverse order.
func (a *App) Start(ctx context.Context) error {
	for i := range a.components {
		c := &a.components[i]
		s, ok := c.value.(Starter)
		if !ok || c.started {
			continue
		}
		a.logger.Info("starting component", "name", c.name)
		if err := s.Start(ctx); err != nil {
			a.logger.Error("component start failed", "name", c.name, "error", err)
			a.stopFrom(i - 1)
			return fmt.Errorf("starting %s: %w", c.name, err)
		}
		c.started = true
	}
	return nil
}

// Stop stops all started components in reverse order with a timeout.
func (a *App) Stop() {
	a.stopFrom(len(a.components) - 1)
}

func (a *App) stopFrom(fromIndex int) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := fromIndex; i >= 0; i-- {
		c := &a.components[i]
		if !c.started {
			continue
		}
		switch v := c.value.(type) {
		case Stopper:
			a.logger.Info("stopping component", "name", c.name)
			if err := v.Stop(ctx); err != nil {
				a.logger.Error("component stop error", "name", c.name, "error", err)
			}
		case Closer:
			if err := v.Close(); err != nil {
				a.logger.Error("component close error", "name", c.name, "error", err)
			}
		}
		c.started = false
	}
}

// Run starts the components, supervises runners until ctx is cancelled or
// one of them fails, then stops everything. The first runner error is
// returned.
func (a *App) Run(ctx context.Context, runners ...Runner) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer func() {
		a.Stop()
		a.logger.Info("shutdown complete")
	}()
	return Supervise(ctx, a.logger, runners...)
}
