package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// ErrNoRunners is returned by Supervise when it has nothing to run.
var ErrNoRunners = errors.New("core: no runners to supervise")

// Supervise runs every runner concurrently. The first runner error cancels
// the others, waits for them and is returned. A runner returning nil, or
// returning because ctx was cancelled, does not stop its siblings.
func Supervise(ctx context.Context, logger *slog.Logger, runners ...Runner) error {
	if len(runners) == 0 {
		return ErrNoRunners
	}
	if logger == nil {
		logger = slog.Default()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		g.Go(func() error {
			logger.Info("runner started", "runner", r.Name)
			err := r.Run(gctx)
			if err != nil && !(gctx.Err() != nil && errors.Is(err, context.Canceled)) {
				logger.Error("runner failed", "runner", r.Name, "error", err)
				return fmt.Errorf("%s: %w", r.Name, err)
			}
			logger.Info("runner stopped", "runner", r.Name)
			return nil
		})
	}
	return g.Wait()
}
