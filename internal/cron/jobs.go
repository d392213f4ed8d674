package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// KnowledgeReloader re-ingests the knowledge source.
type KnowledgeReloader interface {
	Reload(ctx context.Context) (int, error)
}

// KnowledgeRefreshJob forces a knowledge reload on a schedule.
type KnowledgeRefreshJob struct {
	Knowledge    KnowledgeReloader
	ScheduleExpr string // empty = "@daily"
	Logger       *slog.Logger
}

var _ Job = (*KnowledgeRefreshJob)(nil)

// Name implements Job.
func (j *KnowledgeRefreshJob) Name() string { return "knowledge_refresh" }

// Schedule implements Job.
func (j *KnowledgeRefreshJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "@daily"
}

// Run reloads the knowledge base.
func (j *KnowledgeRefreshJob) Run(ctx context.Context) error {
	start := time.Now()
	n, err := j.Knowledge.Reload(ctx)
	if err != nil {
		return fmt.Errorf("cron: knowledge refresh: %w", err)
	}
	j.Logger.Info("cron: knowledge refreshed", "chunks", n, "duration", time.Since(start))
	return nil
}

// SessionPruner deletes runs created before a cutoff.
type SessionPruner interface {
	PruneBefore(ctx context.Context, t time.Time) (int64, error)
}

// SessionPruneJob deletes runs older than Retention.
type SessionPruneJob struct {
	Store        SessionPruner
	Retention    time.Duration
	ScheduleExpr string // empty = "@daily"
	Logger       *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

var _ Job = (*SessionPruneJob)(nil)

// Name implements Job.
func (j *SessionPruneJob) Name() string { return "session_prune" }

// Schedule implements Job.
func (j *SessionPruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "@daily"
}

// Run prunes runs older than Retention. A non-positive Retention is a no-op.
func (j *SessionPruneJob) Run(ctx context.Context) error {
	if j.Retention <= 0 {
		return nil
	}
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	pruned, err := j.Store.PruneBefore(ctx, now().Add(-j.Retention))
	if err != nil {
		return fmt.Errorf("cron: session prune: %w", err)
	}
	if pruned > 0 {
		j.Logger.Info("cron: pruned old runs", "count", pruned, "retention", j.Retention)
	}
	return nil
}
