// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/relaybot/internal/cron"
)

// MockJob is a configurable test double for cron.Job.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	mu       sync.Mutex
	calls    int
	lastCall time.Time
}

// Compile-time interface check.
var _ cron.Job = (*MockJob)(nil)

// Name implements cron.Job.
func (m *MockJob) Name() string { return m.NameVal }

// Schedule implements cron.Job.
func (m *MockJob) Schedule() string { return m.ScheduleVal }

// Run implements cron.Job and increments the call counter.
func (m *MockJob) Run(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.lastCall = time.Now()
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount returns the number of times Run was called.
func (m *MockJob) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastCall returns the time of the last Run call.
func (m *MockJob) LastCall() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCall
}

// MockPruner is a test double for cron.SessionPruner.
type MockPruner struct {
	PruneFunc  func(t time.Time) (int64, error)
	PruneCalls atomic.Int32
}

var _ cron.SessionPruner = (*MockPruner)(nil)

// PruneBefore implements cron.SessionPruner.
func (m *MockPruner) PruneBefore(_ context.Context, t time.Time) (int64, error) {
	m.PruneCalls.Add(1)
	if m.PruneFunc != nil {
		return m.PruneFunc(t)
	}
	return 0, nil
}

// MockReloader is a test double for cron.KnowledgeReloader.
type MockReloader struct {
	ReloadFunc  func(ctx context.Context) (int, error)
	ReloadCalls atomic.Int32
}

var _ cron.KnowledgeReloader = (*MockReloader)(nil)

// Reload implements cron.KnowledgeReloader.
func (m *MockReloader) Reload(ctx context.Context) (int, error) {
	m.ReloadCalls.Add(1)
	if m.ReloadFunc != nil {
		return m.ReloadFunc(ctx)
	}
	return 0, nil
}
