package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/flemzord/relaybot/internal/metrics"
)

// Handler processes a single update. A returned error is logged by the
// Poller and never affects the other updates of the batch.
type Handler interface {
	HandleUpdate(ctx context.Context, update Update) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, update Update) error

// HandleUpdate calls f(ctx, update).
func (f HandlerFunc) HandleUpdate(ctx context.Context, update Update) error {
	return f(ctx, update)
}

// Poller implements long-polling for receiving Telegram updates.
//
// Each cycle fetches one batch, runs its handlers concurrently (at most
// Concurrency at a time) and waits for all of them before moving the offset
// past the highest update id of the batch. Cycles never overlap.
type Poller struct {
	client   *Client
	handler  Handler
	logger   *slog.Logger
	metrics  *metrics.Metrics
	config   Config
	offset   atomic.Int64
	inFlight atomic.Int64
}

// NewPoller creates a new Poller.
func NewPoller(client *Client, handler Handler, logger *slog.Logger, config Config, m *metrics.Metrics) *Poller {
	config.defaults()
	return &Poller{
		client:  client,
		handler: handler,
		logger:  logger,
		metrics: m,
		config:  config,
	}
}

// Offset returns the next update id to request (last acknowledged + 1).
func (p *Poller) Offset() int64 {
	return p.offset.Load()
}

// InFlight returns the number of handlers currently running.
func (p *Poller) InFlight() int64 {
	return p.inFlight.Load()
}

// Run polls until ctx is cancelled. Polling errors are logged and retried
// after the poll interval; Run only returns on cancellation, with nil.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("telegram polling started",
		"interval", p.config.PollInterval,
		"timeout", p.config.PollTimeout,
		"concurrency", p.config.Concurrency,
	)

	var consecutiveErrors int
	for {
		if ctx.Err() != nil {
			break
		}

		if err := p.poll(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			consecutiveErrors++
			p.metrics.PollError()
			p.logger.Error("polling loop error",
				"error", err,
				"consecutive_errors", consecutiveErrors,
			)
		} else {
			consecutiveErrors = 0
		}

		if !sleep(ctx, p.config.PollInterval) {
			break
		}
	}

	p.logger.Info("telegram polling stopped", "offset", p.Offset())
	return nil
}

// poll runs one cycle: fetch, dispatch, acknowledge.
func (p *Poller) poll(ctx context.Context) error {
	updates, err := p.client.GetUpdates(ctx, GetUpdatesRequest{
		Offset:         p.Offset(),
		Timeout:        p.config.PollTimeout,
		AllowedUpdates: p.config.AllowedUpdates,
	})
	if err != nil {
		return err
	}

	if len(updates) > 0 {
		p.logger.Info("processing updates", "count", len(updates))
		if acked, ok := p.dispatch(ctx, updates); ok {
			p.advance(acked + 1)
		}
	}
	p.metrics.Batch(len(updates), p.Offset())
	return nil
}

// dispatch runs the handlers of a batch and waits for all of them. It
// returns the highest update id that was dispatched. Admission stops early
// only when ctx is cancelled.
func (p *Poller) dispatch(ctx context.Context, updates []Update) (int64, bool) {
	sem := semaphore.NewWeighted(int64(p.config.Concurrency))
	var g errgroup.Group

	var maxID int64
	dispatched := false

	for _, update := range updates {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		if !dispatched || update.UpdateID > maxID {
			maxID = update.UpdateID
		}
		dispatched = true

		g.Go(func() error {
			defer sem.Release(1)
			p.handle(ctx, update)
			return nil
		})
	}

	_ = g.Wait()
	return maxID, dispatched
}

// handle runs the handler for one update, converting panics and errors
// into log lines.
func (p *Poller) handle(ctx context.Context, update Update) {
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("telegram: handler panic: %v\n%s", r, debug.Stack())
			}
		}()
		return p.handler.HandleUpdate(ctx, update)
	}()
	if err == nil {
		return
	}

	p.metrics.Update(metrics.OutcomeFailed)
	attrs := []any{"update_id", update.UpdateID, "error", err}
	if msg := update.EffectiveMessage(); msg != nil {
		attrs = append(attrs, "chat_id", msg.Chat.ID)
	}
	p.logger.Error("update handling failed", attrs...)
}

// advance moves the offset forward; it never moves it back.
func (p *Poller) advance(next int64) {
	for {
		cur := p.offset.Load()
		if next <= cur || p.offset.CompareAndSwap(cur, next) {
			return
		}
	}
}

// sleep waits for d or until ctx is done; it reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
