package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder collects lifecycle events in order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

type fakeComponent struct {
	name     string
	rec      *recorder
	startErr error
}

func (c *fakeComponent) Start(context.Context) error {
	c.rec.add("start:" + c.name)
	return c.startErr
}

func (c *fakeComponent) Stop(context.Context) error {
	c.rec.add("stop:" + c.name)
	return nil
}

type fakeCloser struct {
	name string
	rec  *recorder
}

func (c *fakeCloser) Close() error {
	c.rec.add("close:" + c.name)
	return nil
}

func TestApp_StartStopOrder(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	app := NewApp(discardLogger())
	app.Add("store", &fakeCloser{name: "store", rec: rec})
	app.Add("a", &fakeComponent{name: "a", rec: rec})
	app.Add("ignored", 42)
	app.Add("b", &fakeComponent{name: "b", rec: rec})

	if err := app.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	app.Stop()

	want := []string{"start:a", "start:b", "stop:b", "stop:a", "close:store"}
	if got := rec.list(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}

	// A second Stop is a no-op.
	app.Stop()
	if got := rec.list(); len(got) != len(want) {
		t.Errorf("second Stop produced events: %v", got[len(want):])
	}
}

func TestApp_StopWithoutStartClosesResources(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	app := NewApp(discardLogger())
	app.Add("store", &fakeCloser{name: "store", rec: rec})
	app.Add("a", &fakeComponent{name: "a", rec: rec})
	app.Stop()

	want := []string{"close:store"}
	if got := rec.list(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestApp_StartFailureRollsBack(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	app := NewApp(discardLogger())
	app.Add("a", &fakeComponent{name: "a", rec: rec})
	app.Add("b", &fakeComponent{name: "b", rec: rec, startErr: errors.New("boom")})
	app.Add("c", &fakeComponent{name: "c", rec: rec})

	if err := app.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	want := []string{"start:a", "start:b", "stop:a"}
	if got := rec.list(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestApp_RunStopsComponentsAfterRunners(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	app := NewApp(discardLogger())
	app.Add("a", &fakeComponent{name: "a", rec: rec})

	boom := errors.New("listen failed")
	err := app.Run(context.Background(), Runner{Name: "web", Run: func(context.Context) error {
		rec.add("run:web")
		return boom
	}})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	want := []string{"start:a", "run:web", "stop:a"}
	if got := rec.list(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestSupervise_FirstErrorCancelsSiblings(t *testing.T) {
	t.Parallel()

	boom := errors.New("bind: address already in use")
	siblingCancelled := make(chan struct{})

	err := Supervise(context.Background(), discardLogger(),
		Runner{Name: "web", Run: func(context.Context) error { return boom }},
		Runner{Name: "bot", Run: func(ctx context.Context) error {
			<-ctx.Done()
			close(siblingCancelled)
			return ctx.Err()
		}},
	)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	select {
	case <-siblingCancelled:
	default:
		t.Fatal("sibling was not cancelled before Supervise returned")
	}
}

func TestSupervise_NilReturnKeepsSiblings(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quickDone := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		result <- Supervise(ctx, discardLogger(),
			Runner{Name: "quick", Run: func(context.Context) error {
				close(quickDone)
				return nil
			}},
			Runner{Name: "long", Run: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			}},
		)
	}()

	<-quickDone
	select {
	case err := <-result:
		t.Fatalf("Supervise returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("err = %v, want nil on cancellation", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Supervise did not return after cancel")
	}
}

func TestSupervise_NoRunners(t *testing.T) {
	t.Parallel()

	if err := Supervise(context.Background(), nil); !errors.Is(err, ErrNoRunners) {
		t.Fatalf("err = %v, want ErrNoRunners", err)
	}
}
