package core

import "context"

// Starter is implemented by components that need to start background work
// (goroutines, listeners, connections) before the runners begin.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is implemented by components that need to clean up resources.
// Called during shutdown in reverse order of Start().
type Stopper interface {
	Stop(ctx context.Context) error
}

// Closer is implemented by stores and clients released on shutdown.
type Closer interface {
	Close() error
}

// Runner is a long-running task owned by the supervisor. Run blocks until
// ctx is cancelled or the task fails.
type Runner struct {
	Name string
	Run  func(ctx context.Context) error
}
