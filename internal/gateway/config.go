package gateway

import "time"

// Timeouts bounds request handling and shutdown.
type Timeouts struct {
	ReadHeader time.Duration
	Read       time.Duration
	// Write must cover a full agent run.
	Write    time.Duration
	Shutdown time.Duration
}

// defaults fills zero values with sensible defaults.
func (t *Timeouts) defaults() {
	if t.ReadHeader <= 0 {
		t.ReadHeader = 5 * time.Second
	}
	if t.Read <= 0 {
		t.Read = 30 * time.Second
	}
	if t.Write <= 0 {
		t.Write = 3 * time.Minute
	}
	if t.Shutdown <= 0 {
		t.Shutdown = 10 * time.Second
	}
}
