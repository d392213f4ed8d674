package agent

import (
	"fmt"
	"time"
)

// Limits used when the matching LoopConfig field is zero.
const (
	DefaultMaxIterations = 10
	DefaultTimeout       = 5 * time.Minute
	DefaultLoopThreshold = 3
)

// LoopConfig bounds a single Run of the tool-calling loop.
type LoopConfig struct {
	// MaxIterations caps the model turns per Run.
	MaxIterations int

	// TokenBudget caps cumulative prompt + completion tokens per Run.
	// Unlike the other fields, zero disables the cap.
	TokenBudget int

	Timeout time.Duration

	// LoopThreshold is how many identical knowledge searches or sends
	// (same tool, same normalized arguments) end the Run as stuck.
	LoopThreshold int
}

// Validate rejects negative limits.
func (c LoopConfig) Validate() error {
	switch {
	case c.MaxIterations < 0:
		return fmt.Errorf("agent: max iterations must be >= 0, got %d", c.MaxIterations)
	case c.TokenBudget < 0:
		return fmt.Errorf("agent: token budget must be >= 0, got %d", c.TokenBudget)
	case c.Timeout < 0:
		return fmt.Errorf("agent: timeout must be >= 0, got %s", c.Timeout)
	case c.LoopThreshold < 0:
		return fmt.Errorf("agent: loop threshold must be >= 0, got %d", c.LoopThreshold)
	}
	return nil
}

func (c LoopConfig) withDefaults() LoopConfig {
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.LoopThreshold == 0 {
		c.LoopThreshold = DefaultLoopThreshold
	}
	return c
}
