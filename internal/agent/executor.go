package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/relaybot/internal/metrics"
	"github.com/flemzord/relaybot/internal/provider"
	"github.com/flemzord/relaybot/internal/tool"
)

// ToolExecutor handles parallel tool execution with panic recovery.
type ToolExecutor struct {
	registry *tool.Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewToolExecutor creates a ToolExecutor over reg. logger and m may be nil.
func NewToolExecutor(reg *tool.Registry, logger *slog.Logger, m *metrics.Metrics) *ToolExecutor {
	if reg == nil {
		reg = tool.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolExecutor{registry: reg, logger: logger, metrics: m}
}

// Definitions returns the tool definitions advertised to the model.
func (e *ToolExecutor) Definitions() []provider.ToolDefinition {
	return e.registry.Definitions()
}

// Execute runs all tool calls in parallel and returns results in input order.
// Panics in individual tools are recovered and reported as error outputs.
func (e *ToolExecutor) Execute(ctx context.Context, calls []provider.ToolCall) []ToolCallRecord {
	results := make([]ToolCallRecord, len(calls))
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Go(func() {
			results[i] = e.executeSingle(ctx, call)
		})
	}

	wg.Wait()
	return results
}

func (e *ToolExecutor) executeSingle(ctx context.Context, tc provider.ToolCall) (record ToolCallRecord) {
	record.ID = tc.ID
	record.Name = tc.Name
	record.Arguments = tc.Arguments

	start := time.Now()

	defer func() {
		record.Duration = time.Since(start)
		if r := recover(); r != nil {
			record.Panicked = true
			record.Output = tool.ErrorOutput(fmt.Sprintf("panic: %v", r))
			e.logger.Error("tool panicked", "tool", tc.Name, "panic", r)
		}
		e.metrics.ToolCall(tc.Name, record.Output.IsError)
	}()

	out, err := e.registry.Execute(ctx, tc.Name, tc.Arguments)
	if err != nil {
		e.logger.Warn("tool failed", "tool", tc.Name, "error", err)
		record.Output = tool.ErrorOutput(err.Error())
		return record
	}

	record.Output = out
	return record
}
