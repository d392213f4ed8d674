// Package tooltest provides test helpers and mocks for the tool package.
package tooltest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/flemzord/relaybot/internal/tool"
)

// MockTool is a configurable mock implementation of tool.Tool.
type MockTool struct {
	ToolName    string
	ExecuteFunc func(ctx context.Context, args json.RawMessage) (tool.Output, error)

	mu   sync.Mutex
	args []json.RawMessage
}

// Name implements tool.Tool.
func (m *MockTool) Name() string {
	if m.ToolName != "" {
		return m.ToolName
	}
	return "mock_tool"
}

// Description implements tool.Tool.
func (m *MockTool) Description() string { return "a mock tool" }

// Schema implements tool.Tool.
func (m *MockTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

// Execute implements tool.Tool.
func (m *MockTool) Execute(ctx context.Context, args json.RawMessage) (tool.Output, error) {
	m.mu.Lock()
	m.args = append(m.args, args)
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, args)
	}
	return tool.Output{Content: "ok"}, nil
}

// Calls returns the arguments of every Execute call.
func (m *MockTool) Calls() []json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]json.RawMessage(nil), m.args...)
}

// SimpleTool creates a tool that echoes its name.
func SimpleTool(name string) *MockTool {
	return &MockTool{
		ToolName: name,
		ExecuteFunc: func(context.Context, json.RawMessage) (tool.Output, error) {
			return tool.Output{Content: "executed: " + name}, nil
		},
	}
}

var _ tool.Tool = (*MockTool)(nil)
