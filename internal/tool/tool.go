// Package tool defines the tool interface and registry used by the agent.
// Tools are the only way the model acts outside of producing text.
package tool

import (
	"context"
	"encoding/json"
)

// Tool is the interface that all agent tools implement.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// Schema returns a JSON Schema describing the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args json.RawMessage) (Output, error)
}

// Output is the result of a tool execution.
type Output struct {
	// Content is the output text from the tool.
	Content string `json:"content"`

	// IsError indicates whether the output represents an error condition.
	IsError bool `json:"is_error,omitempty"`
}

// ErrorOutput is a convenience for tool-level failures reported to the model.
func ErrorOutput(msg string) Output {
	return Output{Content: msg, IsError: true}
}
