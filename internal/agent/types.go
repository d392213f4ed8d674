// Package agent answers user messages by running a ReAct (Reason + Act)
// loop over a chat-completion provider, grounded in session history and
// an optional knowledge base.
package agent

import (
	"encoding/json"
	"time"

	"github.com/flemzord/relaybot/internal/provider"
	"github.com/flemzord/relaybot/internal/tool"
)

// StopReason describes why the agent loop terminated.
type StopReason string

// StopReason constants for agent loop termination.
const (
	StopReasonComplete      StopReason = "complete"
	StopReasonMaxIterations StopReason = "max_iterations"
	StopReasonLoopDetected  StopReason = "loop_detected"
	StopReasonTokenBudget   StopReason = "token_budget"
	StopReasonTimeout       StopReason = "timeout"
	StopReasonError         StopReason = "error"
)

// ToolCallRecord tracks one tool invocation during the agent loop.
type ToolCallRecord struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Output    tool.Output     `json:"output"`
	Duration  time.Duration   `json:"duration"`
	Panicked  bool            `json:"panicked,omitempty"`
}

// Request is the input to the agent loop.
type Request struct {
	Messages     []provider.LLMMessage
	SystemPrompt string
	Tools        []provider.ToolDefinition
}

// Response is the output of the agent loop.
type Response struct {
	Content    string
	ToolCalls  []ToolCallRecord
	TotalUsage provider.TokenUsage
	Iterations int
	StopReason StopReason
}

// RunInput is one user turn addressed to an Agent.
type RunInput struct {
	// SessionID groups runs into a conversation. A new id is generated
	// when empty.
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Message   string `json:"message"`
}

// RunOutput is the persisted result of Agent.Run.
type RunOutput struct {
	RunID     string              `json:"run_id"`
	SessionID string              `json:"session_id"`
	AgentID   string              `json:"agent_id"`
	Content   string              `json:"content"`
	Model     string              `json:"model"`
	Usage     provider.TokenUsage `json:"usage"`
	ToolCalls []ToolCallRecord    `json:"tool_calls,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}
