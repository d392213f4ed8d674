package agent

import (
	"context"
	"errors"

	"github.com/flemzord/relaybot/internal/provider"
)

// Sentinel errors for agent loop termination.
var (
	ErrTokenBudgetExceeded  = errors.New("agent: token budget exceeded")
	ErrMaxIterationsReached = errors.New("agent: max iterations reached")
	ErrLoopDetected         = errors.New("agent: loop detected")
)

// Loop implements the ReAct (Reason + Act) reasoning loop.
type Loop struct {
	provider provider.Provider
	executor *ToolExecutor
	config   LoopConfig
}

// NewLoop creates a Loop with the given provider, executor, and config.
func NewLoop(p provider.Provider, executor *ToolExecutor, cfg LoopConfig) *Loop {
	return &Loop{
		provider: p,
		executor: executor,
		config:   cfg.withDefaults(),
	}
}

func buildInitialMessages(req Request) []provider.LLMMessage {
	messages := make([]provider.LLMMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, provider.LLMMessage{
			Role:    provider.MessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	return append(messages, req.Messages...)
}

func appendToolResults(messages []provider.LLMMessage, records []ToolCallRecord) []provider.LLMMessage {
	for _, rec := range records {
		messages = append(messages, provider.LLMMessage{
			Role:    provider.MessageRoleTool,
			Content: rec.Output.Content,
			Name:    rec.Name,
			ToolID:  rec.ID,
			IsError: rec.Output.IsError,
		})
	}
	return messages
}

// Run executes the loop and returns the final response. The response is
// populated with partial results even when an error is returned.
//
// A context.WithTimeout is applied using l.config.Timeout. If the caller's
// context already carries a shorter deadline, the shorter one takes effect.
func (l *Loop) Run(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	detector := newLoopDetector(l.config.LoopThreshold)
	tracker := newTokenTracker(l.config.TokenBudget)
	messages := buildInitialMessages(req)

	var allToolCalls []ToolCallRecord
	stop := func(iterations int, reason StopReason, err error) (Response, error) {
		return Response{
			ToolCalls:  allToolCalls,
			TotalUsage: tracker.total(),
			Iterations: iterations,
			StopReason: reason,
		}, err
	}

	for i := 0; i < l.config.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return stop(i, StopReasonTimeout, err)
			}
			return stop(i, StopReasonError, err)
		}
		if tracker.exceeded() {
			return stop(i, StopReasonTokenBudget, ErrTokenBudgetExceeded)
		}

		resp, err := l.provider.Complete(ctx, provider.CompletionRequest{
			Messages: messages,
			Tools:    req.Tools,
		})
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return stop(i, StopReasonTimeout, err)
			}
			return stop(i, StopReasonError, err)
		}

		tracker.add(resp.Usage)
		if tracker.exceeded() {
			return stop(i+1, StopReasonTokenBudget, ErrTokenBudgetExceeded)
		}

		if len(resp.ToolCalls) == 0 {
			out, err := stop(i+1, StopReasonComplete, nil)
			out.Content = resp.Content
			return out, err
		}

		// Detect loops before appending the assistant turn so the history
		// never holds tool calls without their results.
		for _, tc := range resp.ToolCalls {
			if detector.record(tc.Name, tc.Arguments) {
				return stop(i+1, StopReasonLoopDetected, ErrLoopDetected)
			}
		}

		messages = append(messages, provider.LLMMessage{
			Role:      provider.MessageRoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		records := l.executor.Execute(ctx, resp.ToolCalls)
		allToolCalls = append(allToolCalls, records...)
		messages = appendToolResults(messages, records)
	}

	return stop(l.config.MaxIterations, StopReasonMaxIterations, ErrMaxIterationsReached)
}
