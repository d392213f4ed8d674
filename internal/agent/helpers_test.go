package agent

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/flemzord/relaybot/internal/provider"
	"github.com/flemzord/relaybot/internal/provider/providertest"
	"github.com/flemzord/relaybot/internal/tool"
	"github.com/flemzord/relaybot/internal/tool/tooltest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scripted(responses ...provider.CompletionResponse) *providertest.MockProvider {
	return &providertest.MockProvider{CompleteFunc: providertest.Sequence(responses...), Model: "mock-model"}
}

func toolUse(calls ...provider.ToolCall) provider.CompletionResponse {
	return provider.CompletionResponse{ToolCalls: calls, FinishReason: provider.FinishReasonToolUse}
}

func text(content string) provider.CompletionResponse {
	return provider.CompletionResponse{Content: content, FinishReason: provider.FinishReasonStop}
}

func call(id, name, args string) provider.ToolCall {
	return provider.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func tc(id, name string) provider.ToolCall {
	return call(id, name, `{}`)
}

func userMsg(content string) provider.LLMMessage {
	return provider.LLMMessage{Role: provider.MessageRoleUser, Content: content}
}

func registry(t *testing.T, tools ...tool.Tool) *tool.Registry {
	t.Helper()
	reg := tool.NewRegistry()
	for _, tl := range tools {
		if err := reg.Register(tl); err != nil {
			t.Fatalf("Register(%s): %v", tl.Name(), err)
		}
	}
	return reg
}

func executorFor(t *testing.T, tools ...tool.Tool) *ToolExecutor {
	t.Helper()
	return NewToolExecutor(registry(t, tools...), discardLogger(), nil)
}

func outputTool(name string, out tool.Output, err error) *tooltest.MockTool {
	return &tooltest.MockTool{
		ToolName: name,
		ExecuteFunc: func(context.Context, json.RawMessage) (tool.Output, error) {
			return out, err
		},
	}
}

func panicTool(name, msg string) *tooltest.MockTool {
	return &tooltest.MockTool{
		ToolName: name,
		ExecuteFunc: func(context.Context, json.RawMessage) (tool.Output, error) {
			panic(msg)
		},
	}
}

func slowTool(name string, d time.Duration) *tooltest.MockTool {
	return &tooltest.MockTool{
		ToolName: name,
		ExecuteFunc: func(ctx context.Context, _ json.RawMessage) (tool.Output, error) {
			select {
			case <-time.After(d):
				return tool.Output{Content: name + " done"}, nil
			case <-ctx.Done():
				return tool.Output{}, ctx.Err()
			}
		},
	}
}
