// Package providertest provides test helpers for the provider package.
package providertest

import (
	"context"
	"errors"
	"sync"

	"github.com/flemzord/relaybot/internal/provider"
)

// MockProvider is a configurable test double for provider.Provider.
// Unset funcs panic on call. All methods are safe for concurrent use.
type MockProvider struct {
	CompleteFunc    func(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error)
	HealthCheckFunc func(ctx context.Context) error
	Model           string

	mu       sync.Mutex
	requests []provider.CompletionRequest
}

// Complete records the request and delegates to CompleteFunc.
func (m *MockProvider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.CompleteFunc(ctx, req)
}

// ModelName returns Model, or "mock" when unset.
func (m *MockProvider) ModelName() string {
	if m.Model == "" {
		return "mock"
	}
	return m.Model
}

// HealthCheck delegates to HealthCheckFunc.
func (m *MockProvider) HealthCheck(ctx context.Context) error {
	return m.HealthCheckFunc(ctx)
}

// Requests returns a copy of every request received so far.
func (m *MockProvider) Requests() []provider.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]provider.CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Reply returns a CompleteFunc that always answers with content.
func Reply(content string) func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
	return func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
		return provider.CompletionResponse{
			Content:      content,
			FinishReason: provider.FinishReasonStop,
			Usage:        provider.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		}, nil
	}
}

// Sequence returns a CompleteFunc that answers with responses in order and
// fails once they are exhausted.
func Sequence(responses ...provider.CompletionResponse) func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
	var (
		mu   sync.Mutex
		next int
	)
	return func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(responses) {
			return provider.CompletionResponse{}, errors.New("providertest: no more responses")
		}
		resp := responses[next]
		next++
		return resp, nil
	}
}

// Interface guards.
var (
	_ provider.Provider      = (*MockProvider)(nil)
	_ provider.HealthChecker = (*MockProvider)(nil)
)
