// Package provider defines the Provider interface used by the agent to talk
// to chat-completion backends, plus the shared request/response types.
package provider

import "context"

// Provider is the interface for communicating with an LLM.
// Concrete implementations live under modules/provider.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}

// HealthChecker is an optional interface for providers that can report their health
// without running a real conversation.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
