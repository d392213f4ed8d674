// Package openrouter implements a provider.Provider backed by the OpenRouter
// API, which exposes many hosted models behind an OpenAI-compatible endpoint.
package openrouter

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/flemzord/relaybot/internal/provider"
)

// Interface guards.
var (
	_ provider.Provider      = (*OpenRouter)(nil)
	_ provider.HealthChecker = (*OpenRouter)(nil)
)

// OpenRouter is a provider.Provider that communicates with the OpenRouter API.
type OpenRouter struct {
	config  Config
	client  *http.Client
	backoff time.Duration
}

// New validates cfg and returns a ready provider.
//
// The client uses transport-level timeouts (dial + TLS + response header)
// instead of http.Client.Timeout; the body read is governed by the caller's
// context.
func New(cfg Config) (*OpenRouter, error) {
	cfg.defaults()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &OpenRouter{
		config: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: cfg.Timeout}).DialContext,
				TLSHandshakeTimeout:   cfg.Timeout,
				ResponseHeaderTimeout: cfg.Timeout,
			},
		},
		backoff: time.Second,
	}, nil
}

// ModelName returns the resolved model identifier.
func (o *OpenRouter) ModelName() string {
	return o.config.resolvedModel()
}

// HealthCheck checks the provider by sending a minimal completion
// request (max_tokens=1).
func (o *OpenRouter) HealthCheck(ctx context.Context) error {
	_, err := o.complete(ctx, provider.CompletionRequest{
		Messages: []provider.LLMMessage{
			{Role: provider.MessageRoleUser, Content: "ping"},
		},
		MaxTokens: 1,
	})
	return err
}
