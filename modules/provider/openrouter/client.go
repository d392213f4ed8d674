package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/flemzord/relaybot/internal/provider"
)

// apiRequest is the OpenAI-compatible chat completion request body.
type apiRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	Tools       []apiTool    `json:"tools,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
	TopP        *float64     `json:"top_p,omitempty"`
	Stop        []string     `json:"stop,omitempty"`
}

// apiMessage is an OpenAI-compatible chat message.
type apiMessage struct {
	Role       string        `json:"role"`
	Content    string        `json:"content"`
	Name       string        `json:"name,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
	ToolCalls  []apiToolCall `json:"tool_calls,omitempty"`
}

type apiTool struct {
	Type     string      `json:"type"`
	Function apiFunction `json:"function"`
}

type apiFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type apiToolCall struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	Function apiToolCallFn `json:"function"`
}

type apiToolCallFn struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// apiResponse is the non-streaming OpenAI-compatible response.
type apiResponse struct {
	Model   string      `json:"model"`
	Choices []apiChoice `json:"choices"`
	Usage   apiUsage    `json:"usage"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type apiChoice struct {
	Message      apiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Complete sends a completion request to OpenRouter. Rate limits and
// upstream outages are retried with exponential backoff up to
// Config.MaxRetries extra attempts.
func (o *OpenRouter) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	backoff := o.backoff

	for attempt := 0; ; attempt++ {
		resp, err := o.complete(ctx, req)
		if err == nil || !provider.IsRetryable(err) || attempt >= o.config.MaxRetries {
			return resp, err
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return provider.CompletionResponse{}, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

// complete performs a single request.
func (o *OpenRouter) complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	apiReq := o.buildRequest(req)

	resp, err := o.doRequest(ctx, apiReq)
	if err != nil {
		return provider.CompletionResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return provider.CompletionResponse{}, mapHTTPError(resp.StatusCode, resp.Body)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return provider.CompletionResponse{}, fmt.Errorf("openrouter: decoding response: %w", err)
	}

	// OpenRouter reports some upstream failures inside a 200 body.
	if apiResp.Error != nil && apiResp.Error.Message != "" {
		return provider.CompletionResponse{}, mapAPIError(apiResp.Error.Message)
	}

	return convertResponse(apiResp), nil
}

// buildRequest converts a provider.CompletionRequest into an apiRequest,
// filling MaxTokens and Temperature from config when the request leaves
// them unset.
func (o *OpenRouter) buildRequest(req provider.CompletionRequest) apiRequest {
	ar := apiRequest{
		Model:       o.config.resolvedModel(),
		Messages:    convertMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
	}
	if ar.MaxTokens == 0 {
		ar.MaxTokens = o.config.MaxTokens
	}
	if ar.Temperature == nil {
		ar.Temperature = o.config.Temperature
	}
	if len(req.Tools) > 0 {
		ar.Tools = convertTools(req.Tools)
	}
	return ar
}

// doRequest sends an API request and returns the raw HTTP response.
func (o *OpenRouter) doRequest(ctx context.Context, apiReq apiRequest) (*http.Response, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("openrouter: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openrouter: creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.config.APIKey)
	if o.config.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", o.config.Referer)
	}
	if o.config.Title != "" {
		httpReq.Header.Set("X-Title", o.config.Title)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Transport failures are treated as a transient outage.
		return nil, fmt.Errorf("openrouter: sending request: %w", provider.ErrProviderDown)
	}
	return resp, nil
}

func convertMessages(msgs []provider.LLMMessage) []apiMessage {
	out := make([]apiMessage, len(msgs))
	for i, m := range msgs {
		am := apiMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolID,
		}
		if len(m.ToolCalls) > 0 {
			am.ToolCalls = make([]apiToolCall, len(m.ToolCalls))
			for j, tc := range m.ToolCalls {
				am.ToolCalls[j] = apiToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: apiToolCallFn{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				}
			}
		}
		out[i] = am
	}
	return out
}

func convertTools(tools []provider.ToolDefinition) []apiTool {
	out := make([]apiTool, len(tools))
	for i, t := range tools {
		out[i] = apiTool{
			Type: "function",
			Function: apiFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

func convertResponse(resp apiResponse) provider.CompletionResponse {
	cr := provider.CompletionResponse{
		Usage: provider.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	if len(resp.Choices) == 0 {
		return cr
	}

	choice := resp.Choices[0]
	cr.Content = choice.Message.Content
	cr.FinishReason = mapFinishReason(choice.FinishReason)

	if len(choice.Message.ToolCalls) > 0 {
		cr.ToolCalls = make([]provider.ToolCall, len(choice.Message.ToolCalls))
		for i, tc := range choice.Message.ToolCalls {
			args := tc.Function.Arguments
			if args == "" {
				args = "{}"
			}
			cr.ToolCalls[i] = provider.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(args),
			}
		}
	}

	return cr
}

func mapFinishReason(reason string) provider.FinishReason {
	switch reason {
	case "length":
		return provider.FinishReasonLength
	case "tool_calls":
		return provider.FinishReasonToolUse
	case "content_filter":
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReasonStop
	}
}
