package openrouter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/flemzord/relaybot/internal/provider"
)

// apiError represents an error response from the OpenRouter API.
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    any    `json:"code"` // string or int depending on upstream
	} `json:"error"`
}

// mapHTTPError converts an HTTP status code and response body into the
// appropriate provider sentinel error.
func mapHTTPError(statusCode int, body io.Reader) error {
	var ae apiError

	data, readErr := io.ReadAll(io.LimitReader(body, 4096))
	if readErr == nil && len(data) > 0 {
		_ = json.Unmarshal(data, &ae)
	}

	msg := ae.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", statusCode)
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("openrouter: %s: %w", msg, provider.ErrRateLimit)
	case statusCode == http.StatusBadRequest && isContextLengthError(msg):
		return fmt.Errorf("openrouter: %s: %w", msg, provider.ErrContextLength)
	case statusCode >= 500:
		return fmt.Errorf("openrouter: %s: %w", msg, provider.ErrProviderDown)
	default:
		return fmt.Errorf("openrouter: %s", msg)
	}
}

// mapAPIError converts an error embedded in a 200 response body.
func mapAPIError(msg string) error {
	switch {
	case strings.Contains(strings.ToLower(msg), "rate limit"):
		return fmt.Errorf("openrouter: %s: %w", msg, provider.ErrRateLimit)
	case isContextLengthError(msg):
		return fmt.Errorf("openrouter: %s: %w", msg, provider.ErrContextLength)
	default:
		return fmt.Errorf("openrouter: %s: %w", msg, provider.ErrProviderDown)
	}
}

func isContextLengthError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "context length") ||
		strings.Contains(lower, "context_length") ||
		strings.Contains(lower, "maximum context") ||
		strings.Contains(lower, "token limit")
}
