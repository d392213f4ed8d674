package openrouter

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const (
	defaultBaseURL    = "https://openrouter.ai/api/v1"
	defaultTimeout    = 120 * time.Second
	defaultMaxRetries = 2
)

// Config holds the OpenRouter provider configuration.
type Config struct {
	// APIKey is the OpenRouter API key (required). Typically sk-or-v1-...
	APIKey string `yaml:"api_key"`

	// Model is the model identifier (required). "auto" is mapped to "openrouter/auto".
	Model string `yaml:"model"`

	// BaseURL is the OpenRouter API base URL.
	// Default: "https://openrouter.ai/api/v1"
	BaseURL string `yaml:"base_url"`

	// Referer is sent as the HTTP-Referer header (optional).
	Referer string `yaml:"referer"`

	// Title is sent as the X-Title header (optional).
	Title string `yaml:"title"`

	// Timeout bounds dial, TLS handshake and response headers.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is how many extra attempts are made on rate limits and
	// upstream 5xx responses.
	MaxRetries int `yaml:"max_retries"`

	// MaxTokens caps the completion length. Zero leaves it to the model.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is forwarded when set.
	Temperature *float64 `yaml:"temperature"`
}

// defaults fills in zero-value fields with sensible defaults.
func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
}

// validate checks that required configuration fields are set.
func (c *Config) validate() error {
	if c.APIKey == "" {
		return errors.New("openrouter: api_key is required")
	}
	if c.Model == "" {
		return errors.New("openrouter: model is required")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("openrouter: invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("openrouter: base_url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("openrouter: base_url must include a host")
	}
	return nil
}

// resolvedModel returns the canonical model name.
// "auto" is mapped to "openrouter/auto".
func (c *Config) resolvedModel() string {
	if c.Model == "auto" {
		return "openrouter/auto"
	}
	return c.Model
}
