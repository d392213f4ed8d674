package telegram

import (
	"fmt"
	"net/url"
	"regexp"
	"time"
)

// tokenPattern matches the Telegram bot token format: <digits>:<alphanum+dash>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// MaxMessageLength is the Bot API limit for a single message, in characters.
const MaxMessageLength = 4096

// Config holds the Telegram bot configuration.
type Config struct {
	Token          string
	APIURL         string
	PollInterval   time.Duration
	PollTimeout    int
	Concurrency    int
	AllowedUpdates []string
	AllowUsers     []string
	AllowChats     []string
	// RatePerMinute caps agent runs per chat; zero disables the limit.
	RatePerMinute int
	// DisablePreview turns off link previews in replies.
	DisablePreview bool
}

// defaults applies default values to unset fields.
func (c *Config) defaults() {
	if c.APIURL == "" {
		c.APIURL = "https://api.telegram.org"
	}
	if c.PollInterval < 0 {
		c.PollInterval = 0
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.AllowedUpdates == nil {
		c.AllowedUpdates = []string{"message", "edited_message"}
	}
}

// Validate checks configuration field constraints.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("telegram: token is required")
	}
	if !tokenPattern.MatchString(c.Token) {
		return fmt.Errorf("telegram: token format invalid (expected <bot_id>:<hash>)")
	}

	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("telegram: api_url must be a valid http/https URL, got %q", c.APIURL)
	}

	if c.PollTimeout < 0 || c.PollTimeout > 50 {
		return fmt.Errorf("telegram: poll timeout must be 0-50, got %d", c.PollTimeout)
	}
	if c.RatePerMinute < 0 {
		return fmt.Errorf("telegram: rate per minute must be >= 0, got %d", c.RatePerMinute)
	}
	return nil
}
