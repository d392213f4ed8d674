// Package security holds the secret redaction used by every log line the
// process emits. Telegram embeds the bot token in request URLs, so transport
// errors carry it unless they are scrubbed before reaching a handler.
package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// minLiteralLen guards against registering short values ("", "1", "dev")
// that would shred ordinary log text.
const minLiteralLen = 6

type rule struct {
	re   *regexp.Regexp
	repl string
}

// Redactor replaces secret values in strings with RedactPlaceholder.
// It supports regex rules for well-known credential formats and literal
// values registered at runtime from configuration.
// All methods are safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	rules    []rule
	literals []string
}

// NewRedactor creates a Redactor pre-loaded with DefaultPatterns and the
// connection-string password rule.
func NewRedactor() *Redactor {
	r := &Redactor{}
	for _, p := range DefaultPatterns() {
		r.rules = append(r.rules, rule{re: p, repl: RedactPlaceholder})
	}
	// Keep scheme, user and host readable; drop only the password.
	r.rules = append(r.rules, rule{
		re:   regexp.MustCompile(`((?:postgres|postgresql|redis|rediss)://[^:/@\s]*:)[^@\s]+@`),
		repl: "${1}" + RedactPlaceholder + "@",
	})
	return r
}

// AddPattern adds a compiled regex whose matches are fully redacted.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule{re: pattern, repl: RedactPlaceholder})
}

// AddLiteral registers secret values that should be redacted on sight.
// Values shorter than six characters are ignored.
func (r *Redactor) AddLiteral(secrets ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range secrets {
		if len(s) < minLiteralLen {
			continue
		}
		r.literals = append(r.literals, s)
	}
}

// Redact replaces all known secret patterns and literal values in s.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	rules := r.rules
	literals := r.literals
	r.mu.RUnlock()

	// Literals first: a configured token is more specific than any pattern.
	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, RedactPlaceholder)
		}
	}
	for _, ru := range rules {
		s = ru.re.ReplaceAllString(s, ru.repl)
	}
	return s
}

// DefaultPatterns returns compiled regex patterns for the credential formats
// this process handles.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// OpenRouter: sk-or-v1-<hex>
		regexp.MustCompile(`sk-or-v1-[a-zA-Z0-9]{20,}`),
		// OpenAI: sk-... and sk-proj-...
		regexp.MustCompile(`sk-(?:proj-)?[a-zA-Z0-9_]{20,}`),
		// Telegram bot token: <bot id>:<hash>
		regexp.MustCompile(`\d{6,12}:[A-Za-z0-9_-]{30,}`),
		// GitHub: ghp_, gho_, ghs_, github_pat_
		regexp.MustCompile(`(ghp_|gho_|ghs_|github_pat_)[a-zA-Z0-9_]{20,}`),
		// AWS Access Key ID
		regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
		// Slack bot/user token
		regexp.MustCompile(`xox[bp]-[0-9]+-[a-zA-Z0-9]+`),
	}
}
