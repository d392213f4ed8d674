package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// applyEnv overlays environment variables on cfg. Malformed numeric or
// duration values are reported together.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.str("RUN_MODE", &cfg.Mode)

	e.str("TELEGRAM_TOKEN", &cfg.Telegram.Token)
	e.str("TELEGRAM_API_URL", &cfg.Telegram.APIURL)
	e.float("TELEGRAM_POLL_INTERVAL", &cfg.Telegram.PollInterval)
	e.int("TELEGRAM_POLL_TIMEOUT", &cfg.Telegram.PollTimeout)
	e.int("TELEGRAM_CONCURRENCY", &cfg.Telegram.Concurrency)
	e.str("TELEGRAM_CHAT_ID", &cfg.Telegram.DefaultChatID)
	e.list("TELEGRAM_ALLOW_USERS", &cfg.Telegram.AllowUsers)
	e.list("TELEGRAM_ALLOW_CHATS", &cfg.Telegram.AllowChats)
	e.int("TELEGRAM_RATE_PER_MINUTE", &cfg.Telegram.RatePerMinute)
	e.bool("TELEGRAM_DISABLE_PREVIEW", &cfg.Telegram.DisablePreview)

	// LOG_LEVEL wins over the bot-specific variable.
	e.str("TELEGRAM_LOG_LEVEL", &cfg.Logging.Level)
	e.str("LOG_LEVEL", &cfg.Logging.Level)
	e.str("LOG_FORMAT", &cfg.Logging.Format)

	e.str("PORTFOLIO_AGENT_HOST", &cfg.Server.Host)
	// PORT (set by most hosting platforms) wins over PORTFOLIO_AGENT_PORT.
	if !e.int("PORT", &cfg.Server.Port) {
		e.int("PORTFOLIO_AGENT_PORT", &cfg.Server.Port)
	}
	e.str("OS_SECURITY_KEY", &cfg.Server.SecurityKey)
	e.str("PORTFOLIO_AGENT_OS_ID", &cfg.Server.OSID)

	e.str("PORTFOLIO_AGENT_ID", &cfg.Agent.ID)
	e.str("PORTFOLIO_AGENT_INSTRUCTIONS", &cfg.Agent.Instructions)
	e.int("PORTFOLIO_HISTORY_RUNS", &cfg.Agent.HistoryRuns)
	e.int("PORTFOLIO_AGENT_MAX_ITERATIONS", &cfg.Agent.MaxIterations)
	e.int("PORTFOLIO_AGENT_TOKEN_BUDGET", &cfg.Agent.TokenBudget)
	e.duration("PORTFOLIO_AGENT_TIMEOUT", &cfg.Agent.Timeout)

	e.str("OPENROUTER_API_KEY", &cfg.Provider.APIKey)
	e.str("OPENROUTER_BASE_URL", &cfg.Provider.BaseURL)
	e.str("PORTFOLIO_AGENT_MODEL", &cfg.Provider.Model)

	e.str("OPENAI_API_KEY", &cfg.Embedder.APIKey)
	e.str("OPENAI_BASE_URL", &cfg.Embedder.BaseURL)
	e.str("PORTFOLIO_EMBED_MODEL", &cfg.Embedder.Model)
	e.duration("PORTFOLIO_EMBED_CACHE_TTL", &cfg.Embedder.CacheTTL)

	e.str("PORTFOLIO_STORAGE_DIR", &cfg.Storage.Dir)
	e.str("PORTFOLIO_DB_URL", &cfg.Storage.DatabaseURL)
	e.str("PORTFOLIO_VECTOR_DB", &cfg.Storage.VectorPath)
	e.str("PORTFOLIO_REDIS_URL", &cfg.Storage.RedisURL)

	e.str("PORTFOLIO_TABLE_NAME", &cfg.Knowledge.Table)
	e.str("PORTFOLIO_KNOWLEDGE_NAME", &cfg.Knowledge.Name)
	e.str("PORTFOLIO_KNOWLEDGE_DESC", &cfg.Knowledge.Description)
	e.int("PORTFOLIO_KNOWLEDGE_MAX_RESULTS", &cfg.Knowledge.MaxResults)
	e.str("PORTFOLIO_KNOWLEDGE_DIR", &cfg.Knowledge.Source)

	e.str("PORTFOLIO_KNOWLEDGE_REFRESH", &cfg.Schedule.KnowledgeRefresh)
	e.duration("PORTFOLIO_SESSION_RETENTION", &cfg.Schedule.SessionRetention)

	e.str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.Endpoint)
	e.str("OTEL_SERVICE_NAME", &cfg.Telemetry.ServiceName)

	return errors.Join(e.errs...)
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

// get returns the trimmed value when the variable is set and non-empty.
func (e *envReader) get(name string) (string, bool) {
	v, ok := e.lookup(name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) int(name string, dst *int) bool {
	v, ok := e.get(name)
	if !ok {
		return false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: invalid integer %q", name, v))
		return false
	}
	*dst = n
	return true
}

func (e *envReader) float(name string, dst *float64) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: invalid number %q", name, v))
		return
	}
	*dst = f
}

func (e *envReader) bool(name string, dst *bool) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: invalid boolean %q", name, v))
		return
	}
	*dst = b
}

func (e *envReader) duration(name string, dst *time.Duration) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: invalid duration %q", name, v))
		return
	}
	*dst = d
}

func (e *envReader) list(name string, dst *[]string) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}
