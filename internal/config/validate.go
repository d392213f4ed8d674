package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"

	"github.com/robfig/cron/v3"
)

// ErrMissingToken is returned when a bot-running mode has no TELEGRAM_TOKEN.
var ErrMissingToken = errors.New("config: TELEGRAM_TOKEN is not set")

// tokenPattern is the shape of a Telegram bot token: "<bot id>:<secret>".
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Validate checks the structural validity of a Config and reports every
// problem at once.
func Validate(cfg *Config) error {
	var errs []error

	mode := cfg.NormalizedMode()
	switch mode {
	case ModeWeb, ModeBot, ModeHybrid:
	default:
		errs = append(errs, fmt.Errorf("config: unsupported RUN_MODE %q (want web, bot or hybrid)", cfg.Mode))
	}

	if mode == ModeBot || mode == ModeHybrid {
		errs = append(errs, validateTelegram(cfg.Telegram)...)
	}

	if cfg.Provider.APIKey == "" {
		errs = append(errs, errors.New("config: OPENROUTER_API_KEY is required"))
	}
	if cfg.Provider.Model == "" {
		errs = append(errs, errors.New("config: provider model is required"))
	}
	if cfg.Agent.HistoryRuns < 0 {
		errs = append(errs, fmt.Errorf("config: history runs must be >= 0, got %d", cfg.Agent.HistoryRuns))
	}
	if cfg.Agent.MaxIterations < 0 || cfg.Agent.TokenBudget < 0 || cfg.Agent.LoopThreshold < 0 || cfg.Agent.Timeout < 0 {
		errs = append(errs, errors.New("config: agent loop limits must be >= 0"))
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: invalid port %d", cfg.Server.Port))
	}

	if cfg.Knowledge.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("config: knowledge max results must be positive, got %d", cfg.Knowledge.MaxResults))
	}
	if cfg.Storage.Dir == "" {
		errs = append(errs, errors.New("config: storage dir is required"))
	}
	if cfg.Storage.RedisURL != "" {
		if u, err := url.Parse(cfg.Storage.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errs = append(errs, errors.New("config: PORTFOLIO_REDIS_URL must be a redis:// or rediss:// URL"))
		}
	}

	if cfg.Schedule.KnowledgeRefresh != "" {
		if _, err := cron.ParseStandard(cfg.Schedule.KnowledgeRefresh); err != nil {
			errs = append(errs, fmt.Errorf("config: invalid knowledge refresh schedule %q: %w", cfg.Schedule.KnowledgeRefresh, err))
		}
	}
	if cfg.Schedule.SessionRetention < 0 {
		errs = append(errs, errors.New("config: session retention must be >= 0"))
	}

	return errors.Join(errs...)
}

func validateTelegram(t TelegramConfig) []error {
	var errs []error

	switch {
	case t.Token == "":
		errs = append(errs, ErrMissingToken)
	case !tokenPattern.MatchString(t.Token):
		errs = append(errs, errors.New("config: TELEGRAM_TOKEN is malformed (expected <id>:<secret>)"))
	}

	if t.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("config: telegram concurrency must be positive, got %d", t.Concurrency))
	}
	if t.PollInterval < 0 || math.IsNaN(t.PollInterval) || math.IsInf(t.PollInterval, 0) {
		errs = append(errs, fmt.Errorf("config: poll interval must be a finite number >= 0, got %g", t.PollInterval))
	}
	if t.PollTimeout < 0 || t.PollTimeout > 50 {
		errs = append(errs, fmt.Errorf("config: poll timeout must be between 0 and 50 seconds, got %d", t.PollTimeout))
	}
	if t.RatePerMinute < 0 {
		errs = append(errs, fmt.Errorf("config: rate per minute must be >= 0, got %d", t.RatePerMinute))
	}
	if u, err := url.Parse(t.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("config: invalid telegram api url %q", t.APIURL))
	}
	return errs
}
