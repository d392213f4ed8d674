// Package config handles configuration loading for relaybot: built-in
// defaults, an optional YAML file with ${VAR} expansion, and environment
// overrides, followed by structural validation.
package config

import "time"

// Run modes accepted by RUN_MODE.
const (
	ModeWeb    = "web"
	ModeBot    = "bot"
	ModeHybrid = "hybrid"
)

// Config is the top-level configuration structure.
type Config struct {
	// Mode selects which runners the supervisor starts: web, bot or hybrid.
	Mode string `yaml:"mode"`

	Telegram  TelegramConfig  `yaml:"telegram"`
	Agent     AgentConfig     `yaml:"agent"`
	Provider  ProviderConfig  `yaml:"provider"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
}

// TelegramConfig configures the long-poll bot.
type TelegramConfig struct {
	Token string `yaml:"token"`
	// APIURL is the Bot API base, without the /bot<token> suffix.
	APIURL string `yaml:"api_url"`
	// PollInterval is the fixed sleep between getUpdates cycles, in seconds.
	PollInterval float64 `yaml:"poll_interval"`
	// PollTimeout is the long-poll timeout sent to getUpdates, in seconds.
	PollTimeout int `yaml:"poll_timeout"`
	// Concurrency bounds the handlers running for a single batch.
	Concurrency int `yaml:"concurrency"`
	// DefaultChatID is the target of the send_telegram_message tool.
	DefaultChatID string   `yaml:"chat_id"`
	AllowUsers    []string `yaml:"allow_users"`
	AllowChats    []string `yaml:"allow_chats"`
	// RatePerMinute caps replies per chat. Zero disables the limit.
	RatePerMinute int `yaml:"rate_per_minute"`
	// DisablePreview turns off link previews in bot replies.
	DisablePreview bool `yaml:"disable_preview"`
}

// PollIntervalDuration returns PollInterval as a time.Duration.
func (t TelegramConfig) PollIntervalDuration() time.Duration {
	return time.Duration(t.PollInterval * float64(time.Second))
}

// AgentConfig describes the single agent served by this process.
type AgentConfig struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Instructions string `yaml:"instructions"`
	Markdown     bool   `yaml:"markdown"`
	HistoryRuns  int    `yaml:"history_runs"`
	// MaxIterations caps the tool-calling loop.
	MaxIterations int `yaml:"max_iterations"`
	// TokenBudget caps tokens spent per run; 0 means unlimited.
	TokenBudget   int           `yaml:"token_budget"`
	LoopThreshold int           `yaml:"loop_threshold"`
	Timeout       time.Duration `yaml:"timeout"`
}

// ProviderConfig configures the OpenRouter chat completion provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Referer string `yaml:"referer"`
	Title   string `yaml:"title"`
}

// EmbedderConfig configures the OpenAI embedder. An empty APIKey disables
// knowledge entirely.
type EmbedderConfig struct {
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	Model    string        `yaml:"model"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// KnowledgeConfig configures the knowledge base.
type KnowledgeConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Table       string `yaml:"table"`
	MaxResults  int    `yaml:"max_results"`
	// Source is a directory path or an s3://bucket/prefix URL.
	Source string `yaml:"source"`
}

// StorageConfig locates persistent state.
type StorageConfig struct {
	Dir string `yaml:"dir"`
	// DatabaseURL selects Postgres for sessions when set.
	DatabaseURL string `yaml:"database_url"`
	// VectorPath defaults to <Dir>/vectors.db.
	VectorPath string `yaml:"vector_path"`
	// RedisURL enables the query embedding cache when set.
	RedisURL string `yaml:"redis_url"`
}

// ServerConfig configures the HTTP app.
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	SecurityKey string `yaml:"security_key"`
	OSID        string `yaml:"os_id"`
	Description string `yaml:"description"`
}

// LoggingConfig selects the slog level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig enables OTLP trace export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// ScheduleConfig configures background jobs.
type ScheduleConfig struct {
	// KnowledgeRefresh is a cron expression; empty disables the job.
	KnowledgeRefresh string `yaml:"knowledge_refresh"`
	// SessionRetention prunes runs older than this once a day. Zero keeps all.
	SessionRetention time.Duration `yaml:"session_retention"`
}
