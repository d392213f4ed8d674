package config

import (
	"errors"
	"math"
	"strings"
	"testing"
)

const validToken = "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw"

func validConfig() *Config {
	cfg := Defaults()
	cfg.Telegram.Token = validToken
	cfg.Provider.APIKey = "sk-or-v1-test"
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingTokenPerMode(t *testing.T) {
	tests := []struct {
		mode    string
		wantErr bool
	}{
		{ModeBot, true},
		{ModeHybrid, true},
		{"HYBRID", true},
		{ModeWeb, false},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := validConfig()
			cfg.Mode = tt.mode
			cfg.Telegram.Token = ""

			err := Validate(cfg)
			if got := errors.Is(err, ErrMissingToken); got != tt.wantErr {
				t.Errorf("errors.Is(ErrMissingToken) = %v, want %v (err: %v)", got, tt.wantErr, err)
			}
		})
	}
}

func TestValidate_UnsupportedMode(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "worker"

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported RUN_MODE") {
		t.Fatalf("expected unsupported mode error, got %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Token = "not-a-token"
	cfg.Telegram.Concurrency = 0
	cfg.Telegram.PollTimeout = 90
	cfg.Provider.APIKey = ""
	cfg.Server.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}

	for _, want := range []string{"malformed", "concurrency", "poll timeout", "OPENROUTER_API_KEY", "invalid port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestValidate_Schedule(t *testing.T) {
	cfg := validConfig()
	cfg.Schedule.KnowledgeRefresh = "every tuesday"

	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "knowledge refresh") {
		t.Fatalf("expected schedule error, got %v", err)
	}

	cfg.Schedule.KnowledgeRefresh = "0 3 * * *"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_RedisURL(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.RedisURL = "http://localhost:6379"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for non-redis scheme")
	}

	cfg.Storage.RedisURL = "redis://localhost:6379/0"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_PollInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval float64
		wantErr  bool
	}{
		{"zero", 0, false},
		{"fractional", 0.5, false},
		{"negative", -1, true},
		{"nan", math.NaN(), true},
		{"inf", math.Inf(1), true},
		{"negative inf", math.Inf(-1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Telegram.PollInterval = tt.interval
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "poll interval") {
				t.Errorf("error does not mention poll interval: %v", err)
			}
		})
	}
}

func TestValidate_AgentLoopLimits(t *testing.T) {
	cfg := validConfig()
	cfg.Agent.TokenBudget = 0
	if err := Validate(cfg); err != nil {
		t.Fatalf("unlimited budget rejected: %v", err)
	}

	cfg.Agent.TokenBudget = -1
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "loop limits") {
		t.Errorf("Validate() = %v, want loop limits error", err)
	}
}
