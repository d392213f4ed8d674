package app

import (
	"errors"

	"github.com/flemzord/relaybot/internal/config"
)

// LoadConfig resolves the config file when path is empty, loads it with
// environment overrides, applies mode when set and validates the result.
func LoadConfig(path, mode string) (*config.Config, error) {
	if path == "" {
		resolved, err := ResolveConfigPath()
		if err != nil && !errors.Is(err, ErrConfigNotFound) {
			return nil, err
		}
		path = resolved
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if mode != "" {
		cfg.Mode = mode
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
