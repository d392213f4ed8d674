package app

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrConfigNotFound is returned by ResolveConfigPath when no file exists.
// The YAML file is optional; environment variables alone are enough.
var ErrConfigNotFound = errors.New("app: no configuration file found")

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/relaybot/relaybot.yaml →
// ~/.config/relaybot/relaybot.yaml → ./relaybot.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "relaybot", "relaybot.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "relaybot", "relaybot.yaml"))
	}

	candidates = append(candidates, "relaybot.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrConfigNotFound
}
