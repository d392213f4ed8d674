package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// MarkerFile is created in the storage directory after the first load.
const MarkerFile = ".knowledge_loaded"

// EnsureLoaded ingests the configured source once per storage directory.
// When the marker file exists it does nothing and reports false. A missing
// source is not an error: the marker is written anyway so startup does not
// retry on every boot.
func (k *Knowledge) EnsureLoaded(ctx context.Context, storageDir string) (bool, error) {
	marker := filepath.Join(storageDir, MarkerFile)
	if _, err := os.Stat(marker); err == nil {
		return false, nil
	}

	loaded := false
	if k.cfg.Source != nil {
		_, err := k.Load(ctx, k.cfg.Source, k.cfg.Metadata)
		switch {
		case errors.Is(err, ErrSourceNotFound):
			k.logger.Info("knowledge source not found, skipping initial load", "error", err)
		case err != nil:
			return false, err
		default:
			loaded = true
		}
	}

	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return loaded, fmt.Errorf("knowledge: creating storage dir: %w", err)
	}
	if err := os.WriteFile(marker, []byte("initialized"), 0o644); err != nil {
		return loaded, fmt.Errorf("knowledge: writing marker: %w", err)
	}
	return loaded, nil
}
