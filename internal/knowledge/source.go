package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	// ErrSourceNotFound is returned when a source location does not exist.
	ErrSourceNotFound = errors.New("knowledge: source not found")

	// ErrNoSource is returned by Reload when no source is configured.
	ErrNoSource = errors.New("knowledge: no source configured")
)

// Source yields documents to ingest.
type Source interface {
	Documents(ctx context.Context) ([]Document, error)
}

// SupportedExtensions lists the file types read by DirSource.
var SupportedExtensions = []string{".md", ".markdown", ".txt", ".rst", ".csv", ".json", ".html"}

// DirSource reads every supported file below a directory.
type DirSource struct {
	Root string
}

// NewDirSource returns a DirSource rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Root: dir}
}

// Exists reports whether the root directory is present.
func (s *DirSource) Exists() bool {
	info, err := os.Stat(s.Root)
	return err == nil && info.IsDir()
}

// Documents walks Root in lexical order. Document names are slash
// separated paths relative to Root.
func (s *DirSource) Documents(ctx context.Context) ([]Document, error) {
	if !s.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, s.Root)
	}

	var docs []Document
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.Root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(path))) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		docs = append(docs, Document{
			Name:     rel,
			Content:  string(data),
			Metadata: map[string]string{"path": rel},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}
