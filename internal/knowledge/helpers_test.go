package knowledge

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// letterEmbedder maps text to its a-z letter histogram.
type letterEmbedder struct {
	calls atomic.Int32
	err   error
}

func (e *letterEmbedder) Model() string { return "letters" }

func (e *letterEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 26)
		for _, r := range strings.ToLower(t) {
			if r >= 'a' && r <= 'z' && unicode.IsLetter(r) {
				v[r-'a']++
			}
		}
		out[i] = v
	}
	return out, nil
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]float32
	ttls []time.Duration
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]float32)} }

func (c *mapCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, v []float32, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = v
	c.ttls = append(c.ttls, ttl)
	return nil
}

type staticSource []Document

func (s staticSource) Documents(context.Context) ([]Document, error) { return s, nil }
