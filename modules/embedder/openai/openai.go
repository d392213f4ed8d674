// Package openai implements knowledge.Embedder with the official OpenAI
// Go SDK. Any OpenAI-compatible endpoint works through BaseURL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/flemzord/relaybot/internal/knowledge"
)

// Defaults for Config.
const (
	DefaultModel     = "text-embedding-3-large"
	DefaultBatchSize = 64
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("openai: api key is required")

// Config configures the embedder.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	BatchSize int
	// MaxRetries overrides the SDK retry count when positive.
	MaxRetries int
}

// Embedder calls the embeddings endpoint in fixed-size batches.
type Embedder struct {
	client    openai.Client
	model     string
	batchSize int
}

var _ knowledge.Embedder = (*Embedder)(nil)

// New creates an Embedder.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	return &Embedder{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
	}, nil
}

// Model implements knowledge.Embedder.
func (e *Embedder) Model() string { return e.model }

// Embed implements knowledge.Embedder. Vectors are returned in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		batch := texts[start:min(start+e.batchSize, len(texts))]
		vectors, err := e.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: embeddings: %w", err)
	}
	if len(resp.Data) != len(batch) {
		return nil, fmt.Errorf("openai: embeddings: got %d vectors for %d inputs", len(resp.Data), len(batch))
	}

	vectors := make([][]float32, len(batch))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(batch) {
			return nil, fmt.Errorf("openai: embeddings: index %d out of range", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		vectors[d.Index] = v
	}
	return vectors, nil
}
