// Package knowledge ingests grounding documents into a vector store and
// retrieves the passages most similar to a query.
package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"
)

// DefaultMaxResults is used when a search asks for no explicit limit.
const DefaultMaxResults = 5

// ErrNotConfigured is returned when searching without an embedder or store.
var ErrNotConfigured = errors.New("knowledge: embedder or vector store not configured")

// Document is one source file or object before chunking.
type Document struct {
	Name     string
	Content  string
	Metadata map[string]string
}

// Chunk is an embedded slice of a document.
type Chunk struct {
	ID        string            `json:"id"`
	Document  string            `json:"document"`
	Index     int               `json:"index"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"-"`
}

// Match is a chunk returned by a similarity search.
type Match struct {
	Chunk
	Score float64 `json:"score"`
}

// Embedder turns texts into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// VectorStore persists chunks and runs nearest-neighbour queries.
type VectorStore interface {
	// Upsert inserts or replaces chunks by id.
	Upsert(ctx context.Context, chunks []Chunk) error
	// DeleteDocument removes every chunk of the named document.
	DeleteDocument(ctx context.Context, document string) error
	// ReplaceDocument atomically swaps the chunks of document for chunks.
	ReplaceDocument(ctx context.Context, document string, chunks []Chunk) error
	// Search returns up to limit chunks ordered by descending similarity.
	Search(ctx context.Context, vector []float32, limit int) ([]Match, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// EmbeddingCache stores query embeddings between searches.
type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error
}

// Config configures a Knowledge base.
type Config struct {
	Name        string
	Description string
	MaxResults  int

	Embedder Embedder
	Store    VectorStore

	// Source and Metadata are used by Reload and EnsureLoaded.
	Source   Source
	Metadata map[string]string

	// Cache is optional.
	Cache    EmbeddingCache
	CacheTTL time.Duration

	ChunkSize    int
	ChunkOverlap int

	Logger *slog.Logger
}

// Knowledge couples an embedder with a vector store.
type Knowledge struct {
	cfg    Config
	logger *slog.Logger

	// loadMu serializes ingestion so reloads never interleave.
	loadMu sync.Mutex
}

// New creates a Knowledge base from cfg.
func New(cfg Config) *Knowledge {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Knowledge{cfg: cfg, logger: logger.With("component", "knowledge")}
}

// Name returns the knowledge base name.
func (k *Knowledge) Name() string { return k.cfg.Name }

// Description returns the knowledge base description.
func (k *Knowledge) Description() string { return k.cfg.Description }

// MaxResults returns the default number of references per search.
func (k *Knowledge) MaxResults() int { return k.cfg.MaxResults }

// Count returns the number of stored chunks.
func (k *Knowledge) Count(ctx context.Context) (int, error) {
	if k.cfg.Store == nil {
		return 0, ErrNotConfigured
	}
	return k.cfg.Store.Count(ctx)
}

// Load chunks, embeds and stores every document of src. Existing chunks of
// each document are replaced. It returns the number of chunks written.
func (k *Knowledge) Load(ctx context.Context, src Source, meta map[string]string) (int, error) {
	if k.cfg.Embedder == nil || k.cfg.Store == nil {
		return 0, ErrNotConfigured
	}
	k.loadMu.Lock()
	defer k.loadMu.Unlock()

	docs, err := src.Documents(ctx)
	if err != nil {
		return 0, fmt.Errorf("knowledge: reading source: %w", err)
	}

	total := 0
	for _, doc := range docs {
		if len(meta) > 0 {
			merged := maps.Clone(meta)
			maps.Copy(merged, doc.Metadata)
			doc.Metadata = merged
		}
		n, err := k.loadDocument(ctx, doc)
		if err != nil {
			return total, fmt.Errorf("knowledge: loading %s: %w", doc.Name, err)
		}
		total += n
	}

	k.logger.Info("knowledge loaded", "documents", len(docs), "chunks", total)
	return total, nil
}

func (k *Knowledge) loadDocument(ctx context.Context, doc Document) (int, error) {
	chunks := Split(doc, k.cfg.ChunkSize, k.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		if err := k.cfg.Store.DeleteDocument(ctx, doc.Name); err != nil {
			return 0, fmt.Errorf("storing: %w", err)
		}
		return 0, nil
	}

	// Stored chunks are only touched once the new ones are embedded.
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := k.cfg.Embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedding: got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := k.cfg.Store.ReplaceDocument(ctx, doc.Name, chunks); err != nil {
		return 0, fmt.Errorf("storing: %w", err)
	}
	return len(chunks), nil
}

// Reload re-ingests the configured source.
func (k *Knowledge) Reload(ctx context.Context) (int, error) {
	if k.cfg.Source == nil {
		return 0, ErrNoSource
	}
	return k.Load(ctx, k.cfg.Source, k.cfg.Metadata)
}

// Search embeds query and returns the closest chunks. A non-positive limit
// uses MaxResults.
func (k *Knowledge) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	if k.cfg.Embedder == nil || k.cfg.Store == nil {
		return nil, ErrNotConfigured
	}
	if limit <= 0 {
		limit = k.cfg.MaxResults
	}

	vector, err := k.queryEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}
	return k.cfg.Store.Search(ctx, vector, limit)
}

func (k *Knowledge) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	key := cacheKey(k.cfg.Embedder.Model(), query)

	if k.cfg.Cache != nil {
		v, ok, err := k.cfg.Cache.Get(ctx, key)
		switch {
		case err != nil:
			k.logger.Warn("embedding cache read failed", "error", err)
		case ok:
			return v, nil
		}
	}

	vectors, err := k.cfg.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("knowledge: embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("knowledge: embedding query: got %d vectors", len(vectors))
	}

	if k.cfg.Cache != nil {
		if err := k.cfg.Cache.Set(ctx, key, vectors[0], k.cfg.CacheTTL); err != nil {
			k.logger.Warn("embedding cache write failed", "error", err)
		}
	}
	return vectors[0], nil
}

func cacheKey(model, query string) string {
	sum := sha256.Sum256([]byte(query))
	return "embed:" + model + ":" + hex.EncodeToString(sum[:])
}
