// Package redis stores query embeddings in Redis so repeated knowledge
// searches skip the embeddings API.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flemzord/relaybot/internal/knowledge"
)

// DefaultPrefix namespaces every key written by the cache.
const DefaultPrefix = "relaybot:"

// Cache implements knowledge.EmbeddingCache.
type Cache struct {
	client *goredis.Client
	prefix string
}

var _ knowledge.EmbeddingCache = (*Cache)(nil)

// Open parses a redis:// URL and verifies the connection.
func Open(ctx context.Context, url string) (*Cache, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := New(goredis.NewClient(opts), DefaultPrefix)
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// New wraps an existing client.
func New(client *goredis.Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

// Get returns the cached vector for key. A miss is not an error.
func (c *Cache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: get: %w", err)
	}
	vec, err := knowledge.DecodeVector(data)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Set stores vector under key. A zero ttl keeps the entry forever.
func (c *Cache) Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, knowledge.EncodeVector(vector), ttl).Err(); err != nil {
		return fmt.Errorf("redis: set: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Cache) Close() error { return c.client.Close() }
