package knowledge

import (
	"cmp"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"slices"
	"sync"
)

// MemoryStore is an in-memory VectorStore using a brute-force cosine scan.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]Chunk
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[string]Chunk)}
}

var _ VectorStore = (*MemoryStore)(nil)

// Upsert inserts or replaces chunks by id.
func (s *MemoryStore) Upsert(_ context.Context, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		s.chunks[c.ID] = c
	}
	return nil
}

// DeleteDocument removes every chunk of document.
func (s *MemoryStore) DeleteDocument(_ context.Context, document string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.chunks {
		if c.Document == document {
			delete(s.chunks, id)
		}
	}
	return nil
}

// ReplaceDocument swaps the chunks of document under a single lock.
func (s *MemoryStore) ReplaceDocument(_ context.Context, document string, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.chunks {
		if c.Document == document {
			delete(s.chunks, id)
		}
	}
	for _, c := range chunks {
		s.chunks[c.ID] = c
	}
	return nil
}

// Search returns the limit chunks most similar to vector.
func (s *MemoryStore) Search(_ context.Context, vector []float32, limit int) ([]Match, error) {
	s.mu.RLock()
	matches := make([]Match, 0, len(s.chunks))
	for _, c := range s.chunks {
		matches = append(matches, Match{Chunk: c, Score: Cosine(vector, c.Embedding)})
	}
	s.mu.RUnlock()
	return TopK(matches, limit), nil
}

// Count returns the number of stored chunks.
func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopK sorts matches by descending score, ties by id, and keeps limit.
func TopK(matches []Match, limit int) []Match {
	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// ErrInvalidVector is returned when decoding a malformed vector blob.
var ErrInvalidVector = errors.New("knowledge: invalid vector encoding")

// EncodeVector serializes v as little-endian float32 values.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector parses a blob written by EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, ErrInvalidVector
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
