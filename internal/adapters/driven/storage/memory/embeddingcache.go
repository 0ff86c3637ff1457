package memory

import (
	"context"
	"sync"

	"github.com/bldr-labs/bldr/internal/core/ports/driven"
)

// Ensure EmbeddingCache implements the interface.
var _ driven.EmbeddingCache = (*EmbeddingCache)(nil)

// EmbeddingCache is an in-memory implementation of driven.EmbeddingCache.
type EmbeddingCache struct {
	mu      sync.Mutex
	entries map[string][]float32
}

// NewEmbeddingCache creates a new in-memory embedding cache.
func NewEmbeddingCache() *EmbeddingCache {
	return &EmbeddingCache{
		entries: make(map[string][]float32),
	}
}

// Get returns the cached embedding, or nil and false on a miss.
func (c *EmbeddingCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	embedding, ok := c.entries[key]
	return embedding, ok, nil
}

// PutIfAbsent stores the embedding unless the key already exists.
func (c *EmbeddingCache) PutIfAbsent(_ context.Context, key string, embedding []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return nil
	}
	stored := make([]float32, len(embedding))
	copy(stored, embedding)
	c.entries[key] = stored
	return nil
}
