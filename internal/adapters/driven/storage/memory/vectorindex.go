package memory

import (
	"context"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an in-memory implementation of driven.VectorIndex using
// an exhaustive cosine scan.
type VectorIndex struct {
	mu      sync.RWMutex
	records map[string]driven.VectorRecord
}

// NewVectorIndex creates a new in-memory vector index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		records: make(map[string]driven.VectorRecord),
	}
}

// Upsert inserts or replaces the vector for the given chunk ID.
func (v *VectorIndex) Upsert(_ context.Context, record driven.VectorRecord) error {
	if record.ChunkID == "" {
		return domain.ErrInvalidInput
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.records[record.ChunkID] = record
	return nil
}

// Delete removes a vector from the index.
func (v *VectorIndex) Delete(_ context.Context, chunkID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.records, chunkID)
	return nil
}

// Search finds the k nearest neighbours to the query vector that pass
// the filter, best first.
func (v *VectorIndex) Search(_ context.Context, query []float32, k int, filter driven.VectorFilter) ([]driven.VectorHit, error) {
	if len(query) == 0 || k <= 0 {
		return nil, nil
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	var hits []driven.VectorHit
	for _, record := range v.records {
		if len(record.Embedding) != len(query) {
			continue
		}
		if len(filter.DocumentIDs) > 0 && !slices.Contains(filter.DocumentIDs, record.DocumentID) {
			continue
		}
		if len(filter.Types) > 0 && !slices.Contains(filter.Types, record.Type) {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    record.ChunkID,
			Similarity: cosine(query, record.Embedding),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Close releases resources.
func (v *VectorIndex) Close() error {
	return nil
}

// cosine computes cosine similarity clamped to [0, 1].
func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
