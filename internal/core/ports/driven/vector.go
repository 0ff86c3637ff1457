package driven

import (
	"context"

	"github.com/bldr-labs/bldr/internal/core/domain"
)

// VectorFilter restricts a similarity search.
type VectorFilter struct {
	// DocumentIDs limits hits to the given documents. Empty means all.
	DocumentIDs []string

	// Types limits hits to chunks of documents of the given types.
	Types []domain.DocumentType
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity score (0-1).
	Similarity float64
}

// VectorRecord is an entry in the index. DocumentID and Type are kept
// alongside the embedding so filters can be applied during search.
type VectorRecord struct {
	ChunkID    string
	DocumentID string
	Type       domain.DocumentType
	Embedding  []float32
}

// VectorIndex provides semantic similarity search operations.
// Implementations must support incremental upserts without a full
// rebuild and safe concurrent reads.
type VectorIndex interface {
	// Upsert inserts or replaces the vector for the given chunk ID.
	Upsert(ctx context.Context, record VectorRecord) error

	// Delete removes a vector from the index.
	Delete(ctx context.Context, chunkID string) error

	// Search finds the k nearest neighbours to the query vector that
	// pass the filter, best first. It returns raw hits; score
	// thresholding is the caller's responsibility.
	Search(ctx context.Context, query []float32, k int, filter VectorFilter) ([]VectorHit, error)

	// Close releases resources.
	Close() error
}
