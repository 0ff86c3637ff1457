package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// This is an optional service - when nil, retrieval is disabled.
//
// Note: This is separate from VectorIndex which stores and searches
// vectors, and from EmbeddingCache which avoids recomputation.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
//   - Local models via inference servers
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	// This is more efficient than calling Embed in a loop for large batches.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768, 1536).
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// EmbeddingCache stores computed embeddings keyed by a hash of the
// normalised input text. It is a shared, append-only store: entries are
// never updated, and PutIfAbsent must be atomic under concurrent use.
type EmbeddingCache interface {
	// Get returns the cached embedding, or nil and false on a miss.
	Get(ctx context.Context, key string) ([]float32, bool, error)

	// PutIfAbsent stores the embedding unless the key already exists.
	PutIfAbsent(ctx context.Context, key string, embedding []float32) error
}
