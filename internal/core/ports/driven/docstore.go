package driven

import (
	"context"

	"github.com/bldr-labs/bldr/internal/core/domain"
)

// DocumentStore persists documents and chunks.
// Backed by SQLite for metadata storage. Implementations must support
// concurrent reads and independent per-document writes.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// SaveChunks stores chunks for a document.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetDocumentByHash retrieves a document by content hash.
	// Returns domain.ErrNotFound when the hash is unknown; this is the
	// deduplication registry preventing reprocessing of identical files.
	GetDocumentByHash(ctx context.Context, hash string) (*domain.Document, error)

	// GetChunks retrieves all chunks for a document, ordered by position.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// ListDocuments returns all documents.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error
}

// ProcessStore persists process tracking records.
type ProcessStore interface {
	// Save stores or updates a process with its event log.
	Save(ctx context.Context, proc *domain.Process) error

	// Get retrieves a process by ID.
	Get(ctx context.Context, id string) (*domain.Process, error)

	// List returns all processes, newest first.
	List(ctx context.Context) ([]domain.Process, error)
}
