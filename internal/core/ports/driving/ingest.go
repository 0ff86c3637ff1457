package driving

import (
	"context"

	"github.com/bldr-labs/bldr/internal/core/domain"
)

// IngestReport summarises one ingestion run.
type IngestReport struct {
	// ProcessID is the tracking process for the run.
	ProcessID string

	// Ingested counts newly indexed documents.
	Ingested int

	// Skipped counts deduplicated (identical content hash) files.
	Skipped int

	// Failed counts per-file failures; failures never halt the batch.
	Failed int

	// Failures maps failed file paths to reasons.
	Failures map[string]string
}

// IngestService ingests documents into the knowledge base.
type IngestService interface {
	// Ingest processes a file or directory. Each file runs through an
	// independent pipeline; one corrupt file marks only its own
	// Document failed.
	Ingest(ctx context.Context, path string, mode domain.IngestMode) (*IngestReport, error)

	// Watch re-triggers ingestion when files under path change.
	// It blocks until the context is cancelled.
	Watch(ctx context.Context, path string, mode domain.IngestMode) error
}

// SearchService exposes retrieval directly, without plan execution.
type SearchService interface {
	// Search embeds the query and returns chunks above the evidence
	// threshold. Types, when given, restrict hits to documents of
	// those types. A below-threshold result set returns
	// domain.ErrInsufficientEvidence.
	Search(ctx context.Context, query string, k int, types ...domain.DocumentType) ([]domain.RetrievalResult, error)
}
