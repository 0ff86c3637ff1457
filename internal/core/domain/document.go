package domain

import "time"

// DocumentType classifies a source document.
// The type controls which chunking strategy is applied.
type DocumentType string

// Document type taxonomy.
const (
	// DocTypeNormative is a normative standard with numbered clauses
	// (building codes, state standards such as СП/ГОСТ/СНиП).
	DocTypeNormative DocumentType = "normative"

	// DocTypeEstimate is a cost estimate (rate schedules, ГЭСН/ФЕР tables).
	DocTypeEstimate DocumentType = "estimate"

	// DocTypeSchedule is a work schedule or calendar plan.
	DocTypeSchedule DocumentType = "schedule"

	// DocTypeContract is a contract or agreement.
	DocTypeContract DocumentType = "contract"

	// DocTypeGeneric is any other document.
	DocTypeGeneric DocumentType = "generic"
)

// IsValid returns true if the document type is recognised.
func (t DocumentType) IsValid() bool {
	switch t {
	case DocTypeNormative, DocTypeEstimate, DocTypeSchedule, DocTypeContract, DocTypeGeneric:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t DocumentType) String() string {
	return string(t)
}

// DocumentStatus tracks a document through the ingestion pipeline.
type DocumentStatus string

// Document lifecycle states.
const (
	// StatusScanned means the file was found and read.
	StatusScanned DocumentStatus = "scanned"

	// StatusExtracted means text content was extracted.
	StatusExtracted DocumentStatus = "extracted"

	// StatusChunked means chunks were produced.
	StatusChunked DocumentStatus = "chunked"

	// StatusIndexed means chunks and embeddings are persisted.
	StatusIndexed DocumentStatus = "indexed"

	// StatusFailed means ingestion failed; FailReason explains why.
	StatusFailed DocumentStatus = "failed"
)

// Document represents an ingested source document.
// It is immutable after reaching StatusIndexed; re-ingesting identical
// content is a no-op keyed by ContentHash.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// URI is the original location (file path).
	URI string

	// Title is the human-readable title.
	Title string

	// Type is the detected document type.
	Type DocumentType

	// Status is the current ingestion state.
	Status DocumentStatus

	// FailReason explains a StatusFailed document.
	FailReason string

	// ContentHash is the SHA-256 of Content, used for deduplication.
	ContentHash string

	// Content is the full extracted text before chunking.
	Content string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last updated.
	UpdatedAt time.Time
}

// Chunk represents a retrievable unit within a document.
// For normative documents each chunk is exactly one numbered clause;
// for other types chunks are fixed windows with overlap.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// ClausePath is the hierarchical clause numbering, outermost first
	// (e.g., ["5", "5.2", "5.2.1"]). Empty for non-normative documents.
	// At most three levels deep.
	ClausePath []string

	// Embedding is the vector representation for semantic search.
	// Populated asynchronously after chunk creation; may lag.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

// Clause returns the deepest clause number, or "" for flat chunks.
func (c Chunk) Clause() string {
	if len(c.ClausePath) == 0 {
		return ""
	}
	return c.ClausePath[len(c.ClausePath)-1]
}

// IngestMode selects how much of each file is read during ingestion.
type IngestMode string

// Ingestion modes.
const (
	// IngestModeFull parses entire files.
	IngestModeFull IngestMode = "full"

	// IngestModeSampled bounds the work per file (page-limited PDF
	// extraction, size-capped reads) for latency-sensitive runs.
	IngestModeSampled IngestMode = "sampled"
)

// IsValid returns true if the ingest mode is recognised.
func (m IngestMode) IsValid() bool {
	return m == IngestModeFull || m == IngestModeSampled
}
