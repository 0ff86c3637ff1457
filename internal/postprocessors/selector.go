package postprocessors

import (
	"context"

	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
	"github.com/bldr-labs/bldr/internal/logger"
	"github.com/bldr-labs/bldr/internal/postprocessors/clause"
)

// Selector routes a document to the chunker matching its detected type:
// normative documents go through the clause chunker, everything else
// through the window chunker. Normative documents without any clause
// marker fall back to window chunking as well.
// It implements the PostProcessor interface.
type Selector struct {
	clauseChunker driven.PostProcessor
	windowChunker driven.PostProcessor
}

// NewSelector creates a type-routing chunk processor.
func NewSelector(clauseChunker, windowChunker driven.PostProcessor) *Selector {
	return &Selector{
		clauseChunker: clauseChunker,
		windowChunker: windowChunker,
	}
}

// Name returns the processor name.
func (s *Selector) Name() string {
	return "type-selector"
}

// Process dispatches to the chunker for the document's type.
func (s *Selector) Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if doc.Type == domain.DocTypeNormative {
		if clause.HasClauseMarkers(doc.Content) {
			logger.Debug("Chunking %s with %s", doc.ID, s.clauseChunker.Name())
			return s.clauseChunker.Process(ctx, doc, chunks)
		}
		logger.Debug("Normative document %s has no clause markers, falling back to %s",
			doc.ID, s.windowChunker.Name())
	}

	logger.Debug("Chunking %s with %s", doc.ID, s.windowChunker.Name())
	return s.windowChunker.Process(ctx, doc, chunks)
}
