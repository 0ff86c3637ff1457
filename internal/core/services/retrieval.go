package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
	"github.com/bldr-labs/bldr/internal/core/ports/driving"
	"github.com/bldr-labs/bldr/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.SearchService = (*RetrievalService)(nil)

// RetrievalService answers similarity queries against the chunk index.
// Results below the evidence threshold are never silently returned;
// the caller gets domain.ErrInsufficientEvidence instead.
type RetrievalService struct {
	embedder   driven.EmbeddingService
	embedCache driven.EmbeddingCache
	vectors    driven.VectorIndex
	docStore   driven.DocumentStore
	settings   domain.RetrievalSettings
}

// NewRetrievalService creates the retrieval service.
func NewRetrievalService(
	embedder driven.EmbeddingService,
	embedCache driven.EmbeddingCache,
	vectors driven.VectorIndex,
	docStore driven.DocumentStore,
	settings domain.RetrievalSettings,
) *RetrievalService {
	return &RetrievalService{
		embedder:   embedder,
		embedCache: embedCache,
		vectors:    vectors,
		docStore:   docStore,
		settings:   settings,
	}
}

// Search embeds the query and returns hydrated chunks above the
// evidence threshold, best first. Types narrow the index scan to
// documents of the given types.
func (s *RetrievalService) Search(ctx context.Context, query string, k int, types ...domain.DocumentType) ([]domain.RetrievalResult, error) {
	if s.embedder == nil || s.vectors == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if k <= 0 {
		k = s.settings.TopK
	}

	embedding, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.vectors.Search(ctx, embedding, k, driven.VectorFilter{Types: types})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Retrieval: %d raw hits for %q", len(hits), query)

	var results []domain.RetrievalResult
	bestBelow := 0.0
	for _, hit := range hits {
		if hit.Similarity < s.settings.MinScore {
			if hit.Similarity > bestBelow {
				bestBelow = hit.Similarity
			}
			continue
		}
		result, err := s.hydrate(ctx, hit)
		if err != nil {
			logger.Warn("Failed to hydrate chunk %s: %v", hit.ChunkID, err)
			continue
		}
		results = append(results, *result)
	}

	if len(results) == 0 {
		logger.Debug("Retrieval: no hit cleared threshold %.2f (best %.2f)", s.settings.MinScore, bestBelow)
		return nil, fmt.Errorf("%w: best score %.2f below threshold %.2f",
			domain.ErrInsufficientEvidence, bestBelow, s.settings.MinScore)
	}

	return results, nil
}

// embedQuery returns the query embedding, using the shared cache so
// repeated questions avoid recomputation.
func (s *RetrievalService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	key := contentHash([]byte(query))
	if s.embedCache != nil {
		embedding, hit, err := s.embedCache.Get(ctx, key)
		if err == nil && hit {
			return embedding, nil
		}
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	if s.embedCache != nil {
		if err := s.embedCache.PutIfAbsent(ctx, key, embedding); err != nil {
			logger.Warn("Embedding cache write failed: %v", err)
		}
	}
	return embedding, nil
}

func (s *RetrievalService) hydrate(ctx context.Context, hit driven.VectorHit) (*domain.RetrievalResult, error) {
	chunk, err := s.docStore.GetChunk(ctx, hit.ChunkID)
	if err != nil {
		return nil, err
	}

	title := ""
	doc, err := s.docStore.GetDocument(ctx, chunk.DocumentID)
	switch {
	case err == nil:
		title = doc.Title
	case errors.Is(err, domain.ErrNotFound):
		// Orphaned chunk; cite it without a document title.
	default:
		return nil, err
	}

	return &domain.RetrievalResult{
		Chunk:         *chunk,
		DocumentTitle: title,
		Score:         hit.Similarity,
	}, nil
}
