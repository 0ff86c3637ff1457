package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
)

func TestVectorIndex_UpsertAndSearch(t *testing.T) {
	index := NewVectorIndex()
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, driven.VectorRecord{
		ChunkID:    "chunk-close",
		DocumentID: "doc-1",
		Type:       domain.DocTypeNormative,
		Embedding:  []float32{1, 0, 0},
	}))
	require.NoError(t, index.Upsert(ctx, driven.VectorRecord{
		ChunkID:    "chunk-far",
		DocumentID: "doc-2",
		Type:       domain.DocTypeEstimate,
		Embedding:  []float32{0, 1, 0},
	}))

	hits, err := index.Search(ctx, []float32{1, 0.1, 0}, 10, driven.VectorFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "chunk-close", hits[0].ChunkID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestVectorIndex_Search_TruncatesToK(t *testing.T) {
	index := NewVectorIndex()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, index.Upsert(ctx, driven.VectorRecord{
			ChunkID:   id,
			Embedding: []float32{1, 0},
		}))
	}

	hits, err := index.Search(ctx, []float32{1, 0}, 2, driven.VectorFilter{})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestVectorIndex_Search_Filters(t *testing.T) {
	index := NewVectorIndex()
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, driven.VectorRecord{
		ChunkID:    "chunk-norm",
		DocumentID: "doc-1",
		Type:       domain.DocTypeNormative,
		Embedding:  []float32{1, 0},
	}))
	require.NoError(t, index.Upsert(ctx, driven.VectorRecord{
		ChunkID:    "chunk-est",
		DocumentID: "doc-2",
		Type:       domain.DocTypeEstimate,
		Embedding:  []float32{1, 0},
	}))

	byDoc, err := index.Search(ctx, []float32{1, 0}, 10, driven.VectorFilter{
		DocumentIDs: []string{"doc-2"},
	})
	require.NoError(t, err)
	require.Len(t, byDoc, 1)
	assert.Equal(t, "chunk-est", byDoc[0].ChunkID)

	byType, err := index.Search(ctx, []float32{1, 0}, 10, driven.VectorFilter{
		Types: []domain.DocumentType{domain.DocTypeNormative},
	})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "chunk-norm", byType[0].ChunkID)
}

func TestVectorIndex_Search_SkipsDimensionMismatch(t *testing.T) {
	index := NewVectorIndex()
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, driven.VectorRecord{
		ChunkID:   "chunk-stale",
		Embedding: []float32{1, 0, 0, 0},
	}))

	hits, err := index.Search(ctx, []float32{1, 0}, 10, driven.VectorFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorIndex_Upsert_Replaces(t *testing.T) {
	index := NewVectorIndex()
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, driven.VectorRecord{
		ChunkID:   "chunk-1",
		Embedding: []float32{0, 1},
	}))
	require.NoError(t, index.Upsert(ctx, driven.VectorRecord{
		ChunkID:   "chunk-1",
		Embedding: []float32{1, 0},
	}))

	hits, err := index.Search(ctx, []float32{1, 0}, 10, driven.VectorFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
}

func TestVectorIndex_Upsert_RequiresChunkID(t *testing.T) {
	index := NewVectorIndex()

	err := index.Upsert(context.Background(), driven.VectorRecord{
		Embedding: []float32{1, 0},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestVectorIndex_Delete(t *testing.T) {
	index := NewVectorIndex()
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, driven.VectorRecord{
		ChunkID:   "chunk-1",
		Embedding: []float32{1, 0},
	}))
	require.NoError(t, index.Delete(ctx, "chunk-1"))

	hits, err := index.Search(ctx, []float32{1, 0}, 10, driven.VectorFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}
