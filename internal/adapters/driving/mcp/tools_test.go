package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bldr-labs/bldr/internal/core/domain"
)

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns search results", func(t *testing.T) {
		mockSearch := &mockSearchService{
			results: []domain.RetrievalResult{
				{
					Chunk: domain.Chunk{
						ID:         "chunk-1",
						DocumentID: "doc-1",
						Content:    "Бетонирование при отрицательных температурах допускается",
						ClausePath: []string{"5", "5.2", "5.2.1"},
					},
					DocumentTitle: "СП 70.13330.2012",
					Score:         0.91,
				},
			},
		}

		ports := &Ports{Search: mockSearch}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := SearchInput{Query: "зимнее бетонирование", Limit: 10}
		_, output, err := server.handleSearch(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		assert.Equal(t, "chunk-1", output.Results[0].ChunkID)
		assert.Equal(t, "doc-1", output.Results[0].DocumentID)
		assert.Equal(t, "СП 70.13330.2012", output.Results[0].Title)
		assert.Equal(t, "5.2.1", output.Results[0].Clause)
		assert.Equal(t, 0.91, output.Results[0].Score)
		assert.False(t, output.InsufficientEvidence)
	})

	t.Run("doc_type narrows the search", func(t *testing.T) {
		mockSearch := &mockSearchService{}

		ports := &Ports{Search: mockSearch}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := SearchInput{Query: "график работ", DocType: "schedule"}
		_, _, err = server.handleSearch(ctx, nil, input)

		require.NoError(t, err)
		require.Len(t, mockSearch.types, 1)
		assert.Equal(t, domain.DocTypeSchedule, mockSearch.types[0])
	})

	t.Run("unknown doc_type is an error", func(t *testing.T) {
		ports := &Ports{Search: &mockSearchService{}}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := SearchInput{Query: "график работ", DocType: "чертёж"}
		_, _, err = server.handleSearch(ctx, nil, input)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown document type")
	})

	t.Run("insufficient evidence is reported, not an error", func(t *testing.T) {
		mockSearch := &mockSearchService{
			err: domain.ErrInsufficientEvidence,
		}

		ports := &Ports{Search: mockSearch}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := SearchInput{Query: "quantum chromodynamics"}
		_, output, err := server.handleSearch(ctx, nil, input)

		require.NoError(t, err)
		assert.True(t, output.InsufficientEvidence)
		assert.Empty(t, output.Results)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		mockSearch := &mockSearchService{
			err: errors.New("index unavailable"),
		}

		ports := &Ports{Search: mockSearch}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := SearchInput{Query: "test"}
		_, _, err = server.handleSearch(ctx, nil, input)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "index unavailable")
	})
}

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns cited answer", func(t *testing.T) {
		mockQuery := &mockQueryService{
			answer: &domain.FinalAnswer{
				Text:       "Выдерживание бетона требуется до набора 70% прочности [1].",
				Confidence: 0.84,
				Citations: []domain.Citation{
					{Marker: 1, ChunkID: "chunk-1", Document: "СП 70.13330.2012", Clause: "5.3.1", Score: 0.88},
				},
				ProcessID: "proc-1",
			},
		}

		ports := &Ports{Search: &mockSearchService{}, Query: mockQuery}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := AskInput{Question: "когда можно снимать опалубку", Role: "engineer", Session: "s-1"}
		_, output, err := server.handleAsk(ctx, nil, input)

		require.NoError(t, err)
		assert.Contains(t, output.Answer, "[1]")
		assert.Equal(t, 0.84, output.Confidence)
		require.Len(t, output.Citations, 1)
		assert.Equal(t, "5.3.1", output.Citations[0].Clause)
		assert.Equal(t, "proc-1", output.ProcessID)
		assert.Equal(t, "engineer", mockQuery.opts.RoleHint)
		assert.Equal(t, "s-1", mockQuery.opts.SessionID)
	})

	t.Run("propagates insufficient flag", func(t *testing.T) {
		mockQuery := &mockQueryService{
			answer: &domain.FinalAnswer{
				Text:         "Недостаточно данных в проиндексированных документах.",
				Insufficient: true,
			},
		}

		ports := &Ports{Search: &mockSearchService{}, Query: mockQuery}
		server, err := NewServer(ports)
		require.NoError(t, err)

		_, output, err := server.handleAsk(ctx, nil, AskInput{Question: "x"})

		require.NoError(t, err)
		assert.True(t, output.Insufficient)
	})

	t.Run("returns error on query failure", func(t *testing.T) {
		mockQuery := &mockQueryService{
			err: errors.New("planner unavailable"),
		}

		ports := &Ports{Search: &mockSearchService{}, Query: mockQuery}
		server, err := NewServer(ports)
		require.NoError(t, err)

		_, _, err = server.handleAsk(ctx, nil, AskInput{Question: "x"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "planner unavailable")
	})
}
