package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bldr-labs/bldr/internal/core/domain"
)

const defaultSearchLimit = 10

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query   string `json:"query" jsonschema:"the search query"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	DocType string `json:"doc_type,omitempty" jsonschema:"restrict to one document type: normative, estimate, schedule, contract or generic"`
}

// SearchResultItem is a single result in the search tool output.
type SearchResultItem struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Clause     string  `json:"clause,omitempty"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultItem `json:"results"`
	Count   int                `json:"count"`

	// InsufficientEvidence is set when nothing cleared the score
	// threshold. The empty result set is deliberate, not an error.
	InsufficientEvidence bool `json:"insufficient_evidence,omitempty"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the indexed documents"`
	Role     string `json:"role,omitempty" jsonschema:"advisory role hint: engineer, estimator or manager"`
	Session  string `json:"session,omitempty" jsonschema:"opaque session identifier grouping related questions"`
}

// AskCitation is a resolved source marker in the ask tool output.
type AskCitation struct {
	Marker   int     `json:"marker"`
	Document string  `json:"document"`
	Clause   string  `json:"clause,omitempty"`
	Score    float64 `json:"score"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer          string        `json:"answer"`
	Confidence      float64       `json:"confidence"`
	Citations       []AskCitation `json:"citations"`
	Insufficient    bool          `json:"insufficient,omitempty"`
	PartialFailures []string      `json:"partial_failures,omitempty"`
	ProcessID       string        `json:"process_id,omitempty"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "search",
		Description: "Search the indexed construction documents semantically. " +
			"Returns chunks with clause numbers and relevance scores.",
	}, s.handleSearch)

	if s.ports.Query != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name: "ask",
			Description: "Answer a question from the indexed construction documents. " +
				"Returns a cited answer with a confidence score.",
		}, s.handleAsk)
	}
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var types []domain.DocumentType
	if input.DocType != "" {
		docType := domain.DocumentType(input.DocType)
		if !docType.IsValid() {
			return nil, SearchOutput{}, fmt.Errorf("unknown document type %q", input.DocType)
		}
		types = append(types, docType)
	}

	results, err := s.ports.Search.Search(ctx, input.Query, limit, types...)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientEvidence) {
			return nil, SearchOutput{
				Results:              []SearchResultItem{},
				InsufficientEvidence: true,
			}, nil
		}
		return nil, SearchOutput{}, fmt.Errorf("search: %w", err)
	}

	items := make([]SearchResultItem, 0, len(results))
	for _, r := range results {
		items = append(items, SearchResultItem{
			ChunkID:    r.Chunk.ID,
			DocumentID: r.Chunk.DocumentID,
			Title:      r.DocumentTitle,
			Clause:     r.Chunk.Clause(),
			Content:    r.Chunk.Content,
			Score:      r.Score,
		})
	}

	return nil, SearchOutput{Results: items, Count: len(items)}, nil
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.ports.Query.Ask(ctx, input.Question, domain.AskOptions{
		RoleHint:  input.Role,
		SessionID: input.Session,
	})
	if err != nil {
		return nil, AskOutput{}, fmt.Errorf("ask: %w", err)
	}

	citations := make([]AskCitation, 0, len(answer.Citations))
	for _, c := range answer.Citations {
		citations = append(citations, AskCitation{
			Marker:   c.Marker,
			Document: c.Document,
			Clause:   c.Clause,
			Score:    c.Score,
		})
	}

	return nil, AskOutput{
		Answer:          answer.Text,
		Confidence:      answer.Confidence,
		Citations:       citations,
		Insufficient:    answer.Insufficient,
		PartialFailures: answer.PartialFailures,
		ProcessID:       answer.ProcessID,
	}, nil
}
