package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const uriScheme = "bldr://"

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "documents",
		Name:        "documents",
		Description: "List of indexed documents",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentID}",
		Name:        "document-content",
		Description: "Full text content of an indexed document",
		MIMEType:    "text/plain",
	}, s.handleDocumentContentResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "processes",
		Name:        "processes",
		Description: "List of tracked processes, newest first",
		MIMEType:    "application/json",
	}, s.handleProcessesResource)
}

// documentSummary is the JSON shape for the documents list resource.
type documentSummary struct {
	ID     string `json:"id"`
	URI    string `json:"uri"`
	Title  string `json:"title"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	summaries := []documentSummary{}

	if s.ports.Documents != nil {
		docs, err := s.ports.Documents.ListDocuments(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing documents: %w", err)
		}
		for _, doc := range docs {
			summaries = append(summaries, documentSummary{
				ID:     doc.ID,
				URI:    doc.URI,
				Title:  doc.Title,
				Type:   string(doc.Type),
				Status: string(doc.Status),
			})
		}
	}

	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling documents: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}

func (s *Server) handleDocumentContentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Documents == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	documentID := extractDocumentID(req.Params.URI)
	if documentID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	doc, err := s.ports.Documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("getting document content: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      req.Params.URI,
				MIMEType: "text/plain",
				Text:     doc.Content,
			},
		},
	}, nil
}

// processSummary is the JSON shape for the processes list resource.
type processSummary struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	State    string `json:"state"`
	Progress int    `json:"progress"`
}

func (s *Server) handleProcessesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	summaries := []processSummary{}

	if s.ports.Process != nil {
		procs, err := s.ports.Process.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing processes: %w", err)
		}
		for _, p := range procs {
			summaries = append(summaries, processSummary{
				ID:       p.ID,
				Kind:     string(p.Kind),
				State:    string(p.State),
				Progress: p.Progress,
			})
		}
	}

	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling processes: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}

// extractDocumentID parses "bldr://documents/{id}" and returns the id,
// or "" when the URI does not match.
func extractDocumentID(uri string) string {
	if !strings.HasPrefix(uri, uriScheme+"documents/") {
		return ""
	}
	id := strings.TrimPrefix(uri, uriScheme+"documents/")
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}
