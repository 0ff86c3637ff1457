package mcp

import (
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
	"github.com/bldr-labs/bldr/internal/core/ports/driving"
)

// Ports holds the driving-side services the MCP server exposes.
// Search is mandatory; the remaining ports enable optional tools and
// resources when present.
type Ports struct {
	// Search backs the search tool. Required.
	Search driving.SearchService

	// Query backs the ask tool. Optional; when nil the tool is not
	// registered.
	Query driving.QueryService

	// Process backs the process resources. Optional.
	Process driving.ProcessService

	// Documents backs the document resources. Optional.
	Documents driven.DocumentStore
}

// Validate checks that the mandatory ports are wired.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
