package mcp

import "errors"

// ErrMissingSearchService is returned when the server is constructed
// without a search service, which every tool depends on.
var ErrMissingSearchService = errors.New("mcp: search service is required")
