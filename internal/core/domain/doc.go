// Package domain defines the core business entities for Bldr.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A source document with detected type and processing status
//   - Chunk: A retrievable unit within a document, optionally clause-addressed
//   - Plan/PlanStep: The coordinator's execution recipe for a query
//   - Role: A named model profile with a tool whitelist and behaviour rules
//   - ToolInvocation: A request/response pair against the tool registry
//   - Process: A tracked unit of asynchronous work with a state machine
//   - FinalAnswer: The aggregated, citation-checked response to a query
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
