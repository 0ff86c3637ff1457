// Package driving defines the interfaces through which the outside
// world calls INTO the core.
//
// These are the "driving" or "primary" ports in hexagonal architecture.
// Core services implement them; the CLI and MCP adapters consume them.
//
//   - IngestService: document ingestion and watch mode
//   - QueryService: free-text question answering
//   - SearchService: direct retrieval without plan execution
//   - ProcessService: process tracking, subscription and cancellation
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or service package
package driving
