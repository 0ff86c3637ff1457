// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Normaliser: Extracts text from raw files
//   - NormaliserRegistry: Selects the appropriate normaliser
//   - PostProcessor/PostProcessorPipeline: Produces chunks from documents
//   - DocumentStore: Document and chunk persistence
//   - ProcessStore: Process tracking persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it, retrieval
//     is disabled and every query reports insufficient evidence.
//   - VectorIndex: Vector similarity search over stored embeddings.
//   - CompletionService: Language model completions. Without it, planning
//     falls back to deterministic rule-based plans.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, normaliser, or service package
package driven
