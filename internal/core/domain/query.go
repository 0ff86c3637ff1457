package domain

// Intent labels recognised by the intent parser.
const (
	IntentNormCheck    = "norm_check"
	IntentEstimate     = "estimate"
	IntentSchedule     = "schedule"
	IntentDocumentInfo = "document_info"
	IntentGeneral      = "general"
)

// ParsedIntent is the intent parser's advisory output. It is input to
// the plan generator, never authoritative.
type ParsedIntent struct {
	// Intent is the detected intent label.
	Intent string

	// Entities are extracted domain entities (document codes, clause
	// numbers, rate schedule identifiers).
	Entities []string

	// Confidence is the classifier's score in [0,1].
	Confidence float64

	// Method records how the intent was derived: "semantic" for the
	// zero-shot classifier, "keyword" for the deterministic fallback.
	Method string
}

// RetrievalResult is a scored chunk returned by the retrieval index.
type RetrievalResult struct {
	// Chunk is the matched chunk.
	Chunk Chunk

	// DocumentTitle identifies the source document for citations.
	DocumentTitle string

	// Score is the cosine similarity in [0,1].
	Score float64
}

// Citation links an answer sentence marker to retrieved evidence.
type Citation struct {
	// Marker is the inline marker number used in the answer text.
	Marker int

	// ChunkID identifies the cited chunk.
	ChunkID string

	// Document is the source document title.
	Document string

	// Clause is the clause number for normative sources, if any.
	Clause string

	// Score is the retrieval score of the cited chunk.
	Score float64
}

// AskOptions configures a query.
type AskOptions struct {
	// RoleHint suggests a role for single-step plans. Advisory.
	RoleHint string

	// SessionID groups related queries. Opaque to the core.
	SessionID string
}

// FinalAnswer is the aggregated, citation-checked response.
type FinalAnswer struct {
	// Text is the synthesised answer.
	Text string

	// Confidence is derived from retrieval scores and citation
	// coverage, in [0,1].
	Confidence float64

	// Citations are the resolved source markers.
	Citations []Citation

	// Insufficient is set when retrieval cleared no chunk above the
	// score threshold; Text then says so explicitly.
	Insufficient bool

	// PartialFailures lists step-level failures surfaced without
	// aborting the query.
	PartialFailures []string

	// ProcessID is the tracking process for progress polling.
	ProcessID string
}
