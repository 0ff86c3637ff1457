package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateContent indicates a document with identical content
	// hash is already indexed; re-ingestion is a no-op.
	ErrDuplicateContent = errors.New("duplicate content")

	// ErrInsufficientEvidence indicates no retrieved chunk cleared the
	// score threshold. Callers must surface this explicitly rather
	// than use the best irrelevant chunk.
	ErrInsufficientEvidence = errors.New("insufficient evidence")

	// ErrPlanInvalid indicates model plan output failed schema
	// validation after the single repair attempt.
	ErrPlanInvalid = errors.New("plan output invalid")

	// ErrToolNotPermitted indicates a role requested a tool outside
	// its whitelist.
	ErrToolNotPermitted = errors.New("tool not permitted for role")

	// ErrToolNotFound indicates an unregistered tool name.
	ErrToolNotFound = errors.New("tool not registered")

	// ErrUngroundedClaim indicates a step produced factual output with
	// no retrieval call in the same step.
	ErrUngroundedClaim = errors.New("claim without retrieval")

	// ErrProcessCancelled indicates cooperative cancellation.
	ErrProcessCancelled = errors.New("process cancelled")

	// ErrInvalidTransition indicates an illegal process state change.
	ErrInvalidTransition = errors.New("invalid process state transition")

	// ErrLLMUnavailable indicates the completion service is not
	// configured; planning degrades to the deterministic fallback.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Retrieval is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRoleUnknown indicates a plan step references an unconfigured role.
	ErrRoleUnknown = errors.New("unknown role")
)
