package domain

import "time"

// InvocationStatus tracks a tool call.
type InvocationStatus string

// Tool invocation states.
const (
	// InvocationPending means the call has not completed.
	InvocationPending InvocationStatus = "pending"

	// InvocationSuccess means the call returned a usable envelope.
	InvocationSuccess InvocationStatus = "success"

	// InvocationError means the call failed; the envelope carries the
	// error category that decides retry eligibility.
	InvocationError InvocationStatus = "error"
)

// ResultCategory classifies a tool outcome. Retry eligibility is a
// property of the category, never of the individual call.
type ResultCategory string

// Result categories, mirroring the error taxonomy.
const (
	// CategoryOK is a successful result.
	CategoryOK ResultCategory = "ok"

	// CategoryTransient is a network or timeout failure; retried with
	// bounded exponential backoff.
	CategoryTransient ResultCategory = "transient"

	// CategoryValidation is malformed input or a parameter mismatch;
	// never retried blindly, one repair attempt at most.
	CategoryValidation ResultCategory = "validation"

	// CategoryGrounding is a claim without evidence or retrieval below
	// threshold; triggers forced retrieval or claim removal.
	CategoryGrounding ResultCategory = "grounding"

	// CategoryFatal is an unrecoverable failure isolated to its unit.
	CategoryFatal ResultCategory = "fatal"
)

// Retryable reports whether calls failing with this category may be
// retried.
func (c ResultCategory) Retryable() bool {
	return c == CategoryTransient
}

// ToolEnvelope is the standardised result of every tool execution.
// Externally-supplied tools must conform to this shape.
type ToolEnvelope struct {
	// Status is "success" or "error".
	Status InvocationStatus

	// Category classifies the result.
	Category ResultCategory

	// Payload is the tool's textual output.
	Payload string

	// Retrieved carries chunks returned by retrieval-type tools so the
	// aggregator can resolve citations against them.
	Retrieved []RetrievalResult

	// Metadata contains tool-specific key-value pairs.
	Metadata map[string]any

	// Elapsed is the execution time.
	Elapsed time.Duration
}

// OK returns a success envelope with the given payload.
func OK(payload string) ToolEnvelope {
	return ToolEnvelope{Status: InvocationSuccess, Category: CategoryOK, Payload: payload}
}

// Fail returns an error envelope with the given category and message.
func Fail(category ResultCategory, msg string) ToolEnvelope {
	return ToolEnvelope{Status: InvocationError, Category: category, Payload: msg}
}

// ToolInvocation records one tool call made during a plan step.
type ToolInvocation struct {
	// ID is the unique identifier for the invocation.
	ID string

	// Tool is the registered tool name.
	Tool string

	// Params are the validated call parameters.
	Params map[string]any

	// Status is the execution state.
	Status InvocationStatus

	// Result is the standardised result envelope.
	Result ToolEnvelope

	// Attempts counts executions including retries.
	Attempts int

	// StartedAt is when the first attempt began.
	StartedAt time.Time
}
