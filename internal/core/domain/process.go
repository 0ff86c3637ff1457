package domain

import "time"

// ProcessState is a node in the process state machine.
type ProcessState string

// Process states. Valid transitions:
// pending -> running -> {completed | failed | cancelled | timeout}.
const (
	ProcessPending   ProcessState = "pending"
	ProcessRunning   ProcessState = "running"
	ProcessCompleted ProcessState = "completed"
	ProcessFailed    ProcessState = "failed"
	ProcessCancelled ProcessState = "cancelled"
	ProcessTimeout   ProcessState = "timeout"
)

// Terminal returns true for end states.
func (s ProcessState) Terminal() bool {
	switch s {
	case ProcessCompleted, ProcessFailed, ProcessCancelled, ProcessTimeout:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving to next is a legal transition.
func (s ProcessState) CanTransition(next ProcessState) bool {
	switch s {
	case ProcessPending:
		return next == ProcessRunning || next == ProcessCancelled || next == ProcessFailed
	case ProcessRunning:
		return next.Terminal()
	default:
		return false
	}
}

// ProcessKind names the unit of work a process tracks.
type ProcessKind string

// Process kinds.
const (
	ProcessKindIngest ProcessKind = "ingest"
	ProcessKindQuery  ProcessKind = "query"
	ProcessKindTool   ProcessKind = "tool"
)

// ProcessEvent is one entry in a process's monotonic event log.
type ProcessEvent struct {
	// Seq is the monotonic sequence number within the process.
	Seq int

	// State is the process state at the time of the event.
	State ProcessState

	// Progress is the completion percentage at the time of the event.
	Progress int

	// Message is a human-readable description.
	Message string

	// At is the event timestamp.
	At time.Time
}

// Process tracks a long-running unit of work: an ingestion job, a plan
// execution or a tool call. Observers consume its event log.
type Process struct {
	// ID is the unique identifier for the process.
	ID string

	// Kind names the tracked unit of work.
	Kind ProcessKind

	// State is the current state machine node.
	State ProcessState

	// Progress is the completion percentage (0-100).
	Progress int

	// Metadata contains process-specific key-value pairs.
	Metadata map[string]any

	// Events is the monotonic event log.
	Events []ProcessEvent

	// CreatedAt is when the process was registered.
	CreatedAt time.Time

	// UpdatedAt is when the process last changed.
	UpdatedAt time.Time
}
