package driving

import (
	"context"

	"github.com/bldr-labs/bldr/internal/core/domain"
)

// QueryService answers free-text questions about the knowledge base.
type QueryService interface {
	// Ask runs the full pipeline: intent parsing, plan generation,
	// role execution and aggregation. It always returns an answer -
	// possibly one that explicitly reports insufficient evidence -
	// rather than an unhandled failure.
	Ask(ctx context.Context, query string, opts domain.AskOptions) (*domain.FinalAnswer, error)
}

// ProcessService exposes process tracking to observers.
type ProcessService interface {
	// Get returns a process snapshot by ID.
	Get(ctx context.Context, id string) (*domain.Process, error)

	// List returns all known processes, newest first.
	List(ctx context.Context) ([]domain.Process, error)

	// Subscribe returns a channel of events for the process. The
	// channel closes when the process reaches a terminal state or the
	// context is cancelled.
	Subscribe(ctx context.Context, id string) (<-chan domain.ProcessEvent, error)

	// Cancel requests cooperative cancellation. In-flight tool calls
	// observe it between retries and at suspension points.
	Cancel(ctx context.Context, id string) error
}
