package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driving"
	"github.com/bldr-labs/bldr/internal/logger"
)

// Ensure QueryOrchestrator implements the interface.
var _ driving.QueryService = (*QueryOrchestrator)(nil)

// QueryOrchestrator runs the full question-answering pipeline: intent
// parsing, plan generation, role-bound execution and citation-checked
// aggregation. It always produces an answer; degradation surfaces as
// explicit insufficiency or partial failures, never as a bare error.
type QueryOrchestrator struct {
	intents    *IntentParser
	planner    *PlanGenerator
	executor   *Executor
	aggregator *Aggregator
	tracker    *ProcessTracker
	settings   domain.PlannerSettings
}

// NewQueryOrchestrator creates the query service.
func NewQueryOrchestrator(
	intents *IntentParser,
	planner *PlanGenerator,
	executor *Executor,
	aggregator *Aggregator,
	tracker *ProcessTracker,
	settings domain.PlannerSettings,
) *QueryOrchestrator {
	return &QueryOrchestrator{
		intents:    intents,
		planner:    planner,
		executor:   executor,
		aggregator: aggregator,
		tracker:    tracker,
		settings:   settings,
	}
}

// Ask answers a free-text question about the ingested documents.
func (q *QueryOrchestrator) Ask(ctx context.Context, query string, opts domain.AskOptions) (*domain.FinalAnswer, error) {
	proc, err := q.tracker.Begin(ctx, domain.ProcessKindQuery, map[string]any{
		"query":   query,
		"session": opts.SessionID,
	})
	if err != nil {
		return nil, err
	}
	if err := q.tracker.Transition(ctx, proc.ID, domain.ProcessRunning, "parsing intent"); err != nil {
		return nil, err
	}

	// The plan timeout is the wall clock budget for the whole run;
	// hitting it yields a partial answer, not a failure.
	runCtx, cancel := context.WithTimeout(ctx, q.settings.PlanTimeout)
	defer cancel()

	logger.Section("Query: %s", query)

	intent := q.intents.Parse(runCtx, query)
	logger.Debug("Intent: %s (%.2f, %s), entities=%v", intent.Intent, intent.Confidence, intent.Method, intent.Entities)

	plan, err := q.planner.Generate(runCtx, query, intent, opts)
	if err != nil {
		q.finish(proc.ID, runCtx, err)
		return nil, err
	}
	_ = q.tracker.Progress(runCtx, proc.ID, 20, fmt.Sprintf("plan ready: %d steps (%s)", len(plan.Steps), plan.Source))

	results := q.executor.Execute(runCtx, plan, proc.ID)
	_ = q.tracker.Progress(runCtx, proc.ID, 70, "steps executed")

	answer, ungrounded := q.aggregator.Aggregate(runCtx, query, results)

	// One forced retrieval pass: steps that made claims without any
	// retrieved evidence are re-run with a retrieval call in front.
	if ungrounded && runCtx.Err() == nil && !q.tracker.Cancelled(proc.ID) {
		logger.Debug("Ungrounded claims detected, forcing retrieval re-execution")
		rerun := false
		for i, r := range results {
			if r.Err == nil && len(r.Retrieved) == 0 && !r.Reexecuted {
				if redo := q.executor.ReexecuteStep(runCtx, plan, r.StepID, results, proc.ID); redo != nil {
					results[i] = *redo
					rerun = true
				}
			}
		}
		if rerun {
			_ = q.tracker.Progress(runCtx, proc.ID, 90, "re-executed with forced retrieval")
			answer, _ = q.aggregator.Aggregate(runCtx, query, results)
		}
	}

	answer.ProcessID = proc.ID
	q.finish(proc.ID, runCtx, nil)
	return answer, nil
}

// finish records the terminal process state, using a detached context
// so a blown deadline still gets logged as such.
func (q *QueryOrchestrator) finish(procID string, runCtx context.Context, cause error) {
	ctx := context.Background()
	var err error
	switch {
	case q.tracker.Cancelled(procID):
		err = q.tracker.Transition(ctx, procID, domain.ProcessCancelled, "cancelled")
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		err = q.tracker.Transition(ctx, procID, domain.ProcessTimeout, "plan timeout, partial answer returned")
	case cause != nil:
		err = q.tracker.Transition(ctx, procID, domain.ProcessFailed, cause.Error())
	default:
		err = q.tracker.Transition(ctx, procID, domain.ProcessCompleted, "answer ready")
	}
	if err != nil {
		logger.Warn("Failed to finalise process %s: %v", procID, err)
	}
}
