package domain

import "time"

// Complexity classifies a plan by its expected cost.
type Complexity string

// Plan complexity classes.
const (
	// ComplexitySimple is a single cheap step.
	ComplexitySimple Complexity = "simple"

	// ComplexityMedium is a small multi-step plan.
	ComplexityMedium Complexity = "medium"

	// ComplexityComplex exceeds the step or time threshold.
	ComplexityComplex Complexity = "complex"
)

// PlanStep is one unit of work in a Plan, bound to a role.
type PlanStep struct {
	// ID identifies the step within its plan ("step-1", "step-2", ...).
	ID string

	// Role is the role identifier that executes this step.
	Role string

	// Task is the natural-language task description.
	Task string

	// Tools are the tool names this step may invoke.
	// Every name must be on the role's whitelist.
	Tools []string

	// DependsOn lists step IDs whose output this step needs.
	// Steps with no unmet dependencies may run concurrently.
	DependsOn []string

	// EstimatedTime is the planner's cost estimate for the step.
	EstimatedTime time.Duration
}

// Plan is the structured execution recipe for one query.
type Plan struct {
	// ID is the unique identifier for the plan.
	ID string

	// Query is the original free-text query.
	Query string

	// Intent is the detected intent label the plan was generated for.
	Intent string

	// Steps is the ordered list of plan steps.
	Steps []PlanStep

	// Complexity is derived from step count and estimated duration.
	Complexity Complexity

	// FastPath is set when the plan is a single simple step; the
	// executor then skips multi-role aggregation.
	FastPath bool

	// Expanded records that the one permitted automatic expansion
	// pass has already run. Expansion never recurses.
	Expanded bool

	// Source records how the plan was produced ("llm", "llm-repaired",
	// or "fallback").
	Source string

	// CreatedAt is when the plan was generated.
	CreatedAt time.Time
}

// EstimatedTotal returns the summed step time estimates.
func (p Plan) EstimatedTotal() time.Duration {
	var total time.Duration
	for _, s := range p.Steps {
		total += s.EstimatedTime
	}
	return total
}

// Classify derives the complexity class from the plan shape.
// A plan is complex when it exceeds either threshold, simple when it
// is a single step under the time threshold, medium otherwise.
func (p Plan) Classify(maxSteps int, maxTotal time.Duration) Complexity {
	if len(p.Steps) > maxSteps || p.EstimatedTotal() > maxTotal {
		return ComplexityComplex
	}
	if len(p.Steps) == 1 {
		return ComplexitySimple
	}
	return ComplexityMedium
}

// StepResult holds the output of one executed plan step.
type StepResult struct {
	// StepID links back to the PlanStep.
	StepID string

	// Role is the role that produced the output.
	Role string

	// Output is the step's textual result.
	Output string

	// Invocations are the tool calls made during the step.
	Invocations []ToolInvocation

	// Retrieved are the chunks fetched by retrieval tools in this
	// step; citation markers must resolve into this set.
	Retrieved []RetrievalResult

	// Err records a step-level failure. A failed step surfaces as a
	// partial failure without aborting the whole plan.
	Err error

	// Reexecuted is set when the step was re-run once with a forced
	// retrieval call after a grounding rejection.
	Reexecuted bool
}
