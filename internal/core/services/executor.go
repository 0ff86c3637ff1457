package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
	"github.com/bldr-labs/bldr/internal/logger"
	"github.com/bldr-labs/bldr/internal/tools"
)

// retryBaseDelay is the first backoff interval for transient tool
// failures; it doubles per attempt.
const retryBaseDelay = 500 * time.Millisecond

// Executor runs plan steps through their bound roles. Independent
// steps run concurrently under a bounded group; results are assembled
// in declared plan order regardless of completion order.
type Executor struct {
	registry *tools.Registry
	factory  driven.CompletionFactory
	roles    map[string]domain.Role
	tracker  *ProcessTracker
	settings domain.PlannerSettings
}

// NewExecutor creates the plan executor. The completion factory is
// optional; without it step outputs are raw tool payloads.
func NewExecutor(
	registry *tools.Registry,
	factory driven.CompletionFactory,
	roles []domain.Role,
	tracker *ProcessTracker,
	settings domain.PlannerSettings,
) *Executor {
	byID := make(map[string]domain.Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}
	return &Executor{
		registry: registry,
		factory:  factory,
		roles:    byID,
		tracker:  tracker,
		settings: settings,
	}
}

// Execute runs all plan steps, waves of dependency-free steps at a
// time. A failed step is recorded as a partial failure; steps that
// depend on it are skipped with an error result.
func (e *Executor) Execute(ctx context.Context, plan *domain.Plan, procID string) []domain.StepResult {
	done := make(map[string]*domain.StepResult, len(plan.Steps))
	var mu sync.Mutex

	remaining := make([]domain.PlanStep, len(plan.Steps))
	copy(remaining, plan.Steps)

	for len(remaining) > 0 {
		wave, rest := nextWave(remaining, done)
		if len(wave) == 0 {
			// Unsatisfiable dependencies; validation should prevent
			// this, but a failed dependency lands here too.
			for _, step := range rest {
				mu.Lock()
				done[step.ID] = &domain.StepResult{
					StepID: step.ID,
					Role:   step.Role,
					Err:    fmt.Errorf("dependency failed or missing"),
				}
				mu.Unlock()
			}
			break
		}
		remaining = rest

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(e.settings.StepConcurrency)
		for _, step := range wave {
			step := step
			group.Go(func() error {
				result := e.executeStep(groupCtx, plan, step, done, &mu, procID, false)
				mu.Lock()
				done[step.ID] = result
				mu.Unlock()
				return nil // step failures are partial, never abort the wave
			})
		}
		_ = group.Wait()

		if ctx.Err() != nil || (procID != "" && e.tracker != nil && e.tracker.Cancelled(procID)) {
			break
		}
	}

	// Assemble in declared order.
	results := make([]domain.StepResult, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		if r, ok := done[step.ID]; ok {
			results = append(results, *r)
		} else {
			results = append(results, domain.StepResult{
				StepID: step.ID,
				Role:   step.Role,
				Err:    domain.ErrProcessCancelled,
			})
		}
	}
	return results
}

// ReexecuteStep re-runs one step with a forced retrieval call in
// front. Used once per step when the aggregator rejects ungrounded
// claims.
func (e *Executor) ReexecuteStep(ctx context.Context, plan *domain.Plan, stepID string, prior []domain.StepResult, procID string) *domain.StepResult {
	var step *domain.PlanStep
	for i := range plan.Steps {
		if plan.Steps[i].ID == stepID {
			step = &plan.Steps[i]
			break
		}
	}
	if step == nil {
		return nil
	}

	done := make(map[string]*domain.StepResult, len(prior))
	for i := range prior {
		done[prior[i].StepID] = &prior[i]
	}
	var mu sync.Mutex

	result := e.executeStep(ctx, plan, *step, done, &mu, procID, true)
	result.Reexecuted = true
	return result
}

// nextWave splits off the steps whose dependencies are all done.
func nextWave(steps []domain.PlanStep, done map[string]*domain.StepResult) (wave, rest []domain.PlanStep) {
	for _, step := range steps {
		ready := true
		for _, dep := range step.DependsOn {
			if _, ok := done[dep]; !ok {
				ready = false
				break
			}
		}
		if ready {
			wave = append(wave, step)
		} else {
			rest = append(rest, step)
		}
	}
	return wave, rest
}

// executeStep runs one step: capability-checked tool calls, then a
// role-bound model composition over the tool outputs.
func (e *Executor) executeStep(
	ctx context.Context,
	plan *domain.Plan,
	step domain.PlanStep,
	done map[string]*domain.StepResult,
	mu *sync.Mutex,
	procID string,
	forceRetrieval bool,
) *domain.StepResult {
	result := &domain.StepResult{StepID: step.ID, Role: step.Role}

	role, ok := e.roles[step.Role]
	if !ok {
		result.Err = fmt.Errorf("%w: %s", domain.ErrRoleUnknown, step.Role)
		return result
	}

	logger.Debug("Executing step %s (role %s, %d tools)", step.ID, step.Role, len(step.Tools))

	stepTools := step.Tools
	if forceRetrieval && !containsString(stepTools, tools.NameRetrievalSearch) {
		stepTools = append([]string{tools.NameRetrievalSearch}, stepTools...)
	}

	for _, toolName := range stepTools {
		if procID != "" && e.tracker != nil && e.tracker.Cancelled(procID) {
			result.Err = domain.ErrProcessCancelled
			return result
		}

		// Capability check happens at call time even though the plan
		// was validated: executor and validator must agree, and forced
		// retrieval bypasses planning.
		if !role.CanUse(toolName) {
			result.Err = fmt.Errorf("%w: role %s may not use %s", domain.ErrToolNotPermitted, step.Role, toolName)
			return result
		}

		invocation := e.invokeTool(ctx, toolName, e.paramsFor(toolName, step, plan), procID)
		result.Invocations = append(result.Invocations, invocation)
		if len(invocation.Result.Retrieved) > 0 {
			result.Retrieved = append(result.Retrieved, invocation.Result.Retrieved...)
		}
	}

	output, err := e.composeOutput(ctx, role, step, result, done, mu)
	if err != nil {
		result.Err = err
		return result
	}
	result.Output = output
	return result
}

// paramsFor derives tool parameters from the step. Retrieval-style
// tools take the task text as query; other tools read their parameters
// from the task's entity annotations and fail validation loudly when
// something required is missing, which is the correct surface for the
// caller to see.
func (e *Executor) paramsFor(toolName string, step domain.PlanStep, plan *domain.Plan) map[string]any {
	params := map[string]any{}

	tool, err := e.registry.Get(toolName)
	if err != nil {
		return params
	}

	if _, ok := tool.Schema.Properties["query"]; ok {
		query := step.Task
		if query == "" {
			query = plan.Query
		}
		params["query"] = query
	}
	if _, ok := tool.Schema.Properties["doc_type"]; ok {
		if t := intentDocType(plan.Intent); t != "" {
			params["doc_type"] = t
		}
	}
	return params
}

// intentDocType narrows retrieval to the document type implied by the
// detected intent. General questions search the whole index.
func intentDocType(intent string) string {
	switch intent {
	case domain.IntentNormCheck:
		return string(domain.DocTypeNormative)
	case domain.IntentEstimate:
		return string(domain.DocTypeEstimate)
	case domain.IntentSchedule:
		return string(domain.DocTypeSchedule)
	default:
		return ""
	}
}

// invokeTool executes one tool call with a per-call timeout, retrying
// transient failures with exponential backoff. Retry eligibility is a
// property of the envelope category.
func (e *Executor) invokeTool(ctx context.Context, name string, params map[string]any, procID string) domain.ToolInvocation {
	invocation := domain.ToolInvocation{
		ID:        uuid.New().String(),
		Tool:      name,
		Params:    params,
		Status:    domain.InvocationPending,
		StartedAt: time.Now(),
	}

	tool, err := e.registry.Get(name)
	if err != nil {
		invocation.Status = domain.InvocationError
		invocation.Result = domain.Fail(domain.CategoryValidation, err.Error())
		return invocation
	}

	// Schema violations are caller errors; the tool never runs and the
	// call is never retried.
	if err := tool.Schema.Validate(params); err != nil {
		invocation.Status = domain.InvocationError
		invocation.Result = domain.Fail(domain.CategoryValidation, err.Error())
		return invocation
	}

	delay := retryBaseDelay
	for attempt := 0; ; attempt++ {
		invocation.Attempts = attempt + 1

		callCtx, cancel := context.WithTimeout(ctx, e.settings.ToolTimeout)
		started := time.Now()
		envelope, err := tool.Execute(callCtx, params)
		cancel()
		envelope.Elapsed = time.Since(started)

		if err != nil {
			category := categoriseError(err)
			envelope = domain.Fail(category, err.Error())
			envelope.Elapsed = time.Since(started)
		}
		invocation.Result = envelope

		if envelope.Status == domain.InvocationSuccess {
			invocation.Status = domain.InvocationSuccess
			return invocation
		}

		invocation.Status = domain.InvocationError
		if !envelope.Category.Retryable() || attempt >= e.settings.ToolRetries {
			return invocation
		}
		if procID != "" && e.tracker != nil && e.tracker.Cancelled(procID) {
			return invocation
		}

		logger.Debug("Tool %s transient failure (attempt %d), retrying in %s", name, attempt+1, delay)
		select {
		case <-ctx.Done():
			return invocation
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// composeOutput produces the step's textual result. With a completion
// factory the role's model synthesises over the tool evidence under
// its injected rules; without one the evidence is returned as-is.
func (e *Executor) composeOutput(
	ctx context.Context,
	role domain.Role,
	step domain.PlanStep,
	result *domain.StepResult,
	done map[string]*domain.StepResult,
	mu *sync.Mutex,
) (string, error) {
	// Each retrieval payload numbers its chunks from [1]; shift them so
	// the step's evidence block numbers its chunks consecutively and a
	// marker resolves to exactly one entry of result.Retrieved.
	var evidence strings.Builder
	base := 0
	for _, inv := range result.Invocations {
		if inv.Status == domain.InvocationSuccess && inv.Result.Payload != "" {
			payload := inv.Result.Payload
			if n := len(inv.Result.Retrieved); n > 0 && base > 0 {
				payload = shiftMarkers(payload, base, n)
			}
			fmt.Fprintf(&evidence, "[%s]\n%s\n\n", inv.Tool, payload)
		}
		base += len(inv.Result.Retrieved)
	}

	mu.Lock()
	var depContext strings.Builder
	for _, dep := range step.DependsOn {
		if r, ok := done[dep]; ok && r.Err == nil && r.Output != "" {
			fmt.Fprintf(&depContext, "Result of %s:\n%s\n\n", dep, r.Output)
		}
	}
	mu.Unlock()

	if e.factory == nil {
		if evidence.Len() == 0 {
			return "", errors.New("no tool evidence and no completion service")
		}
		return strings.TrimSpace(evidence.String()), nil
	}

	llm, err := e.factory.ForProfile(role.Profile)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrLLMUnavailable, err)
	}

	system := role.Responsibilities
	if role.Exclusions != "" {
		system += "\nOut of scope for you: " + role.Exclusions
	}
	if rules := role.RulePrompt(); rules != "" {
		system += "\n\n" + rules
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Task: %s\n\n", step.Task)
	if depContext.Len() > 0 {
		user.WriteString(depContext.String())
	}
	if evidence.Len() > 0 {
		fmt.Fprintf(&user, "Evidence:\n%s", evidence.String())
	} else {
		user.WriteString("No evidence was retrieved. Say so; do not invent sources.\n")
	}

	output, err := llm.Chat(ctx, []driven.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user.String()},
	}, driven.ChatOptions{
		MaxTokens:   role.Profile.MaxTokens,
		Temperature: role.Profile.Temperature,
	})
	if err != nil {
		// Degrade to raw evidence rather than losing the step.
		if evidence.Len() > 0 {
			logger.Warn("Step %s composition failed (%v), returning raw evidence", step.ID, err)
			return strings.TrimSpace(evidence.String()), nil
		}
		return "", fmt.Errorf("compose step output: %w", err)
	}
	return output, nil
}

// shiftMarkers renumbers citation markers [1..n] in a tool payload by
// the count of chunks retrieved by earlier invocations in the same
// step. Numbers outside 1..n are left alone.
func shiftMarkers(payload string, base, n int) string {
	return markerPattern.ReplaceAllStringFunc(payload, func(m string) string {
		k, err := strconv.Atoi(strings.Trim(m, "[]"))
		if err != nil || k < 1 || k > n {
			return m
		}
		return fmt.Sprintf("[%d]", k+base)
	})
}

// categoriseError maps Go errors from tool execution to envelope
// categories.
func categoriseError(err error) domain.ResultCategory {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.CategoryTransient
	case errors.Is(err, domain.ErrInsufficientEvidence):
		return domain.CategoryGrounding
	case errors.Is(err, domain.ErrInvalidInput):
		return domain.CategoryValidation
	default:
		return domain.CategoryFatal
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
