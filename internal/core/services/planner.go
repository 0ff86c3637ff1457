package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
	"github.com/bldr-labs/bldr/internal/logger"
	"github.com/bldr-labs/bldr/internal/tools"
)

// ToolCatalog is the subset of the tool registry the planner needs to
// validate plans against.
type ToolCatalog interface {
	Has(name string) bool
	Names() []string
}

// PlanGenerator turns a query plus parsed intent into an execution
// plan. The LLM proposes; schema validation disposes: an invalid plan
// gets one repair attempt, then the deterministic fallback takes over.
// A plan is always produced.
type PlanGenerator struct {
	llm      driven.CompletionService
	roles    map[string]domain.Role
	catalog  ToolCatalog
	settings domain.PlannerSettings
}

// NewPlanGenerator creates the plan generator. The llm is optional;
// without it every plan comes from the deterministic fallback.
func NewPlanGenerator(
	llm driven.CompletionService,
	roles []domain.Role,
	catalog ToolCatalog,
	settings domain.PlannerSettings,
) *PlanGenerator {
	byID := make(map[string]domain.Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}
	return &PlanGenerator{
		llm:      llm,
		roles:    byID,
		catalog:  catalog,
		settings: settings,
	}
}

// planJSON is the wire schema the model must produce.
type planJSON struct {
	Steps []stepJSON `json:"steps"`
}

type stepJSON struct {
	ID               string   `json:"id"`
	Role             string   `json:"role"`
	Task             string   `json:"task"`
	Tools            []string `json:"tools"`
	DependsOn        []string `json:"depends_on"`
	EstimatedSeconds int      `json:"estimated_seconds"`
}

// Generate produces a validated plan for the query.
func (g *PlanGenerator) Generate(ctx context.Context, query string, intent domain.ParsedIntent, opts domain.AskOptions) (*domain.Plan, error) {
	plan := g.generateLLM(ctx, query, intent)
	if plan == nil {
		plan = g.fallbackPlan(query, intent, opts)
	}

	plan.Complexity = plan.Classify(g.settings.MaxSteps, g.settings.MaxEstimated)

	// A complex plan gets one expansion pass: the model is asked once
	// to restructure within budget. Never recurses.
	if plan.Complexity == domain.ComplexityComplex && g.llm != nil && !plan.Expanded {
		if reduced := g.expand(ctx, query, intent, plan); reduced != nil {
			plan = reduced
			plan.Expanded = true
			plan.Complexity = plan.Classify(g.settings.MaxSteps, g.settings.MaxEstimated)
		}
	}

	// Still over budget: clamp rather than fail, the executor's plan
	// timeout is the real backstop.
	if len(plan.Steps) > g.settings.MaxSteps {
		plan.Steps = clampSteps(plan.Steps, g.settings.MaxSteps)
		plan.Complexity = plan.Classify(g.settings.MaxSteps, g.settings.MaxEstimated)
	}

	plan.Intent = intent.Intent
	plan.FastPath = len(plan.Steps) == 1 && plan.Complexity == domain.ComplexitySimple
	logger.Debug("Plan %s: %d steps, %s, source=%s, fastpath=%v",
		plan.ID, len(plan.Steps), plan.Complexity, plan.Source, plan.FastPath)
	return plan, nil
}

// generateLLM asks the model for a plan, giving one repair attempt on
// schema or validation failure. Returns nil when the model cannot help.
func (g *PlanGenerator) generateLLM(ctx context.Context, query string, intent domain.ParsedIntent) *domain.Plan {
	if g.llm == nil {
		return nil
	}

	prompt := g.planPrompt(query, intent)
	raw, err := g.llm.Generate(ctx, prompt, driven.GenerateOptions{Temperature: 0, MaxTokens: 1024})
	if err != nil {
		logger.Warn("Plan generation failed: %v", err)
		return nil
	}

	plan, validationErr := g.parseAndValidate(raw, query)
	if validationErr == nil {
		plan.Source = "llm"
		return plan
	}
	logger.Debug("Plan rejected (%v), attempting repair", validationErr)

	repairPrompt := fmt.Sprintf("%s\n\nYour previous plan was rejected: %v\nPrevious output:\n%s\n\nReturn a corrected plan as JSON only.",
		prompt, validationErr, raw)
	raw, err = g.llm.Generate(ctx, repairPrompt, driven.GenerateOptions{Temperature: 0, MaxTokens: 1024})
	if err != nil {
		logger.Warn("Plan repair failed: %v", err)
		return nil
	}

	plan, validationErr = g.parseAndValidate(raw, query)
	if validationErr != nil {
		logger.Warn("Repaired plan still invalid: %v", validationErr)
		return nil
	}
	plan.Source = "llm-repaired"
	return plan
}

func (g *PlanGenerator) planPrompt(query string, intent domain.ParsedIntent) string {
	var b strings.Builder
	b.WriteString("Decompose the query into an execution plan for a construction document QA system.\n\n")
	b.WriteString("Roles:\n")

	roleIDs := make([]string, 0, len(g.roles))
	for id := range g.roles {
		roleIDs = append(roleIDs, id)
	}
	sort.Strings(roleIDs)
	for _, id := range roleIDs {
		role := g.roles[id]
		fmt.Fprintf(&b, "- %s: %s Tools: %s\n", role.ID, role.Responsibilities, strings.Join(role.ToolWhitelist, ", "))
	}

	fmt.Fprintf(&b, "\nAvailable tools: %s\n", strings.Join(g.catalog.Names(), ", "))
	fmt.Fprintf(&b, "Detected intent: %s (confidence %.2f)", intent.Intent, intent.Confidence)
	if len(intent.Entities) > 0 {
		fmt.Fprintf(&b, ", entities: %s", strings.Join(intent.Entities, "; "))
	}
	fmt.Fprintf(&b, "\nQuery: %s\n\n", query)
	fmt.Fprintf(&b, `Respond with JSON only, no prose:
{"steps":[{"id":"step-1","role":"<role id>","task":"<what to do>","tools":["<tool>"],"depends_on":[],"estimated_seconds":30}]}
Rules: at most %d steps, each step's tools must be on its role's whitelist, depends_on may only reference earlier step ids.`,
		g.settings.MaxSteps)
	return b.String()
}

// parseAndValidate decodes the model output and checks every schema
// invariant. Any violation is returned for the repair prompt.
func (g *PlanGenerator) parseAndValidate(raw, query string) (*domain.Plan, error) {
	jsonText := extractJSON(raw)
	if jsonText == "" {
		return nil, fmt.Errorf("%w: no JSON object in output", domain.ErrPlanInvalid)
	}

	var pj planJSON
	if err := json.Unmarshal([]byte(jsonText), &pj); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPlanInvalid, err)
	}
	if len(pj.Steps) == 0 {
		return nil, fmt.Errorf("%w: plan has no steps", domain.ErrPlanInvalid)
	}

	plan := &domain.Plan{
		ID:        uuid.New().String(),
		Query:     query,
		CreatedAt: time.Now(),
	}

	seen := make(map[string]bool, len(pj.Steps))
	for i, sj := range pj.Steps {
		if sj.ID == "" {
			sj.ID = fmt.Sprintf("step-%d", i+1)
		}
		if seen[sj.ID] {
			return nil, fmt.Errorf("%w: duplicate step id %q", domain.ErrPlanInvalid, sj.ID)
		}

		role, ok := g.roles[sj.Role]
		if !ok {
			return nil, fmt.Errorf("%w: unknown role %q in step %q", domain.ErrPlanInvalid, sj.Role, sj.ID)
		}
		if sj.Task == "" {
			return nil, fmt.Errorf("%w: step %q has no task", domain.ErrPlanInvalid, sj.ID)
		}

		for _, tool := range sj.Tools {
			if !g.catalog.Has(tool) {
				return nil, fmt.Errorf("%w: unknown tool %q in step %q", domain.ErrPlanInvalid, tool, sj.ID)
			}
			if !role.CanUse(tool) {
				return nil, fmt.Errorf("%w: tool %q not on whitelist of role %q", domain.ErrPlanInvalid, tool, sj.Role)
			}
		}

		for _, dep := range sj.DependsOn {
			if !seen[dep] {
				return nil, fmt.Errorf("%w: step %q depends on %q which is not an earlier step", domain.ErrPlanInvalid, sj.ID, dep)
			}
		}

		estimated := time.Duration(sj.EstimatedSeconds) * time.Second
		if estimated <= 0 {
			estimated = 30 * time.Second
		}

		plan.Steps = append(plan.Steps, domain.PlanStep{
			ID:            sj.ID,
			Role:          sj.Role,
			Task:          sj.Task,
			Tools:         sj.Tools,
			DependsOn:     sj.DependsOn,
			EstimatedTime: estimated,
		})
		seen[sj.ID] = true
	}

	return plan, nil
}

// expand asks the model once to restructure an over-budget plan.
func (g *PlanGenerator) expand(ctx context.Context, query string, intent domain.ParsedIntent, plan *domain.Plan) *domain.Plan {
	prompt := g.planPrompt(query, intent) + fmt.Sprintf(
		"\n\nThe previous plan had %d steps totalling %s, which exceeds the budget of %d steps / %s. Merge or drop steps to fit.",
		len(plan.Steps), plan.EstimatedTotal(), g.settings.MaxSteps, g.settings.MaxEstimated)

	raw, err := g.llm.Generate(ctx, prompt, driven.GenerateOptions{Temperature: 0, MaxTokens: 1024})
	if err != nil {
		logger.Warn("Plan expansion pass failed: %v", err)
		return nil
	}

	reduced, validationErr := g.parseAndValidate(raw, query)
	if validationErr != nil {
		logger.Warn("Expansion pass produced invalid plan: %v", validationErr)
		return nil
	}
	reduced.Source = plan.Source
	return reduced
}

// fallbackPlan is the deterministic single-step plan keyed on intent.
// It is the floor under every LLM failure mode.
func (g *PlanGenerator) fallbackPlan(query string, intent domain.ParsedIntent, opts domain.AskOptions) *domain.Plan {
	roleID := domain.RoleCoordinator
	stepTools := []string{tools.NameRetrievalSearch}

	switch intent.Intent {
	case domain.IntentNormCheck:
		roleID = domain.RoleChiefEngineer
	case domain.IntentEstimate:
		roleID = domain.RoleAnalyst
		stepTools = append(stepTools, tools.NameEstimateCalc)
	case domain.IntentSchedule:
		roleID = domain.RoleProjectManager
		stepTools = append(stepTools, tools.NameScheduleSummary)
	}

	// RoleHint is advisory: honoured only when it names a known role.
	if opts.RoleHint != "" {
		if _, ok := g.roles[opts.RoleHint]; ok {
			roleID = opts.RoleHint
		}
	}

	// Only keep tools the chosen role may actually use.
	role := g.roles[roleID]
	allowed := stepTools[:0]
	for _, tool := range stepTools {
		if g.catalog.Has(tool) && role.CanUse(tool) {
			allowed = append(allowed, tool)
		}
	}

	return &domain.Plan{
		ID:    uuid.New().String(),
		Query: query,
		Steps: []domain.PlanStep{{
			ID:            "step-1",
			Role:          roleID,
			Task:          query,
			Tools:         allowed,
			EstimatedTime: 30 * time.Second,
		}},
		Source:    "fallback",
		CreatedAt: time.Now(),
	}
}

// clampSteps keeps the first n steps, dropping any dependency edges
// that point past the cut.
func clampSteps(steps []domain.PlanStep, n int) []domain.PlanStep {
	kept := steps[:n]
	ids := make(map[string]bool, n)
	for _, s := range kept {
		ids[s.ID] = true
	}
	for i := range kept {
		deps := kept[i].DependsOn[:0]
		for _, d := range kept[i].DependsOn {
			if ids[d] {
				deps = append(deps, d)
			}
		}
		kept[i].DependsOn = deps
	}
	return kept
}

// extractJSON pulls the first JSON object out of model output that may
// be wrapped in code fences or prose.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, "```"); idx >= 0 {
		rest := raw[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			raw = rest[:end]
		} else {
			raw = rest
		}
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
