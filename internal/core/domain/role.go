package domain

import "time"

// AIProvider identifies an AI service provider for embeddings or completions.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// ModelProfile binds a role to a completion endpoint and its parameters.
// The core treats the endpoint as a black box: given a prompt, it returns
// text within the timeout.
type ModelProfile struct {
	// Provider selects the completion adapter.
	Provider AIProvider

	// BaseURL is the API endpoint (for Ollama and compatible servers).
	BaseURL string

	// Model is the model name to request.
	Model string

	// APIKey authenticates cloud providers.
	APIKey string

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64

	// MaxTokens is the per-call token budget.
	MaxTokens int

	// Timeout bounds each completion call.
	Timeout time.Duration
}

// Role is a static reasoning profile: a model profile, a tool whitelist
// and an injected rule set. Roles are read-only at runtime; reassigning
// a model profile is an administrative operation.
type Role struct {
	// ID is the role identifier ("coordinator", "chief-engineer", ...).
	ID string

	// Profile is the bound model endpoint configuration.
	Profile ModelProfile

	// ToolWhitelist names the tools this role may invoke.
	ToolWhitelist []string

	// Responsibilities describes what the role handles.
	Responsibilities string

	// Exclusions describes what the role must not attempt.
	Exclusions string

	// Rules are mandatory behavioural constraints injected into every
	// model call the executor makes on behalf of this role.
	Rules []string
}

// CanUse reports whether the role's whitelist contains the tool.
// Capability checks are set membership, never inheritance.
func (r Role) CanUse(tool string) bool {
	for _, t := range r.ToolWhitelist {
		if t == tool {
			return true
		}
	}
	return false
}

// RulePrompt renders the role's rules as a prompt preamble.
func (r Role) RulePrompt() string {
	if len(r.Rules) == 0 {
		return ""
	}
	out := "Mandatory rules:"
	for _, rule := range r.Rules {
		out += "\n- " + rule
	}
	return out
}

// Well-known role identifiers.
const (
	RoleCoordinator    = "coordinator"
	RoleChiefEngineer  = "chief-engineer"
	RoleAnalyst        = "analyst"
	RoleProjectManager = "project-manager"
)

// groundingRules are injected into every role by default.
var groundingRules = []string{
	"Cite a source marker [n] for every factual claim.",
	"Consult retrieval before asserting any fact about a document.",
	"If retrieval returns nothing relevant, say so instead of guessing.",
}

// DefaultRoles returns the built-in role set bound to the given profile.
// Callers override profiles per role via configuration.
func DefaultRoles(profile ModelProfile) []Role {
	return []Role{
		{
			ID:               RoleCoordinator,
			Profile:          profile,
			ToolWhitelist:    []string{"retrieval-search"},
			Responsibilities: "Plans query execution and synthesises role outputs into one answer.",
			Exclusions:       "Does not make engineering judgements itself.",
			Rules:            groundingRules,
		},
		{
			ID:               RoleChiefEngineer,
			Profile:          profile,
			ToolWhitelist:    []string{"retrieval-search", "schedule-summary"},
			Responsibilities: "Checks designs and works against normative documents and answers norm questions.",
			Exclusions:       "Does not produce cost estimates.",
			Rules:            groundingRules,
		},
		{
			ID:               RoleAnalyst,
			Profile:          profile,
			ToolWhitelist:    []string{"retrieval-search", "estimate-calc"},
			Responsibilities: "Calculates and verifies estimates against rate schedules.",
			Exclusions:       "Does not interpret normative clauses.",
			Rules:            groundingRules,
		},
		{
			ID:               RoleProjectManager,
			Profile:          profile,
			ToolWhitelist:    []string{"retrieval-search", "schedule-summary"},
			Responsibilities: "Reviews schedules, sequencing and resource questions.",
			Exclusions:       "Does not check normative compliance.",
			Rules:            groundingRules,
		},
	}
}
