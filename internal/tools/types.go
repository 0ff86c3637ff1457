// Package tools provides the governed tool registry.
//
// Every operation a role may perform against the outside world is a
// named, typed, registered tool. The role executor looks tools up by
// name, validates parameters against the tool's schema, and receives a
// standardised domain.ToolEnvelope back. Externally-supplied tools
// (document generators, estimators) plug in through the same contract.
package tools

import (
	"context"
	"fmt"

	"github.com/bldr-labs/bldr/internal/core/domain"
)

// Property describes a single parameter for schema validation and for
// LLM tool prompting.
type Property struct {
	// Type is the JSON type name ("string", "number", "integer",
	// "boolean", "array").
	Type string `json:"type"`

	// Description explains the parameter to models and humans.
	Description string `json:"description"`

	// Default is used when an optional parameter is omitted.
	Default any `json:"default,omitempty"`

	// Enum restricts string parameters to the listed values.
	Enum []any `json:"enum,omitempty"`
}

// Schema defines the expected arguments of a tool.
type Schema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// Validate checks params against the schema. Missing required
// parameters or type mismatches return domain.ErrInvalidInput; the
// executor maps that to a validation envelope, which is never retried.
func (s Schema) Validate(params map[string]any) error {
	for _, name := range s.Required {
		if _, ok := params[name]; !ok {
			return fmt.Errorf("%w: missing required parameter %q", domain.ErrInvalidInput, name)
		}
	}
	for name, val := range params {
		prop, ok := s.Properties[name]
		if !ok {
			return fmt.Errorf("%w: unknown parameter %q", domain.ErrInvalidInput, name)
		}
		if err := checkType(name, prop.Type, val); err != nil {
			return err
		}
	}
	return nil
}

func checkType(name, want string, val any) error {
	ok := true
	switch want {
	case "string":
		_, ok = val.(string)
	case "boolean":
		_, ok = val.(bool)
	case "integer":
		switch val.(type) {
		case int, int64, float64: // JSON numbers decode as float64
		default:
			ok = false
		}
	case "number":
		switch val.(type) {
		case int, int64, float64:
		default:
			ok = false
		}
	case "array":
		switch val.(type) {
		case []any, []string:
		default:
			ok = false
		}
	}
	if !ok {
		return fmt.Errorf("%w: parameter %q must be %s", domain.ErrInvalidInput, name, want)
	}
	return nil
}

// ExecuteFunc is the signature for tool execution. Errors outside the
// envelope indicate infrastructure failure; expected failures are
// expressed as error envelopes with a category.
type ExecuteFunc func(ctx context.Context, params map[string]any) (domain.ToolEnvelope, error)

// Tool is a registered operation available to roles.
type Tool struct {
	// Name is the unique identifier, matched against role whitelists.
	Name string

	// Description explains what the tool does.
	Description string

	// Schema defines the expected parameters.
	Schema Schema

	// Execute runs the tool.
	Execute ExecuteFunc

	// Retrieval marks tools whose envelopes carry retrieved chunks.
	// The aggregator uses this to verify grounding.
	Retrieval bool
}

// Validate checks that the tool definition is usable.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: tool name empty", domain.ErrInvalidInput)
	}
	if t.Execute == nil {
		return fmt.Errorf("%w: tool %q has no executor", domain.ErrInvalidInput, t.Name)
	}
	return nil
}
