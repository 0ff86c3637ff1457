package driven

import (
	"context"

	"github.com/bldr-labs/bldr/internal/core/domain"
)

// CompletionService provides language model completions for one model
// profile. The core treats the endpoint as a black box satisfying
// "given prompt, return text, within timeout".
//
// Implementations may include:
//   - OpenAI (GPT-4 class models)
//   - Anthropic (Claude)
//   - Ollama (local models)
type CompletionService interface {
	// Generate produces a text completion from a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Chat conducts a multi-turn conversation.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// CompletionFactory creates completion clients from role model
// profiles. Each role may be bound to a different endpoint.
type CompletionFactory interface {
	// ForProfile returns a completion client for the given profile.
	// Clients are cached per profile; callers must not Close them.
	ForProfile(profile domain.ModelProfile) (CompletionService, error)
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}
