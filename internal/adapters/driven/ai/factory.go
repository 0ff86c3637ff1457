// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	ollamaembed "github.com/bldr-labs/bldr/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/bldr-labs/bldr/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/bldr-labs/bldr/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/bldr-labs/bldr/internal/adapters/driven/llm/ollama"
	openaillm "github.com/bldr-labs/bldr/internal/adapters/driven/llm/openai"
	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Ensure CompletionFactory implements the interface.
var _ driven.CompletionFactory = (*CompletionFactory)(nil)

// CompletionFactory creates completion clients from role model profiles.
// Clients are cached per endpoint so roles sharing a profile share one
// HTTP client. The factory owns the clients; callers must not Close them.
type CompletionFactory struct {
	mu      sync.Mutex
	clients map[string]driven.CompletionService
}

// NewCompletionFactory creates an empty factory.
func NewCompletionFactory() *CompletionFactory {
	return &CompletionFactory{
		clients: make(map[string]driven.CompletionService),
	}
}

// ForProfile returns a completion client for the given profile, creating
// it on first use.
func (f *CompletionFactory) ForProfile(profile domain.ModelProfile) (driven.CompletionService, error) {
	key := profileKey(profile)

	f.mu.Lock()
	defer f.mu.Unlock()

	if svc, ok := f.clients[key]; ok {
		return svc, nil
	}

	svc, err := createCompletionService(profile)
	if err != nil {
		return nil, err
	}

	f.clients[key] = svc
	return svc, nil
}

// Close releases all cached clients.
func (f *CompletionFactory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for key, svc := range f.clients {
		svc.Close()
		delete(f.clients, key)
	}
}

// profileKey identifies the endpoint a profile resolves to. Temperature
// and token budget are per-call parameters and do not affect the client.
func profileKey(profile domain.ModelProfile) string {
	return fmt.Sprintf("%s|%s|%s|%s", profile.Provider, profile.BaseURL, profile.Model, profile.APIKey)
}

// createCompletionService creates the appropriate completion service for
// the profile's provider.
func createCompletionService(profile domain.ModelProfile) (driven.CompletionService, error) {
	switch profile.Provider {
	case domain.AIProviderOllama:
		return ollamallm.New(profile), nil

	case domain.AIProviderOpenAI:
		return openaillm.New(profile)

	case domain.AIProviderAnthropic:
		return anthropicllm.New(profile)

	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", profile.Provider)
	}
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Check the [embedding] section of the config",
			domain.ErrEmbeddingUnavailable, err)
	}

	if svc == nil {
		return nil, nil
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Check the [embedding] section of the config",
			domain.ErrEmbeddingUnavailable, err)
	}

	return svc, nil
}

// ValidateCompletionProfile validates a model profile by creating a
// client and pinging it. Intended for startup checks before role
// assignment, so a misconfigured role fails fast rather than mid-plan.
func ValidateCompletionProfile(profile domain.ModelProfile) error {
	svc, err := createCompletionService(profile)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderAnthropic:
		// Anthropic does not support embeddings.
		return nil, fmt.Errorf("anthropic does not support embeddings, use ollama or openai")

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}
