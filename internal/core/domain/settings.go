package domain

import "time"

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// BatchSize bounds texts per embedding request.
	BatchSize int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds the default completion provider configuration.
// Per-role model profiles override these.
type LLMSettings struct {
	// Provider is the completion service provider.
	Provider AIProvider

	// Model is the completion model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for cloud providers).
	APIKey string

	// Timeout bounds each completion call.
	Timeout time.Duration
}

// IsConfigured returns true if the completion provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// Profile converts the settings into a ModelProfile with the given
// generation parameters.
func (l LLMSettings) Profile(temperature float64, maxTokens int) ModelProfile {
	return ModelProfile{
		Provider:    l.Provider,
		BaseURL:     l.BaseURL,
		Model:       l.Model,
		APIKey:      l.APIKey,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Timeout:     l.Timeout,
	}
}

// IngestSettings holds ingestion pipeline configuration.
type IngestSettings struct {
	// ChunkSize is the window size in characters for generic chunking.
	ChunkSize int

	// ChunkOverlap is the overlap between consecutive windows.
	ChunkOverlap int

	// MaxFileBytes caps in-memory reads; larger files are read
	// partially in sampled mode and rejected in full mode.
	MaxFileBytes int64

	// SamplePages bounds PDF page extraction in sampled mode.
	SamplePages int
}

// RetrievalSettings holds retrieval configuration.
type RetrievalSettings struct {
	// TopK is the default number of results.
	TopK int

	// MinScore is the evidence threshold; results below it are
	// reported as insufficient evidence.
	MinScore float64
}

// PlannerSettings holds plan generation and execution configuration.
type PlannerSettings struct {
	// MaxSteps is the plan size threshold; larger plans are complex
	// and re-planned at most once.
	MaxSteps int

	// MaxEstimated is the total estimated time threshold.
	MaxEstimated time.Duration

	// StepConcurrency bounds parallel execution of independent steps.
	StepConcurrency int

	// ToolTimeout bounds each tool call.
	ToolTimeout time.Duration

	// PlanTimeout is the per-plan wall-clock budget.
	PlanTimeout time.Duration

	// ToolRetries caps retry attempts for transient tool failures.
	ToolRetries int

	// IntentFloor is the confidence below which the intent parser
	// falls back to the keyword matcher.
	IntentFloor float64
}

// DefaultIngestSettings returns ingestion defaults.
func DefaultIngestSettings() IngestSettings {
	return IngestSettings{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		MaxFileBytes: 16 << 20,
		SamplePages:  20,
	}
}

// DefaultRetrievalSettings returns retrieval defaults.
func DefaultRetrievalSettings() RetrievalSettings {
	return RetrievalSettings{
		TopK:     8,
		MinScore: 0.78,
	}
}

// DefaultPlannerSettings returns planner defaults.
func DefaultPlannerSettings() PlannerSettings {
	return PlannerSettings{
		MaxSteps:        5,
		MaxEstimated:    3 * time.Minute,
		StepConcurrency: 3,
		ToolTimeout:     30 * time.Second,
		PlanTimeout:     5 * time.Minute,
		ToolRetries:     2,
		IntentFloor:     0.55,
	}
}
