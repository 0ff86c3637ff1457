// Package cli implements the command-line interface.
package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bldr-labs/bldr/internal/adapters/driven/ai"
	"github.com/bldr-labs/bldr/internal/adapters/driven/config/file"
	"github.com/bldr-labs/bldr/internal/adapters/driven/scanner"
	"github.com/bldr-labs/bldr/internal/adapters/driven/storage/sqlite"
	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
	"github.com/bldr-labs/bldr/internal/core/ports/driving"
	"github.com/bldr-labs/bldr/internal/core/services"
	"github.com/bldr-labs/bldr/internal/logger"
	"github.com/bldr-labs/bldr/internal/normalisers"
	"github.com/bldr-labs/bldr/internal/postprocessors"
	"github.com/bldr-labs/bldr/internal/tools"
)

// version is set at build time via ldflags.
var version = "dev"

// verbose enables debug logging.
var verbose bool

// Services wired by initServices and consumed by subcommands.
// Tests swap these for mocks.
var (
	ingestService  driving.IngestService
	searchService  driving.SearchService
	queryService   driving.QueryService
	processService driving.ProcessService

	store   *sqlite.Store
	factory *ai.CompletionFactory
)

var rootCmd = &cobra.Command{
	Use:   "bldr",
	Short: "Construction document assistant",
	Long: `bldr ingests construction documentation (building codes, estimates,
schedules, contracts) into a local knowledge base and answers questions
about it with citations back to the source clauses.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)

		// The version command works without storage or AI services.
		if cmd.Name() == "version" {
			return nil
		}
		return initServices()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		shutdown()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")
}

// Execute runs the CLI with the given build version.
func Execute(buildVersion string) error {
	if buildVersion != "" {
		version = buildVersion
	}
	return rootCmd.Execute()
}

// initServices wires the full service graph. It is idempotent so tests
// and repeated PreRun invocations do not double-open stores.
func initServices() error {
	// Already wired, either by a previous invocation or by tests that
	// install mocks.
	if store != nil || searchService != nil {
		return nil
	}

	cfg, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err = sqlite.NewStore(cfg.GetString("storage.data_dir"))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	docStore := store.DocumentStore()
	vectors := store.VectorIndex()
	embedCache := store.EmbeddingCache()
	tracker := services.NewProcessTracker(store.ProcessStore())

	// Optional embedding service; without it ingestion stores documents
	// unindexed and retrieval reports the index unavailable.
	embedder, err := ai.CreateAndValidateEmbeddingService(embeddingSettings(cfg))
	if err != nil {
		logger.Warn("Embedding service unavailable: %v", err)
		embedder = nil
	}

	factory = ai.NewCompletionFactory()
	llmSettings := completionSettings(cfg)

	ingest := domain.DefaultIngestSettings()
	if v := cfg.GetInt("ingest.chunk_size"); v > 0 {
		ingest.ChunkSize = v
	}
	if v := cfg.GetInt("ingest.chunk_overlap"); v > 0 {
		ingest.ChunkOverlap = v
	}
	if v := cfg.GetInt("ingest.sample_pages"); v > 0 {
		ingest.SamplePages = v
	}

	retrieval := domain.DefaultRetrievalSettings()
	if v := cfg.GetInt("retrieval.top_k"); v > 0 {
		retrieval.TopK = v
	}
	if v := cfg.GetFloat("retrieval.min_score"); v > 0 {
		retrieval.MinScore = v
	}

	planner := domain.DefaultPlannerSettings()
	if v := cfg.GetInt("planner.max_steps"); v > 0 {
		planner.MaxSteps = v
	}
	if v := cfg.GetInt("planner.tool_timeout_seconds"); v > 0 {
		planner.ToolTimeout = time.Duration(v) * time.Second
	}

	var ingestOpts []services.IngestOption
	if rps := cfg.GetFloat("ingest.embed_rate_limit"); rps > 0 {
		ingestOpts = append(ingestOpts, services.WithEmbedRateLimit(rps))
	}
	if n := cfg.GetInt("ingest.embed_batch_size"); n > 0 {
		ingestOpts = append(ingestOpts, services.WithEmbedBatchSize(n))
	}

	ingestService = services.NewIngestOrchestrator(
		scanner.New(),
		normalisers.DefaultRegistry(),
		postprocessors.DefaultPipeline(ingest.ChunkSize, ingest.ChunkOverlap),
		docStore,
		tracker,
		embedder,
		embedCache,
		vectors,
		ingest,
		ingestOpts...,
	)

	retrievalService := services.NewRetrievalService(embedder, embedCache, vectors, docStore, retrieval)
	searchService = retrievalService

	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry, retrievalService, docStore, regionalRates(cfg))

	profile := llmSettings.Profile(
		cfg.GetFloat("llm.temperature"),
		cfg.GetInt("llm.max_tokens"),
	)
	roles := configuredRoles(cfg, profile)

	// The planner and aggregator degrade gracefully when no completion
	// provider is configured: deterministic plans, raw evidence output.
	var plannerLLM driven.CompletionService
	var aggFactory driven.CompletionFactory
	if llmSettings.IsConfigured() {
		plannerLLM, err = factory.ForProfile(profile)
		if err != nil {
			logger.Warn("Completion service unavailable: %v", err)
		}
		aggFactory = factory
	}

	coordinator := roles[0]
	executor := services.NewExecutor(registry, aggFactory, roles, tracker, planner)
	aggregator := services.NewAggregator(aggFactory, coordinator)

	queryService = services.NewQueryOrchestrator(
		services.NewIntentParser(embedder, planner.IntentFloor),
		services.NewPlanGenerator(plannerLLM, roles, registry, planner),
		executor,
		aggregator,
		tracker,
		planner,
	)

	processService = tracker

	return nil
}

// shutdown releases resources opened by initServices.
func shutdown() {
	if factory != nil {
		factory.Close()
		factory = nil
	}
	if store != nil {
		store.Close()
		store = nil
	}
}

// embeddingSettings reads the [embedding] config section.
func embeddingSettings(cfg driven.ConfigStore) *domain.EmbeddingSettings {
	provider := cfg.GetString("embedding.provider")
	if provider == "" {
		// Local Ollama works out of the box without configuration.
		provider = string(domain.AIProviderOllama)
	}
	return &domain.EmbeddingSettings{
		Provider: domain.AIProvider(provider),
		Model:    cfg.GetString("embedding.model"),
		BaseURL:  cfg.GetString("embedding.base_url"),
		APIKey:   cfg.GetString("embedding.api_key"),
	}
}

// completionSettings reads the [llm] config section.
func completionSettings(cfg driven.ConfigStore) domain.LLMSettings {
	provider := cfg.GetString("llm.provider")
	if provider == "" {
		provider = string(domain.AIProviderOllama)
	}
	settings := domain.LLMSettings{
		Provider: domain.AIProvider(provider),
		Model:    cfg.GetString("llm.model"),
		BaseURL:  cfg.GetString("llm.base_url"),
		APIKey:   cfg.GetString("llm.api_key"),
	}
	if v := cfg.GetInt("llm.timeout_seconds"); v > 0 {
		settings.Timeout = time.Duration(v) * time.Second
	}
	return settings
}

// configuredRoles merges [roles.<id>] config sections over the
// built-in role set. A section may narrow the tool whitelist, reword
// the responsibility text or rebind the role to a different model
// endpoint; roles stay read-only once wired.
func configuredRoles(cfg driven.ConfigStore, profile domain.ModelProfile) []domain.Role {
	roles := domain.DefaultRoles(profile)
	for i := range roles {
		key := "roles." + roles[i].ID
		if whitelist := cfg.GetStringSlice(key + ".tools"); len(whitelist) > 0 {
			roles[i].ToolWhitelist = whitelist
		}
		if s := cfg.GetString(key + ".responsibilities"); s != "" {
			roles[i].Responsibilities = s
		}
		if s := cfg.GetString(key + ".exclusions"); s != "" {
			roles[i].Exclusions = s
		}
		if p := domain.AIProvider(cfg.GetString(key + ".provider")); p.IsValid() {
			roles[i].Profile.Provider = p
		}
		if s := cfg.GetString(key + ".model"); s != "" {
			roles[i].Profile.Model = s
		}
		if s := cfg.GetString(key + ".base_url"); s != "" {
			roles[i].Profile.BaseURL = s
		}
		if v := cfg.GetFloat(key + ".temperature"); v > 0 {
			roles[i].Profile.Temperature = v
		}
		if v := cfg.GetInt(key + ".max_tokens"); v > 0 {
			roles[i].Profile.MaxTokens = v
		}
	}
	return roles
}

// defaultRates is the built-in regional labour rate table for the
// estimate calculator. Config entries under [rates] override it.
var defaultRates = map[string]float64{
	"moscow":  1250,
	"spb":     1100,
	"regions": 850,
}

// regionalRates merges config overrides over the built-in rate table.
func regionalRates(cfg driven.ConfigStore) map[string]float64 {
	rates := make(map[string]float64, len(defaultRates))
	for region, rate := range defaultRates {
		rates[region] = rate
	}
	for _, region := range cfg.GetStringSlice("rates.regions") {
		if rate := cfg.GetFloat("rates." + region); rate > 0 {
			rates[region] = rate
		}
	}
	return rates
}

// requireService converts a nil service into a user-facing error.
func requireService(svc any, name string) error {
	if svc == nil {
		return errors.New(name + " service not configured")
	}
	return nil
}
