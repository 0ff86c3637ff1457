package postprocessors

import (
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
	"github.com/bldr-labs/bldr/internal/postprocessors/chunker"
	"github.com/bldr-labs/bldr/internal/postprocessors/clause"
)

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("window-chunker", buildWindowChunker)
	r.Register("clause-chunker", buildClauseChunker)
	r.Register("type-selector", buildSelector)
}

// DefaultPipeline builds the standard chunking pipeline: a type
// selector over the clause and window chunkers.
func DefaultPipeline(chunkSize, overlap int) *Pipeline {
	window := chunker.New(chunker.WithChunkSize(chunkSize), chunker.WithOverlap(overlap))
	return NewPipeline(NewSelector(clause.New(), window))
}

// buildWindowChunker creates a window chunker from generic config.
// Supported config keys:
//   - chunk_size (int): Characters per chunk (default: 1000)
//   - overlap (int): Overlapping characters between chunks (default: 200)
func buildWindowChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if cfg != nil {
		if size := getIntFromConfig(cfg, "chunk_size"); size > 0 {
			opts = append(opts, chunker.WithChunkSize(size))
		}
		if overlap := getIntFromConfig(cfg, "overlap"); overlap >= 0 {
			opts = append(opts, chunker.WithOverlap(overlap))
		}
	}

	return chunker.New(opts...), nil
}

// buildClauseChunker creates a clause chunker. It takes no config.
func buildClauseChunker(_ map[string]any) (driven.PostProcessor, error) {
	return clause.New(), nil
}

// buildSelector creates the type selector with both chunkers, passing
// window chunker config through.
func buildSelector(cfg map[string]any) (driven.PostProcessor, error) {
	window, err := buildWindowChunker(cfg)
	if err != nil {
		return nil, err
	}
	return NewSelector(clause.New(), window), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
