package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
	"github.com/bldr-labs/bldr/internal/core/ports/driving"
)

// Built-in tool names.
const (
	NameRetrievalSearch = "retrieval-search"
	NameEstimateCalc    = "estimate-calc"
	NameScheduleSummary = "schedule-summary"
)

// RegisterBuiltins wires the standard tool set into the registry.
// The search service backs retrieval; the document store backs the
// schedule summary; rates maps region identifiers to base labour rates
// for the estimate calculator.
func RegisterBuiltins(
	r *Registry,
	search driving.SearchService,
	docStore driven.DocumentStore,
	rates map[string]float64,
) {
	r.MustRegister(NewRetrievalSearch(search))
	r.MustRegister(NewEstimateCalc(rates))
	r.MustRegister(NewScheduleSummary(docStore))
}

// NewRetrievalSearch returns the retrieval tool. Its envelope carries
// the retrieved chunks so the aggregator can resolve citations, and an
// empty result set is reported as a grounding-category envelope rather
// than an error.
func NewRetrievalSearch(search driving.SearchService) *Tool {
	return &Tool{
		Name:        NameRetrievalSearch,
		Description: "Search the document knowledge base for passages relevant to a query",
		Retrieval:   true,
		Schema: Schema{
			Required: []string{"query"},
			Properties: map[string]Property{
				"query":    {Type: "string", Description: "the search query"},
				"k":        {Type: "integer", Description: "maximum number of passages (default 8)"},
				"doc_type": {Type: "string", Description: "restrict to one document type (normative, estimate, schedule, contract, generic)"},
			},
		},
		Execute: func(ctx context.Context, params map[string]any) (domain.ToolEnvelope, error) {
			started := time.Now()
			query, _ := params["query"].(string)
			k := intParam(params, "k", 0)

			var types []domain.DocumentType
			if s, _ := params["doc_type"].(string); s != "" {
				docType := domain.DocumentType(s)
				if !docType.IsValid() {
					env := domain.Fail(domain.CategoryValidation,
						fmt.Sprintf("unknown document type %q", s))
					env.Elapsed = time.Since(started)
					return env, nil
				}
				types = append(types, docType)
			}

			results, err := search.Search(ctx, query, k, types...)
			if err != nil {
				if errors.Is(err, domain.ErrInsufficientEvidence) {
					env := domain.Fail(domain.CategoryGrounding, "no passage cleared the evidence threshold")
					env.Elapsed = time.Since(started)
					return env, nil
				}
				return domain.ToolEnvelope{}, err
			}

			env := domain.OK(renderResults(results))
			env.Retrieved = results
			env.Elapsed = time.Since(started)
			return env, nil
		},
	}
}

// NewEstimateCalc returns the estimate calculator. A missing regional
// rate table yields a validation envelope: the aggregator surfaces the
// missing data instead of a fabricated number.
func NewEstimateCalc(rates map[string]float64) *Tool {
	return &Tool{
		Name:        NameEstimateCalc,
		Description: "Calculate a rough cost estimate from a volume and a regional rate table",
		Schema: Schema{
			Required: []string{"region", "volume"},
			Properties: map[string]Property{
				"region": {Type: "string", Description: "regional rate table identifier"},
				"volume": {Type: "number", Description: "work volume in table units"},
				"rate":   {Type: "string", Description: "rate schedule identifier (e.g. a ГЭСН code)"},
			},
		},
		Execute: func(_ context.Context, params map[string]any) (domain.ToolEnvelope, error) {
			started := time.Now()
			region, _ := params["region"].(string)
			volume := floatParam(params, "volume")

			base, ok := rates[region]
			if !ok {
				env := domain.Fail(domain.CategoryValidation,
					fmt.Sprintf("no rate table for region %q", region))
				env.Elapsed = time.Since(started)
				return env, nil
			}

			total := base * volume
			env := domain.OK(fmt.Sprintf("estimate: %.2f (region %s, base rate %.2f, volume %.2f)",
				total, region, base, volume))
			env.Metadata = map[string]any{"region": region, "total": total}
			env.Elapsed = time.Since(started)
			return env, nil
		},
	}
}

// NewScheduleSummary returns the schedule summary tool. It reports the
// indexed schedule documents so roles can reason over them.
func NewScheduleSummary(docStore driven.DocumentStore) *Tool {
	return &Tool{
		Name:        NameScheduleSummary,
		Description: "List indexed schedule documents with their titles",
		Schema: Schema{
			Required:   nil,
			Properties: map[string]Property{},
		},
		Execute: func(ctx context.Context, _ map[string]any) (domain.ToolEnvelope, error) {
			started := time.Now()
			docs, err := docStore.ListDocuments(ctx)
			if err != nil {
				return domain.ToolEnvelope{}, err
			}

			var b strings.Builder
			count := 0
			for i := range docs {
				if docs[i].Type != domain.DocTypeSchedule {
					continue
				}
				fmt.Fprintf(&b, "- %s (%s)\n", docs[i].Title, docs[i].ID)
				count++
			}
			if count == 0 {
				env := domain.Fail(domain.CategoryGrounding, "no schedule documents indexed")
				env.Elapsed = time.Since(started)
				return env, nil
			}

			env := domain.OK(b.String())
			env.Elapsed = time.Since(started)
			return env, nil
		},
	}
}

// renderResults formats retrieval hits as numbered evidence lines; the
// numbering matches the citation markers roles are told to emit.
func renderResults(results []domain.RetrievalResult) string {
	var b strings.Builder
	for i, res := range results {
		ref := res.DocumentTitle
		if clause := res.Chunk.Clause(); clause != "" {
			ref += ", clause " + clause
		}
		fmt.Fprintf(&b, "[%d] (%s, score %.2f) %s\n", i+1, ref, res.Score, res.Chunk.Content)
	}
	return b.String()
}

func intParam(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

func floatParam(params map[string]any, key string) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
