package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
	"github.com/bldr-labs/bldr/internal/logger"
)

// markerPattern matches inline citation markers like [1] or [2][3].
var markerPattern = regexp.MustCompile(`\[(\d+)\]`)

// insufficientAnswer is the canned text when no evidence cleared the
// threshold. The system says so rather than improvising.
const insufficientAnswer = "Недостаточно подтверждённых данных в базе документов для ответа на этот вопрос. Загрузите соответствующие документы или уточните формулировку."

// Aggregator merges step results into one citation-checked answer.
// Every factual sentence must carry a marker that resolves into the
// retrieved evidence pool; sentences that cite nothing are removed.
type Aggregator struct {
	factory     driven.CompletionFactory
	coordinator domain.Role
}

// NewAggregator creates the aggregator. The factory is optional; when
// nil, answers are deterministic concatenations of step outputs.
func NewAggregator(factory driven.CompletionFactory, coordinator domain.Role) *Aggregator {
	return &Aggregator{factory: factory, coordinator: coordinator}
}

// Aggregate produces the final answer. The ungrounded return is set
// when step outputs make claims but the evidence pool is empty; the
// caller may then force one retrieval re-execution and aggregate again.
func (a *Aggregator) Aggregate(ctx context.Context, query string, results []domain.StepResult) (*domain.FinalAnswer, bool) {
	pool := buildEvidencePool(results)
	partials := collectPartialFailures(results)

	poolMarker := make(map[string]int, len(pool))
	for _, c := range pool {
		poolMarker[c.ChunkID] = c.Marker
	}

	// Step outputs number their markers locally, starting at [1] per
	// step. Renumber them into pool space before synthesis so a marker
	// always cites the chunk its own step retrieved.
	outputs := make([]string, 0, len(results))
	for _, r := range results {
		if r.Err == nil && r.Output != "" {
			outputs = append(outputs, renumberMarkers(r.Output, r.Retrieved, poolMarker))
		}
	}

	if len(outputs) == 0 || (len(pool) == 0 && allRetrievalFailed(results)) {
		return &domain.FinalAnswer{
			Text:            insufficientAnswer,
			Confidence:      0.1,
			Insufficient:    true,
			PartialFailures: partials,
		}, false
	}

	if len(pool) == 0 {
		// Claims without any evidence behind them. Signal the caller
		// to force retrieval before accepting this.
		return &domain.FinalAnswer{
			Text:            insufficientAnswer,
			Confidence:      0.1,
			Insufficient:    true,
			PartialFailures: partials,
		}, true
	}

	text := a.synthesise(ctx, query, outputs, pool)
	text, citations, coverage := enforceCitations(text, pool)

	if strings.TrimSpace(text) == "" {
		// Every sentence was stripped; nothing survived grounding.
		return &domain.FinalAnswer{
			Text:            insufficientAnswer,
			Confidence:      0.1,
			Insufficient:    true,
			PartialFailures: partials,
		}, true
	}

	return &domain.FinalAnswer{
		Text:            text,
		Confidence:      confidence(coverage, citations),
		Citations:       citations,
		PartialFailures: partials,
	}, false
}

// synthesise produces the answer text. The coordinator model writes it
// with mandatory citation markers; without a model the step outputs
// are joined as-is (they already embed evidence markers).
func (a *Aggregator) synthesise(ctx context.Context, query string, outputs []string, pool []domain.Citation) string {
	fallback := strings.Join(outputs, "\n\n")
	if a.factory == nil {
		return fallback
	}

	llm, err := a.factory.ForProfile(a.coordinator.Profile)
	if err != nil {
		logger.Warn("Coordinator model unavailable (%v), using deterministic aggregation", err)
		return fallback
	}

	var evidence strings.Builder
	for _, c := range pool {
		fmt.Fprintf(&evidence, "[%d] %s", c.Marker, c.Document)
		if c.Clause != "" {
			fmt.Fprintf(&evidence, ", пункт %s", c.Clause)
		}
		fmt.Fprintf(&evidence, " (score %.2f)\n", c.Score)
	}

	system := a.coordinator.Responsibilities
	if rules := a.coordinator.RulePrompt(); rules != "" {
		system += "\n\n" + rules
	}
	system += "\nEvery factual sentence must end with a citation marker like [1] referencing the evidence list. Sentences without markers will be removed."

	user := fmt.Sprintf("Question: %s\n\nEvidence sources:\n%s\nStep results:\n%s\n\nWrite the final answer in the question's language.",
		query, evidence.String(), strings.Join(outputs, "\n\n"))

	text, err := llm.Chat(ctx, []driven.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, driven.ChatOptions{
		MaxTokens:   a.coordinator.Profile.MaxTokens,
		Temperature: a.coordinator.Profile.Temperature,
	})
	if err != nil {
		logger.Warn("Answer synthesis failed (%v), using deterministic aggregation", err)
		return fallback
	}
	return text
}

// renumberMarkers rewrites a step output's local markers (1..n over
// the step's retrieved chunks, in retrieval order) into evidence-pool
// markers. Markers that resolve to no retrieved chunk are left alone
// and fall to citation enforcement.
func renumberMarkers(output string, retrieved []domain.RetrievalResult, poolMarker map[string]int) string {
	if len(retrieved) == 0 {
		return output
	}
	return markerPattern.ReplaceAllStringFunc(output, func(m string) string {
		n, err := strconv.Atoi(strings.Trim(m, "[]"))
		if err != nil || n < 1 || n > len(retrieved) {
			return m
		}
		if global, ok := poolMarker[retrieved[n-1].Chunk.ID]; ok {
			return fmt.Sprintf("[%d]", global)
		}
		return m
	})
}

// buildEvidencePool numbers the retrieved chunks across all steps,
// deduplicated by chunk ID, in step order.
func buildEvidencePool(results []domain.StepResult) []domain.Citation {
	var pool []domain.Citation
	seen := make(map[string]bool)

	for _, r := range results {
		for _, ret := range r.Retrieved {
			if seen[ret.Chunk.ID] {
				continue
			}
			seen[ret.Chunk.ID] = true
			pool = append(pool, domain.Citation{
				Marker:   len(pool) + 1,
				ChunkID:  ret.Chunk.ID,
				Document: ret.DocumentTitle,
				Clause:   ret.Chunk.Clause(),
				Score:    ret.Score,
			})
		}
	}
	return pool
}

// enforceCitations removes sentences whose markers do not resolve into
// the pool, returning the surviving text, the cited sources and the
// fraction of sentences that survived.
func enforceCitations(text string, pool []domain.Citation) (string, []domain.Citation, float64) {
	byMarker := make(map[int]domain.Citation, len(pool))
	for _, c := range pool {
		byMarker[c.Marker] = c
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return "", nil, 0
	}

	var kept []string
	cited := make(map[int]bool)
	for _, sentence := range sentences {
		markers := markerPattern.FindAllStringSubmatch(sentence, -1)
		if len(markers) == 0 {
			logger.Debug("Dropping uncited sentence: %.60s", sentence)
			continue
		}
		valid := false
		for _, m := range markers {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				if _, ok := byMarker[n]; ok {
					valid = true
					cited[n] = true
				}
			}
		}
		if valid {
			kept = append(kept, sentence)
		}
	}

	var citations []domain.Citation
	for _, c := range pool {
		if cited[c.Marker] {
			citations = append(citations, c)
		}
	}

	coverage := float64(len(kept)) / float64(len(sentences))
	return strings.Join(kept, " "), citations, coverage
}

// confidence derives the answer confidence from citation coverage and
// the mean retrieval score of the cited evidence.
func confidence(coverage float64, citations []domain.Citation) float64 {
	if len(citations) == 0 {
		return 0.1
	}
	var sum float64
	for _, c := range citations {
		sum += c.Score
	}
	mean := sum / float64(len(citations))
	score := coverage * mean
	if score > 1 {
		score = 1
	}
	return score
}

// allRetrievalFailed reports whether every retrieval invocation across
// the results ended in a grounding failure.
func allRetrievalFailed(results []domain.StepResult) bool {
	sawRetrieval := false
	for _, r := range results {
		for _, inv := range r.Invocations {
			if len(inv.Result.Retrieved) > 0 {
				return false
			}
			if inv.Result.Category == domain.CategoryGrounding {
				sawRetrieval = true
			}
		}
	}
	return sawRetrieval
}

// collectPartialFailures renders step-level failures for the answer.
func collectPartialFailures(results []domain.StepResult) []string {
	var partials []string
	for _, r := range results {
		if r.Err != nil {
			partials = append(partials, fmt.Sprintf("%s: %v", r.StepID, r.Err))
		}
		for _, inv := range r.Invocations {
			if inv.Status == domain.InvocationError {
				partials = append(partials, fmt.Sprintf("%s/%s: %s", r.StepID, inv.Tool, inv.Result.Payload))
			}
		}
	}
	return partials
}

// splitSentences splits text on sentence-ending punctuation, keeping
// the punctuation and any trailing citation markers with the sentence.
func splitSentences(content string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(content)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' && runes[i] != '\n' {
			continue
		}
		// Clause references like 5.2.1 or "п. 5" are not sentence
		// boundaries.
		if runes[i] == '.' {
			j := i + 1
			if j < len(runes) && runes[j] == ' ' {
				j++
			}
			if j < len(runes) && runes[j] >= '0' && runes[j] <= '9' {
				continue
			}
		}
		// Pull trailing markers like [1][2] into this sentence.
		for i+1 < len(runes) && runes[i+1] == '[' {
			j := i + 1
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j >= len(runes) {
				break
			}
			for k := i + 1; k <= j; k++ {
				current.WriteRune(runes[k])
			}
			i = j
		}
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
