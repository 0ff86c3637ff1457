package services

import (
	"context"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
	"github.com/bldr-labs/bldr/internal/logger"
)

// intentPrototypes are the label descriptions the zero-shot classifier
// embeds once and compares queries against.
var intentPrototypes = map[string]string{
	domain.IntentNormCheck:    "Проверка соответствия нормативным требованиям: СП, СНиП, ГОСТ, допустимые значения, требования свода правил",
	domain.IntentEstimate:     "Сметный расчет стоимости работ: расценки ГЭСН и ФЕР, объемы работ, стоимость материалов",
	domain.IntentSchedule:     "График производства работ: сроки, последовательность этапов, календарный план",
	domain.IntentDocumentInfo: "Сведения о документе в базе: название, состав, разделы, наличие документа",
	domain.IntentGeneral:      "Общий вопрос о строительном проекте",
}

// intentKeywords drive the deterministic fallback classifier.
var intentKeywords = map[string][]string{
	domain.IntentNormCheck:    {"сп ", "снип", "гост", "норматив", "допуска", "требован", "соответств"},
	domain.IntentEstimate:     {"смет", "гэсн", "фер ", "расценк", "стоимост", "затрат", "объем работ", "объём работ"},
	domain.IntentSchedule:     {"график", "срок", "этап", "последовательност", "календарн"},
	domain.IntentDocumentInfo: {"документ", "какие файлы", "что загружено", "в базе", "раздел"},
}

var (
	docCodePattern = regexp.MustCompile(`(?i)(СП|СНиП|ГОСТ\s*Р?|СанПиН|ГЭСН|ФЕР|ТЕР)\s*([0-9][0-9.\-]*[0-9])`)
	clausePattern  = regexp.MustCompile(`(?i)(?:п\.|пункт[а-я]*|clause)\s*([0-9]+(?:\.[0-9]+)*)`)
)

// IntentParser classifies queries by embedding similarity against
// intent prototypes, with a keyword fallback when embeddings are
// unavailable or the best match is below the confidence floor.
// Its output is advisory input to the plan generator.
type IntentParser struct {
	embedder driven.EmbeddingService
	floor    float64

	mu         sync.Mutex
	prototypes map[string][]float32
}

// NewIntentParser creates the intent parser. The embedder is optional;
// without it classification is keyword-only.
func NewIntentParser(embedder driven.EmbeddingService, floor float64) *IntentParser {
	return &IntentParser{
		embedder: embedder,
		floor:    floor,
	}
}

// Parse classifies the query and extracts domain entities.
func (p *IntentParser) Parse(ctx context.Context, query string) domain.ParsedIntent {
	entities := extractEntities(query)

	if p.embedder != nil {
		if intent, confidence, err := p.semanticClassify(ctx, query); err == nil {
			if confidence >= p.floor {
				return domain.ParsedIntent{
					Intent:     intent,
					Entities:   entities,
					Confidence: confidence,
					Method:     "semantic",
				}
			}
			logger.Debug("Intent confidence %.2f below floor %.2f, using keyword fallback", confidence, p.floor)
		} else {
			logger.Warn("Semantic intent classification failed: %v", err)
		}
	}

	intent, confidence := keywordClassify(query)
	return domain.ParsedIntent{
		Intent:     intent,
		Entities:   entities,
		Confidence: confidence,
		Method:     "keyword",
	}
}

// semanticClassify compares the query embedding against each prototype
// and returns the best label with its cosine similarity.
func (p *IntentParser) semanticClassify(ctx context.Context, query string) (string, float64, error) {
	if err := p.ensurePrototypes(ctx); err != nil {
		return "", 0, err
	}

	queryEmb, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return "", 0, err
	}

	best := domain.IntentGeneral
	bestScore := 0.0
	for label, proto := range p.prototypes {
		score := cosineSimilarity(queryEmb, proto)
		if score > bestScore {
			best = label
			bestScore = score
		}
	}
	return best, bestScore, nil
}

func (p *IntentParser) ensurePrototypes(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.prototypes != nil {
		return nil
	}

	labels := make([]string, 0, len(intentPrototypes))
	texts := make([]string, 0, len(intentPrototypes))
	for label, text := range intentPrototypes {
		labels = append(labels, label)
		texts = append(texts, text)
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	p.prototypes = make(map[string][]float32, len(labels))
	for i, label := range labels {
		p.prototypes[label] = embeddings[i]
	}
	return nil
}

// keywordClassify is the deterministic fallback. First label with a
// marker hit wins; checked in a fixed order so results are stable.
func keywordClassify(query string) (string, float64) {
	q := strings.ToLower(query)
	order := []string{
		domain.IntentEstimate,
		domain.IntentSchedule,
		domain.IntentNormCheck,
		domain.IntentDocumentInfo,
	}
	for _, label := range order {
		for _, kw := range intentKeywords[label] {
			if strings.Contains(q, kw) {
				return label, 0.7
			}
		}
	}
	return domain.IntentGeneral, 0.5
}

// extractEntities pulls document codes and clause references out of the
// query text.
func extractEntities(query string) []string {
	var entities []string
	seen := make(map[string]bool)

	for _, m := range docCodePattern.FindAllStringSubmatch(query, -1) {
		code := normaliseSpace(m[1]) + " " + m[2]
		if !seen[code] {
			seen[code] = true
			entities = append(entities, code)
		}
	}
	for _, m := range clausePattern.FindAllStringSubmatch(query, -1) {
		ref := "п. " + m[1]
		if !seen[ref] {
			seen[ref] = true
			entities = append(entities, ref)
		}
	}
	return entities
}

func normaliseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cosineSimilarity computes the cosine of the angle between two
// vectors, clamped to [0,1].
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if score < 0 {
		return 0
	}
	return score
}
