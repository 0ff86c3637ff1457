package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bldr-labs/bldr/internal/adapters/driven/storage/memory"
	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
	"github.com/bldr-labs/bldr/internal/tools"
)

// queryHarness wires the full ask pipeline over in-memory adapters.
type queryHarness struct {
	embedder *mockEmbedder
	docs     *memory.DocumentStore
	vectors  *memory.VectorIndex
	tracker  *ProcessTracker
	svc      *QueryOrchestrator
}

func newQueryHarness(llm *mockLLM) *queryHarness {
	h := &queryHarness{
		embedder: newMockEmbedder(),
		docs:     memory.NewDocumentStore(),
		vectors:  memory.NewVectorIndex(),
		tracker:  NewProcessTracker(memory.NewProcessStore()),
	}

	settings := domain.DefaultPlannerSettings()
	search := NewRetrievalService(h.embedder, memory.NewEmbeddingCache(), h.vectors, h.docs, domain.DefaultRetrievalSettings())

	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry, search, h.docs, map[string]float64{"москва": 1200})

	roles := domain.DefaultRoles(testProfile)

	var completion driven.CompletionService
	var factory driven.CompletionFactory
	if llm != nil {
		completion = llm
		factory = &mockCompletionFactory{llm: llm}
	}

	h.svc = NewQueryOrchestrator(
		NewIntentParser(h.embedder, settings.IntentFloor),
		NewPlanGenerator(completion, roles, registry, settings),
		NewExecutor(registry, factory, roles, h.tracker, settings),
		NewAggregator(factory, coordinatorRole()),
		h.tracker,
		settings,
	)
	return h
}

// seedConcreteWorksEvidence indexes one normative chunk about winter
// concreting, reachable by any query or task containing "бетон".
func (h *queryHarness) seedConcreteWorksEvidence(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	h.embedder.vectors["бетон"] = []float32{1, 0, 0, 0}

	doc := &domain.Document{
		ID:     "doc-1",
		URI:    "sp70.pdf",
		Title:  "СП 70.13330.2012",
		Type:   domain.DocTypeNormative,
		Status: domain.StatusIndexed,
	}
	require.NoError(t, h.docs.SaveDocument(ctx, doc))
	require.NoError(t, h.docs.SaveChunks(ctx, []domain.Chunk{{
		ID:         "chunk-1",
		DocumentID: "doc-1",
		Content:    "При зимнем бетонировании применяют прогрев смеси",
		ClausePath: []string{"5", "5.11", "5.11.2"},
	}}))
	require.NoError(t, h.vectors.Upsert(ctx, driven.VectorRecord{
		ChunkID:    "chunk-1",
		DocumentID: "doc-1",
		Type:       domain.DocTypeNormative,
		Embedding:  []float32{1, 0, 0, 0},
	}))
}

func TestAsk_FallbackPlanAnswersFromEvidence(t *testing.T) {
	h := newQueryHarness(nil)
	h.seedConcreteWorksEvidence(t)
	ctx := context.Background()

	answer, err := h.svc.Ask(ctx, "что требует СП 70.13330 при укладке бетона зимой", domain.AskOptions{SessionID: "s-1"})
	require.NoError(t, err)

	assert.False(t, answer.Insufficient)
	assert.Contains(t, answer.Text, "прогрев")
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "chunk-1", answer.Citations[0].ChunkID)
	assert.Equal(t, "СП 70.13330.2012", answer.Citations[0].Document)
	assert.NotEmpty(t, answer.ProcessID)

	proc, err := h.tracker.Get(ctx, answer.ProcessID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessCompleted, proc.State)
	assert.Equal(t, "s-1", proc.Metadata["session"])
}

func TestAsk_LLMPlanRunsStepsAndSynthesises(t *testing.T) {
	llm := &mockLLM{responses: []string{
		`{"steps":[
			{"id":"step-1","role":"chief-engineer","task":"найти требования к зимнему бетонированию","tools":["retrieval-search"],"estimated_seconds":20},
			{"id":"step-2","role":"coordinator","task":"свести выводы","tools":[],"depends_on":["step-1"],"estimated_seconds":10}
		]}`,
		"Прогрев смеси обязателен [1].",
		"Инженерный вывод подтверждён [1].",
		"Итог: зимой требуется прогрев бетонной смеси [1].",
	}}
	h := newQueryHarness(llm)
	h.seedConcreteWorksEvidence(t)

	answer, err := h.svc.Ask(context.Background(), "правила зимнего бетонирования", domain.AskOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Итог: зимой требуется прогрев бетонной смеси [1].", answer.Text)
	require.Len(t, answer.Citations, 1)
	assert.InDelta(t, 1.0, answer.Confidence, 0.001)
	// One plan generation, two step compositions, one synthesis.
	assert.Equal(t, 4, llm.calls)
}

func TestAsk_UngroundedClaimsForceRetrievalOnce(t *testing.T) {
	llm := &mockLLM{responses: []string{
		`{"steps":[{"id":"step-1","role":"coordinator","task":"опиши зимнее бетонирование","tools":[]}]}`,
		"Бетон зимой набирает прочность медленнее.",
		"Прогрев смеси предписан нормативом [1].",
		"Зимой смесь прогревают согласно нормативу [1].",
	}}
	h := newQueryHarness(llm)
	h.seedConcreteWorksEvidence(t)

	answer, err := h.svc.Ask(context.Background(), "зимнее бетонирование", domain.AskOptions{})
	require.NoError(t, err)

	assert.False(t, answer.Insufficient)
	assert.Equal(t, "Зимой смесь прогревают согласно нормативу [1].", answer.Text)
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "chunk-1", answer.Citations[0].ChunkID)
	assert.Equal(t, 4, llm.calls)
}

func TestAsk_NoEvidenceYieldsExplicitInsufficiency(t *testing.T) {
	h := newQueryHarness(nil)
	ctx := context.Background()

	answer, err := h.svc.Ask(ctx, "что требует СП 45 при земляных работах", domain.AskOptions{})
	require.NoError(t, err)

	assert.True(t, answer.Insufficient)
	assert.Equal(t, insufficientAnswer, answer.Text)
	assert.Empty(t, answer.Citations)
	assert.NotEmpty(t, answer.PartialFailures)

	proc, err := h.tracker.Get(ctx, answer.ProcessID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessCompleted, proc.State)
}

func TestAsk_RoleHintReachesFallbackPlan(t *testing.T) {
	h := newQueryHarness(nil)
	h.seedConcreteWorksEvidence(t)

	answer, err := h.svc.Ask(context.Background(), "общий вопрос про бетон",
		domain.AskOptions{RoleHint: domain.RoleChiefEngineer})
	require.NoError(t, err)
	assert.NotEmpty(t, answer.ProcessID)
}
