package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
	"github.com/bldr-labs/bldr/internal/tools"
)

// callLog records tool invocations in execution order.
type callLog struct {
	mu    sync.Mutex
	order []string
}

func (l *callLog) record(name string) {
	l.mu.Lock()
	l.order = append(l.order, name)
	l.mu.Unlock()
}

func (l *callLog) indexOf(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, n := range l.order {
		if n == name {
			return i
		}
	}
	return -1
}

func okTool(name string, log *callLog) *tools.Tool {
	return &tools.Tool{
		Name:        name,
		Description: "test tool",
		Execute: func(context.Context, map[string]any) (domain.ToolEnvelope, error) {
			if log != nil {
				log.record(name)
			}
			return domain.OK("результат " + name), nil
		},
	}
}

func workerRole(whitelist ...string) []domain.Role {
	return []domain.Role{{
		ID:               "worker",
		Profile:          testProfile,
		ToolWhitelist:    whitelist,
		Responsibilities: "Runs test steps.",
		Rules:            []string{"Cite a source marker [n] for every factual claim."},
	}}
}

func fastSettings() domain.PlannerSettings {
	s := domain.DefaultPlannerSettings()
	s.ToolTimeout = 2 * time.Second
	return s
}

func TestExecutor_RunsWavesInDependencyOrder(t *testing.T) {
	log := &callLog{}
	reg := tools.NewRegistry()
	reg.MustRegister(okTool("tool-a", log))
	reg.MustRegister(okTool("tool-b", log))
	reg.MustRegister(okTool("tool-c", log))

	exec := NewExecutor(reg, nil, workerRole("tool-a", "tool-b", "tool-c"), nil, fastSettings())
	plan := &domain.Plan{
		ID:    "plan-1",
		Query: "вопрос",
		Steps: []domain.PlanStep{
			{ID: "step-1", Role: "worker", Task: "a", Tools: []string{"tool-a"}},
			{ID: "step-2", Role: "worker", Task: "b", Tools: []string{"tool-b"}, DependsOn: []string{"step-1"}},
			{ID: "step-3", Role: "worker", Task: "c", Tools: []string{"tool-c"}},
		},
	}

	results := exec.Execute(context.Background(), plan, "")
	require.Len(t, results, 3)

	// Results come back in declared order regardless of scheduling.
	assert.Equal(t, "step-1", results[0].StepID)
	assert.Equal(t, "step-2", results[1].StepID)
	assert.Equal(t, "step-3", results[2].StepID)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}

	// The dependent step only ran after its dependency.
	assert.Greater(t, log.indexOf("tool-b"), log.indexOf("tool-a"))

	// Without a completion factory the output is the raw tool evidence.
	assert.Contains(t, results[0].Output, "[tool-a]")
	assert.Contains(t, results[0].Output, "результат tool-a")
}

func TestExecutor_RejectsToolOffWhitelist(t *testing.T) {
	reg := tools.NewRegistry()
	reg.MustRegister(okTool("tool-a", nil))

	exec := NewExecutor(reg, nil, workerRole(), nil, fastSettings())
	plan := &domain.Plan{
		ID:    "plan-1",
		Steps: []domain.PlanStep{{ID: "step-1", Role: "worker", Task: "a", Tools: []string{"tool-a"}}},
	}

	results := exec.Execute(context.Background(), plan, "")
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, domain.ErrToolNotPermitted)
}

func TestExecutor_UnknownRoleFailsStep(t *testing.T) {
	exec := NewExecutor(tools.NewRegistry(), nil, workerRole(), nil, fastSettings())
	plan := &domain.Plan{
		ID:    "plan-1",
		Steps: []domain.PlanStep{{ID: "step-1", Role: "ghost", Task: "a"}},
	}

	results := exec.Execute(context.Background(), plan, "")
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, domain.ErrRoleUnknown)
}

func TestExecutor_RetriesTransientFailures(t *testing.T) {
	var calls int
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name: "flaky",
		Execute: func(context.Context, map[string]any) (domain.ToolEnvelope, error) {
			calls++
			if calls == 1 {
				return domain.Fail(domain.CategoryTransient, "connection reset"), nil
			}
			return domain.OK("получилось"), nil
		},
	})

	exec := NewExecutor(reg, nil, workerRole("flaky"), nil, fastSettings())
	plan := &domain.Plan{
		ID:    "plan-1",
		Steps: []domain.PlanStep{{ID: "step-1", Role: "worker", Task: "a", Tools: []string{"flaky"}}},
	}

	results := exec.Execute(context.Background(), plan, "")
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Len(t, results[0].Invocations, 1)
	assert.Equal(t, 2, results[0].Invocations[0].Attempts)
	assert.Equal(t, domain.InvocationSuccess, results[0].Invocations[0].Status)
}

func TestExecutor_RetriesAreBounded(t *testing.T) {
	var calls int
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name: "down",
		Execute: func(context.Context, map[string]any) (domain.ToolEnvelope, error) {
			calls++
			return domain.Fail(domain.CategoryTransient, "still down"), nil
		},
	})

	settings := fastSettings()
	settings.ToolRetries = 1
	exec := NewExecutor(reg, nil, workerRole("down"), nil, settings)
	plan := &domain.Plan{
		ID:    "plan-1",
		Steps: []domain.PlanStep{{ID: "step-1", Role: "worker", Task: "a", Tools: []string{"down"}}},
	}

	results := exec.Execute(context.Background(), plan, "")
	require.Len(t, results[0].Invocations, 1)
	assert.Equal(t, 2, calls)
	assert.Equal(t, domain.InvocationError, results[0].Invocations[0].Status)
}

func TestExecutor_NeverRetriesValidationFailures(t *testing.T) {
	var calls int
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name: "strict",
		Execute: func(context.Context, map[string]any) (domain.ToolEnvelope, error) {
			calls++
			return domain.Fail(domain.CategoryValidation, "missing required parameter"), nil
		},
	})

	exec := NewExecutor(reg, nil, workerRole("strict"), nil, fastSettings())
	plan := &domain.Plan{
		ID:    "plan-1",
		Steps: []domain.PlanStep{{ID: "step-1", Role: "worker", Task: "a", Tools: []string{"strict"}}},
	}

	results := exec.Execute(context.Background(), plan, "")
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, results[0].Invocations[0].Attempts)
	assert.Equal(t, domain.CategoryValidation, results[0].Invocations[0].Result.Category)
}

func TestExecutor_ComposesWithRoleModel(t *testing.T) {
	reg := tools.NewRegistry()
	reg.MustRegister(okTool("tool-a", nil))

	llm := &mockLLM{responses: []string{"Бетон укладывают при положительной температуре [1]."}}
	factory := &mockCompletionFactory{llm: llm}

	exec := NewExecutor(reg, factory, workerRole("tool-a"), nil, fastSettings())
	plan := &domain.Plan{
		ID:    "plan-1",
		Query: "вопрос",
		Steps: []domain.PlanStep{{ID: "step-1", Role: "worker", Task: "проверить нормы", Tools: []string{"tool-a"}}},
	}

	results := exec.Execute(context.Background(), plan, "")
	require.NoError(t, results[0].Err)
	assert.Equal(t, "Бетон укладывают при положительной температуре [1].", results[0].Output)

	require.Len(t, llm.lastChat, 2)
	assert.Equal(t, "system", llm.lastChat[0].Role)
	assert.Contains(t, llm.lastChat[0].Content, "Runs test steps.")
	assert.Contains(t, llm.lastChat[0].Content, "Mandatory rules:")
	assert.Contains(t, llm.lastChat[1].Content, "проверить нормы")
	assert.Contains(t, llm.lastChat[1].Content, "результат tool-a")
}

func TestExecutor_CompositionFailureDegradesToRawEvidence(t *testing.T) {
	reg := tools.NewRegistry()
	reg.MustRegister(okTool("tool-a", nil))

	factory := &mockCompletionFactory{llm: &mockLLM{err: errors.New("model offline")}}
	exec := NewExecutor(reg, factory, workerRole("tool-a"), nil, fastSettings())
	plan := &domain.Plan{
		ID:    "plan-1",
		Steps: []domain.PlanStep{{ID: "step-1", Role: "worker", Task: "a", Tools: []string{"tool-a"}}},
	}

	results := exec.Execute(context.Background(), plan, "")
	require.NoError(t, results[0].Err)
	assert.Contains(t, results[0].Output, "результат tool-a")
}

func TestExecutor_ReexecuteStepForcesRetrieval(t *testing.T) {
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name:      tools.NameRetrievalSearch,
		Retrieval: true,
		Schema: tools.Schema{
			Required:   []string{"query"},
			Properties: map[string]tools.Property{"query": {Type: "string"}},
		},
		Execute: func(context.Context, map[string]any) (domain.ToolEnvelope, error) {
			env := domain.OK("СП 70.13330.2012, п. 5.11.2")
			env.Retrieved = []domain.RetrievalResult{{
				Chunk:         domain.Chunk{ID: "chunk-1", DocumentID: "doc-1", Content: "текст пункта"},
				DocumentTitle: "СП 70.13330.2012",
				Score:         0.91,
			}}
			return env, nil
		},
	})
	reg.MustRegister(okTool("tool-a", nil))

	exec := NewExecutor(reg, nil, workerRole(tools.NameRetrievalSearch, "tool-a"), nil, fastSettings())
	plan := &domain.Plan{
		ID:    "plan-1",
		Query: "вопрос",
		Steps: []domain.PlanStep{{ID: "step-1", Role: "worker", Task: "a", Tools: []string{"tool-a"}}},
	}
	prior := []domain.StepResult{{StepID: "step-1", Role: "worker", Output: "без ссылок"}}

	result := exec.ReexecuteStep(context.Background(), plan, "step-1", prior, "")
	require.NotNil(t, result)
	assert.True(t, result.Reexecuted)
	require.Len(t, result.Invocations, 2)
	assert.Equal(t, tools.NameRetrievalSearch, result.Invocations[0].Tool)
	require.Len(t, result.Retrieved, 1)
	assert.Equal(t, "chunk-1", result.Retrieved[0].Chunk.ID)
}

func TestExecutor_ReexecuteStepUnknownStep(t *testing.T) {
	exec := NewExecutor(tools.NewRegistry(), nil, workerRole(), nil, fastSettings())
	plan := &domain.Plan{ID: "plan-1", Steps: []domain.PlanStep{{ID: "step-1", Role: "worker"}}}

	assert.Nil(t, exec.ReexecuteStep(context.Background(), plan, "step-9", nil, ""))
}

func TestExecutor_RetrievalToolGetsQueryFromTask(t *testing.T) {
	var gotQuery string
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name: "lookup",
		Schema: tools.Schema{
			Properties: map[string]tools.Property{"query": {Type: "string"}},
		},
		Execute: func(_ context.Context, params map[string]any) (domain.ToolEnvelope, error) {
			gotQuery, _ = params["query"].(string)
			return domain.OK("ок"), nil
		},
	})

	exec := NewExecutor(reg, nil, workerRole("lookup"), nil, fastSettings())
	plan := &domain.Plan{
		ID:    "plan-1",
		Query: "исходный вопрос",
		Steps: []domain.PlanStep{{ID: "step-1", Role: "worker", Task: "найти пункт о бетоне", Tools: []string{"lookup"}}},
	}

	exec.Execute(context.Background(), plan, "")
	assert.Equal(t, "найти пункт о бетоне", gotQuery)
}

func TestExecutor_StepFailureDoesNotAbortPlan(t *testing.T) {
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name: "broken",
		Execute: func(context.Context, map[string]any) (domain.ToolEnvelope, error) {
			return domain.ToolEnvelope{}, domain.ErrInvalidInput
		},
	})
	reg.MustRegister(okTool("tool-a", nil))

	exec := NewExecutor(reg, nil, workerRole("broken", "tool-a"), nil, fastSettings())
	plan := &domain.Plan{
		ID: "plan-1",
		Steps: []domain.PlanStep{
			{ID: "step-1", Role: "worker", Task: "a", Tools: []string{"broken"}},
			{ID: "step-2", Role: "worker", Task: "b", Tools: []string{"tool-a"}, DependsOn: []string{"step-1"}},
		},
	}

	results := exec.Execute(context.Background(), plan, "")
	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.Contains(t, results[1].Output, "результат tool-a")
}

func TestExecutor_ValidatesParamsBeforeExecution(t *testing.T) {
	var calls int
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name: "rate-lookup",
		Schema: tools.Schema{
			Required: []string{"region"},
			Properties: map[string]tools.Property{
				"region": {Type: "string"},
			},
		},
		Execute: func(context.Context, map[string]any) (domain.ToolEnvelope, error) {
			calls++
			return domain.OK("не должно выполниться"), nil
		},
	})

	exec := NewExecutor(reg, nil, workerRole("rate-lookup"), nil, fastSettings())
	plan := &domain.Plan{
		ID:    "plan-1",
		Steps: []domain.PlanStep{{ID: "step-1", Role: "worker", Task: "посчитать смету", Tools: []string{"rate-lookup"}}},
	}

	results := exec.Execute(context.Background(), plan, "")
	require.Len(t, results[0].Invocations, 1)

	inv := results[0].Invocations[0]
	assert.Equal(t, 0, calls, "tool must not run with invalid parameters")
	assert.Equal(t, domain.InvocationError, inv.Status)
	assert.Equal(t, domain.CategoryValidation, inv.Result.Category)
	assert.Contains(t, inv.Result.Payload, "region")
}

func TestExecutor_StepEvidenceNumbersChunksAcrossTools(t *testing.T) {
	retrievalTool := func(name, payload, chunkID string) *tools.Tool {
		return &tools.Tool{
			Name:      name,
			Retrieval: true,
			Execute: func(context.Context, map[string]any) (domain.ToolEnvelope, error) {
				env := domain.OK(payload)
				env.Retrieved = []domain.RetrievalResult{{
					Chunk: domain.Chunk{ID: chunkID, DocumentID: "doc-" + chunkID},
					Score: 0.9,
				}}
				return env, nil
			},
		}
	}

	reg := tools.NewRegistry()
	reg.MustRegister(retrievalTool("search-norms", "[1] бетон укладывают при +5", "chunk-a"))
	reg.MustRegister(retrievalTool("search-rates", "[1] расценка 1250 руб", "chunk-b"))

	exec := NewExecutor(reg, nil, workerRole("search-norms", "search-rates"), nil, fastSettings())
	plan := &domain.Plan{
		ID:    "plan-1",
		Steps: []domain.PlanStep{{ID: "step-1", Role: "worker", Task: "a", Tools: []string{"search-norms", "search-rates"}}},
	}

	results := exec.Execute(context.Background(), plan, "")
	require.NoError(t, results[0].Err)

	// The second tool's local [1] is renumbered so each marker resolves
	// to exactly one entry of the step's retrieved chunks.
	assert.Contains(t, results[0].Output, "[1] бетон укладывают при +5")
	assert.Contains(t, results[0].Output, "[2] расценка 1250 руб")
}

func TestExecutor_IntentNarrowsRetrievalDocType(t *testing.T) {
	var gotParams map[string]any
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name: "lookup",
		Schema: tools.Schema{
			Properties: map[string]tools.Property{
				"query":    {Type: "string"},
				"doc_type": {Type: "string"},
			},
		},
		Execute: func(_ context.Context, params map[string]any) (domain.ToolEnvelope, error) {
			gotParams = params
			return domain.OK("ок"), nil
		},
	})

	exec := NewExecutor(reg, nil, workerRole("lookup"), nil, fastSettings())

	plan := &domain.Plan{
		ID:     "plan-1",
		Intent: domain.IntentEstimate,
		Steps:  []domain.PlanStep{{ID: "step-1", Role: "worker", Task: "проверить смету", Tools: []string{"lookup"}}},
	}
	exec.Execute(context.Background(), plan, "")
	assert.Equal(t, "estimate", gotParams["doc_type"])

	plan.Intent = domain.IntentGeneral
	exec.Execute(context.Background(), plan, "")
	_, ok := gotParams["doc_type"]
	assert.False(t, ok, "general questions search the whole index")
}

var _ driven.CompletionFactory = (*mockCompletionFactory)(nil)
