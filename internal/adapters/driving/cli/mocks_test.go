package cli

import (
	"context"
	"errors"
	"time"

	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results []domain.RetrievalResult
	types   []domain.DocumentType
	err     error
}

func (m *mockSearchService) Search(
	_ context.Context,
	_ string,
	_ int,
	types ...domain.DocumentType,
) ([]domain.RetrievalResult, error) {
	m.types = types
	return m.results, m.err
}

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	answer *domain.FinalAnswer
	err    error
}

func (m *mockQueryService) Ask(
	_ context.Context,
	_ string,
	_ domain.AskOptions,
) (*domain.FinalAnswer, error) {
	return m.answer, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	report *driving.IngestReport
	err    error
}

func (m *mockIngestService) Ingest(
	_ context.Context,
	_ string,
	_ domain.IngestMode,
) (*driving.IngestReport, error) {
	return m.report, m.err
}

func (m *mockIngestService) Watch(_ context.Context, _ string, _ domain.IngestMode) error {
	return m.err
}

// mockProcessService is a mock implementation of driving.ProcessService.
type mockProcessService struct {
	processes []domain.Process
	process   *domain.Process
	events    []domain.ProcessEvent
	err       error
}

func (m *mockProcessService) Get(_ context.Context, _ string) (*domain.Process, error) {
	return m.process, m.err
}

func (m *mockProcessService) List(_ context.Context) ([]domain.Process, error) {
	return m.processes, m.err
}

func (m *mockProcessService) Subscribe(_ context.Context, _ string) (<-chan domain.ProcessEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	ch := make(chan domain.ProcessEvent, len(m.events))
	for _, e := range m.events {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func (m *mockProcessService) Cancel(_ context.Context, _ string) error {
	return m.err
}

// setupTestServices installs mock services so commands execute without
// opening real stores. The returned cleanup restores the previous
// wiring.
func setupTestServices() func() {
	oldSearch := searchService
	oldQuery := queryService
	oldIngest := ingestService
	oldProcess := processService

	searchService = &mockSearchService{
		results: []domain.RetrievalResult{
			{
				Chunk: domain.Chunk{
					ID:         "chunk-1",
					DocumentID: "doc-1",
					Content:    "Бетонирование при среднесуточной температуре ниже 5 °C выполняется по правилам зимнего бетонирования.",
					ClausePath: []string{"5", "5.11"},
				},
				DocumentTitle: "СП 70.13330.2012",
				Score:         0.91,
			},
		},
	}
	queryService = &mockQueryService{
		answer: &domain.FinalAnswer{
			Text:       "Требуется прогрев бетона [1].",
			Confidence: 0.82,
			Citations: []domain.Citation{
				{Marker: 1, ChunkID: "chunk-1", Document: "СП 70.13330.2012", Clause: "5.11", Score: 0.91},
			},
			ProcessID: "proc-query-1",
		},
	}
	ingestService = &mockIngestService{
		report: &driving.IngestReport{
			ProcessID: "proc-ingest-1",
			Ingested:  2,
			Skipped:   1,
		},
	}
	processService = &mockProcessService{
		processes: []domain.Process{
			{
				ID:        "proc-1",
				Kind:      domain.ProcessKindIngest,
				State:     domain.ProcessCompleted,
				Progress:  100,
				CreatedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
			},
		},
		process: &domain.Process{
			ID:       "proc-1",
			Kind:     domain.ProcessKindIngest,
			State:    domain.ProcessCompleted,
			Progress: 100,
			Events: []domain.ProcessEvent{
				{Seq: 1, State: domain.ProcessRunning, Progress: 0, Message: "started", At: time.Now()},
				{Seq: 2, State: domain.ProcessCompleted, Progress: 100, Message: "done", At: time.Now()},
			},
		},
	}

	return func() {
		searchService = oldSearch
		queryService = oldQuery
		ingestService = oldIngest
		processService = oldProcess
	}
}

// errService is a reusable failure for error-path tests.
var errService = errors.New("service unavailable")
