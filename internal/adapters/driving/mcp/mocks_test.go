package mcp

import (
	"context"

	"github.com/bldr-labs/bldr/internal/core/domain"
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
	opts   domain.AskOptions
	err    error
}

func (m *mockQueryService) Ask(
	_ context.Context,
	_ string,
	opts domain.AskOptions,
) (*domain.FinalAnswer, error) {
	m.opts = opts
	return m.answer, m.err
}

// mockProcessService is a mock implementation of driving.ProcessService.
type mockProcessService struct {
	processes []domain.Process
	process   *domain.Process
	err       error
}

func (m *mockProcessService) Get(_ context.Context, _ string) (*domain.Process, error) {
	return m.process, m.err
}

func (m *mockProcessService) List(_ context.Context) ([]domain.Process, error) {
	return m.processes, m.err
}

func (m *mockProcessService) Subscribe(_ context.Context, _ string) (<-chan domain.ProcessEvent, error) {
	ch := make(chan domain.ProcessEvent)
	close(ch)
	return ch, m.err
}

func (m *mockProcessService) Cancel(_ context.Context, _ string) error {
	return m.err
}

// mockDocumentStore is a mock implementation of driven.DocumentStore
// covering the calls the resources make.
type mockDocumentStore struct {
	documents []domain.Document
	document  *domain.Document
	err       error
}

func (m *mockDocumentStore) SaveDocument(_ context.Context, _ *domain.Document) error {
	return m.err
}

func (m *mockDocumentStore) SaveChunks(_ context.Context, _ []domain.Chunk) error {
	return m.err
}

func (m *mockDocumentStore) GetDocument(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentStore) GetDocumentByHash(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentStore) GetChunks(_ context.Context, _ string) ([]domain.Chunk, error) {
	return nil, m.err
}

func (m *mockDocumentStore) GetChunk(_ context.Context, _ string) (*domain.Chunk, error) {
	return nil, m.err
}

func (m *mockDocumentStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentStore) DeleteDocument(_ context.Context, _ string) error {
	return m.err
}
