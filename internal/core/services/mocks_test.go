package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
)

// mockEmbedder is a deterministic embedding service. Texts sharing a
// marker word embed near each other; everything else is orthogonal.
type mockEmbedder struct {
	vectors     map[string][]float32
	fallbackVec []float32
	err         error
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{
		vectors:     make(map[string][]float32),
		fallbackVec: []float32{0, 0, 0, 1},
	}
}

func (m *mockEmbedder) vectorFor(text string) []float32 {
	for marker, vec := range m.vectors {
		if strings.Contains(strings.ToLower(text), strings.ToLower(marker)) {
			return vec
		}
	}
	return m.fallbackVec
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.vectorFor(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vectorFor(t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int            { return 4 }
func (m *mockEmbedder) ModelName() string          { return "mock-embed" }
func (m *mockEmbedder) Ping(context.Context) error { return nil }
func (m *mockEmbedder) Close() error               { return nil }

// mockLLM is a scripted completion service. Generate and Chat consume
// responses in order; after the script runs out, err or the last
// response repeats.
type mockLLM struct {
	responses []string
	calls     int
	chatCalls int
	lastChat  []driven.ChatMessage
	err       error
}

func (m *mockLLM) next() (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", fmt.Errorf("mock llm: no scripted response")
	}
	i := m.calls
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	m.calls++
	return m.responses[i], nil
}

func (m *mockLLM) Generate(_ context.Context, _ string, _ driven.GenerateOptions) (string, error) {
	return m.next()
}

func (m *mockLLM) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	m.chatCalls++
	m.lastChat = messages
	return m.next()
}

func (m *mockLLM) ModelName() string          { return "mock-llm" }
func (m *mockLLM) Ping(context.Context) error { return nil }
func (m *mockLLM) Close() error               { return nil }

// mockCompletionFactory hands out one shared mock client.
type mockCompletionFactory struct {
	llm *mockLLM
	err error
}

func (f *mockCompletionFactory) ForProfile(domain.ModelProfile) (driven.CompletionService, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.llm, nil
}

// mockScanner emits a fixed set of files.
type mockScanner struct {
	files    []driven.RawFile
	scanErrs []error
	lastOpts driven.ScanOptions
	watchErr error
}

func (s *mockScanner) Scan(_ context.Context, _ string, opts driven.ScanOptions) (<-chan driven.RawFile, <-chan error) {
	s.lastOpts = opts
	files := make(chan driven.RawFile, len(s.files))
	errs := make(chan error, len(s.scanErrs))
	for _, f := range s.files {
		files <- f
	}
	for _, e := range s.scanErrs {
		errs <- e
	}
	close(files)
	close(errs)
	return files, errs
}

func (s *mockScanner) Watch(ctx context.Context, _ string, _ chan<- string) error {
	if s.watchErr != nil {
		return s.watchErr
	}
	<-ctx.Done()
	return ctx.Err()
}

// mockNormaliserRegistry turns raw bytes straight into document content.
type mockNormaliserRegistry struct {
	err error
}

func (r *mockNormaliserRegistry) Normalise(_ context.Context, raw *driven.RawFile) (*driven.NormaliseResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &driven.NormaliseResult{
		Document: domain.Document{
			ID:      "doc-" + raw.URI,
			URI:     raw.URI,
			Title:   raw.URI,
			Content: string(raw.Content),
		},
	}, nil
}

func (r *mockNormaliserRegistry) Register(driven.Normaliser) {}

func (r *mockNormaliserRegistry) SupportedMIMETypes() []string { return []string{"text/plain"} }

// mockPipeline produces one chunk per document.
type mockPipeline struct {
	err error
}

func (p *mockPipeline) Process(_ context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if p.err != nil {
		return nil, p.err
	}
	return []domain.Chunk{
		{
			ID:         "chunk-" + doc.ID,
			DocumentID: doc.ID,
			Content:    doc.Content,
			Position:   0,
		},
	}, nil
}

// testCatalog is a fixed tool catalog for planner tests.
type testCatalog struct {
	names []string
}

func (c *testCatalog) Has(name string) bool {
	for _, n := range c.names {
		if n == name {
			return true
		}
	}
	return false
}

func (c *testCatalog) Names() []string { return c.names }

// testProfile is the model profile used across service tests.
var testProfile = domain.ModelProfile{
	Provider:    domain.AIProviderOllama,
	Model:       "test-model",
	Temperature: 0.1,
	MaxTokens:   512,
}
