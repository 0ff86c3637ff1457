package chunker

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bldr-labs/bldr/internal/core/domain"
)

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		p := New()
		if p.chunkSize != DefaultChunkSize {
			t.Errorf("expected chunkSize %d, got %d", DefaultChunkSize, p.chunkSize)
		}
		if p.overlap != DefaultChunkOverlap {
			t.Errorf("expected overlap %d, got %d", DefaultChunkOverlap, p.overlap)
		}
	})

	t.Run("custom chunk size", func(t *testing.T) {
		p := New(WithChunkSize(500))
		if p.chunkSize != 500 {
			t.Errorf("expected chunkSize 500, got %d", p.chunkSize)
		}
	})

	t.Run("overlap exceeds chunk size", func(t *testing.T) {
		p := New(WithChunkSize(100), WithOverlap(150))
		if p.overlap >= p.chunkSize {
			t.Error("overlap should be reduced when it exceeds chunk size")
		}
	})

	t.Run("zero values ignored", func(t *testing.T) {
		p := New(WithChunkSize(0), WithOverlap(-1))
		if p.chunkSize != DefaultChunkSize {
			t.Errorf("expected default chunkSize, got %d", p.chunkSize)
		}
	})
}

func TestProcessor_Name(t *testing.T) {
	p := New()
	if p.Name() != "window-chunker" {
		t.Errorf("expected name 'window-chunker', got '%s'", p.Name())
	}
}

func TestProcessor_Process_EmptyContent(t *testing.T) {
	p := New()
	doc := &domain.Document{ID: "doc-1"}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks != nil {
		t.Errorf("expected nil chunks for empty content, got %d", len(chunks))
	}
}

func TestProcessor_Process_SmallContent(t *testing.T) {
	p := New()
	doc := &domain.Document{ID: "doc-1", Content: "Short text."}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "Short text." {
		t.Errorf("unexpected content: %q", chunks[0].Content)
	}
	if chunks[0].DocumentID != "doc-1" {
		t.Errorf("expected DocumentID doc-1, got %s", chunks[0].DocumentID)
	}
	if len(chunks[0].ClausePath) != 0 {
		t.Error("window chunks must have an empty clause path")
	}
}

func TestProcessor_Process_SentenceBoundary(t *testing.T) {
	// Sentences of ~40 chars; chunk size 100 should cut at a period,
	// not mid-sentence.
	sentence := "The concrete mix must be kept moist now. "
	content := strings.Repeat(sentence, 20)
	p := New(WithChunkSize(100), WithOverlap(20))
	doc := &domain.Document{ID: "doc-1", Content: content}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i, c := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(c.Content, ".") {
			t.Errorf("chunk %d does not end at a sentence boundary: %q", i, c.Content)
		}
	}
}

func TestProcessor_Process_CyrillicWithoutTerminators(t *testing.T) {
	// No sentence terminators, so windows are cut at the raw size; on
	// two-byte Cyrillic runes every cut must still land on a rune
	// boundary.
	content := strings.TrimSpace(strings.Repeat("бетонирование опалубки ", 40))
	p := New(WithChunkSize(101), WithOverlap(13))
	doc := &domain.Document{ID: "doc-1", Content: content}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i, c := range chunks {
		if !utf8.ValidString(c.Content) {
			t.Errorf("chunk %d sliced mid-rune: %q", i, c.Content)
		}
	}
}

func TestProcessor_Process_Overlap(t *testing.T) {
	content := strings.Repeat("abcdefghij", 50) // no terminators: raw cuts
	p := New(WithChunkSize(100), WithOverlap(20))
	doc := &domain.Document{ID: "doc-1", Content: content}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Consecutive chunks share the configured overlap.
	first := chunks[0].Content
	second := chunks[1].Content
	if !strings.HasPrefix(second, first[len(first)-20:]) {
		t.Error("expected 20-character overlap between consecutive chunks")
	}
}

func TestProcessor_Process_Positions(t *testing.T) {
	content := strings.Repeat("word ", 500)
	p := New(WithChunkSize(200), WithOverlap(50))
	doc := &domain.Document{ID: "doc-1", Content: content}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, c := range chunks {
		if c.Position != i {
			t.Errorf("chunk %d has position %d", i, c.Position)
		}
	}
}
