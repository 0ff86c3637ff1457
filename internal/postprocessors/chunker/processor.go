// Package chunker provides a fixed-window text chunking processor with
// sentence-aware boundaries and overlap between consecutive chunks.
package chunker

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bldr-labs/bldr/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// sentenceTerminators end a sentence for boundary adjustment.
const sentenceTerminators = ".!?\n"

// Processor splits document content into bounded windows. Window ends
// are pulled back to the nearest sentence terminator when one exists in
// the tail of the window, so sentences are not split mid-way.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new window chunker with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "window-chunker"
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from
// document content.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if doc.Content == "" {
		// Empty content produces no chunks
		return nil, nil
	}

	content := doc.Content
	contentLen := len(content)

	estimatedChunks := (contentLen / (p.chunkSize - p.overlap)) + 1
	chunks := make([]domain.Chunk, 0, estimatedChunks)

	position := 0
	start := 0

	for start < contentLen {
		end := start + p.chunkSize
		if end >= contentLen {
			end = contentLen
		} else {
			end = p.sentenceBoundary(content, start, end)
		}

		chunkContent := strings.TrimSpace(content[start:end])
		if chunkContent != "" {
			chunks = append(chunks, domain.Chunk{
				ID:         uuid.New().String(),
				DocumentID: doc.ID,
				Content:    chunkContent,
				Position:   position,
				Metadata:   map[string]any{"chunker": p.Name()},
			})
			position++
		}

		if end >= contentLen {
			break
		}
		next := runeFloor(content, end-p.overlap)
		if next <= start {
			next = runeCeil(content, start+1)
		}
		start = next
	}

	return chunks, nil
}

// sentenceBoundary pulls end back to just after the last sentence
// terminator in the back half of the window. Windows without a
// terminator are cut at the nearest rune start at or below the raw
// size, so multi-byte text (Cyrillic runs without punctuation in
// particular) is never sliced mid-rune.
func (p *Processor) sentenceBoundary(content string, start, end int) int {
	floor := start + p.chunkSize/2
	for i := end - 1; i > floor; i-- {
		if strings.ContainsRune(sentenceTerminators, rune(content[i])) {
			return i + 1
		}
	}
	return runeFloor(content, end)
}

// runeFloor returns the largest index at or below i that starts a rune.
func runeFloor(content string, i int) int {
	for i > 0 && !utf8.RuneStart(content[i]) {
		i--
	}
	return i
}

// runeCeil returns the smallest index at or above i that starts a rune
// or is the end of the string.
func runeCeil(content string, i int) int {
	for i < len(content) && !utf8.RuneStart(content[i]) {
		i++
	}
	return i
}
