// Package clause provides a chunking processor for normative documents
// with numbered clause hierarchies. Each leaf clause becomes exactly
// one chunk regardless of size, so a chunk boundary never splits a
// numbered clause.
package clause

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/bldr-labs/bldr/internal/core/domain"
)

// MaxDepth is the deepest clause level treated as a chunk boundary.
// Deeper numbering (e.g. 5.2.1.4) stays inside its parent clause.
const MaxDepth = 3

// headingPattern matches a clause heading at the start of a line:
// "5 Scope", "5.2 Materials", "5.2.1. Concrete", "7) Delivery".
var headingPattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)*)[.)]?\s+\S`)

// numberPattern extracts the clause number from a matched heading line.
var numberPattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)*)`)

// Processor chunks normative documents along their clause hierarchy.
// It implements the PostProcessor interface.
type Processor struct{}

// New creates a new clause chunker.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "clause-chunker"
}

// HasClauseMarkers reports whether the content contains at least one
// clause heading. Callers fall back to window chunking when it is false.
func HasClauseMarkers(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if m := headingPattern.FindStringSubmatch(line); m != nil && depth(m[1]) <= MaxDepth {
			return true
		}
	}
	return false
}

// segment is an intermediate clause section during the walk.
type segment struct {
	number string
	lines  []string
}

// Process splits the document at clause headings, up to MaxDepth
// levels. Text before the first heading becomes a flat preamble chunk.
// Input chunks are ignored.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if doc.Content == "" {
		return nil, nil
	}

	segments := splitSegments(doc.Content)

	chunks := make([]domain.Chunk, 0, len(segments))
	position := 0
	for _, seg := range segments {
		content := strings.TrimSpace(strings.Join(seg.lines, "\n"))
		if content == "" {
			continue
		}

		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Content:    content,
			Position:   position,
			ClausePath: clausePath(seg.number),
			Metadata:   map[string]any{"chunker": p.Name()},
		})
		position++
	}

	return chunks, nil
}

// splitSegments walks the text line by line, opening a new segment at
// every clause heading within MaxDepth.
func splitSegments(content string) []segment {
	var segments []segment
	current := segment{} // preamble

	for _, line := range strings.Split(content, "\n") {
		if m := headingPattern.FindStringSubmatch(line); m != nil && depth(m[1]) <= MaxDepth {
			segments = append(segments, current)
			current = segment{number: numberPattern.FindStringSubmatch(line)[1]}
		}
		current.lines = append(current.lines, line)
	}
	segments = append(segments, current)

	return segments
}

// clausePath expands a clause number into its hierarchy, outermost
// first: "5.2.1" -> ["5", "5.2", "5.2.1"]. A preamble (empty number)
// yields nil, marking a flat chunk.
func clausePath(number string) []string {
	if number == "" {
		return nil
	}

	parts := strings.Split(number, ".")
	path := make([]string, 0, len(parts))
	for i := range parts {
		path = append(path, strings.Join(parts[:i+1], "."))
	}
	return path
}

func depth(number string) int {
	return strings.Count(number, ".") + 1
}
