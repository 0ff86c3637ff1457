package clause

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/bldr-labs/bldr/internal/core/domain"
)

const sampleNorm = `Introduction text before any clause.

1 General provisions
This standard applies to monolithic foundations.

1.1 Scope
Applies to buildings up to 75 m.

1.2 References
See related standards.

2 Requirements
2.1 Materials
Concrete of class B25 or higher shall be used.
2.1.1 Cement
Portland cement per the referenced standard.
2.1.1.1 This deep item stays inside its parent clause.
`

func TestProcessor_Name(t *testing.T) {
	if New().Name() != "clause-chunker" {
		t.Errorf("unexpected name %q", New().Name())
	}
}

func TestHasClauseMarkers(t *testing.T) {
	t.Run("detects numbered clauses", func(t *testing.T) {
		if !HasClauseMarkers(sampleNorm) {
			t.Error("expected clause markers to be detected")
		}
	})

	t.Run("plain prose has none", func(t *testing.T) {
		if HasClauseMarkers("Just a paragraph of text.\nAnother line.") {
			t.Error("expected no clause markers")
		}
	})

	t.Run("deep numbering alone does not count", func(t *testing.T) {
		if HasClauseMarkers("1.2.3.4 Too deep to be a boundary") {
			t.Error("numbering beyond MaxDepth must not count as a marker")
		}
	})
}

func TestProcessor_Process_Hierarchy(t *testing.T) {
	doc := &domain.Document{ID: "doc-1", Type: domain.DocTypeNormative, Content: sampleNorm}

	chunks, err := New().Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byClause := make(map[string]domain.Chunk)
	for _, c := range chunks {
		byClause[c.Clause()] = c
	}

	// Preamble is a flat chunk.
	pre, ok := byClause[""]
	if !ok {
		t.Fatal("expected a preamble chunk")
	}
	if !strings.Contains(pre.Content, "Introduction text") {
		t.Errorf("preamble content wrong: %q", pre.Content)
	}

	// Clause 2.1.1 carries its full path and keeps the deep item.
	leaf, ok := byClause["2.1.1"]
	if !ok {
		t.Fatal("expected chunk for clause 2.1.1")
	}
	wantPath := []string{"2", "2.1", "2.1.1"}
	if len(leaf.ClausePath) != len(wantPath) {
		t.Fatalf("expected path %v, got %v", wantPath, leaf.ClausePath)
	}
	for i := range wantPath {
		if leaf.ClausePath[i] != wantPath[i] {
			t.Errorf("path[%d] = %q, want %q", i, leaf.ClausePath[i], wantPath[i])
		}
	}
	if !strings.Contains(leaf.Content, "1.2.3.4") && !strings.Contains(leaf.Content, "deep item") {
		t.Errorf("deep numbering should stay inside clause 2.1.1: %q", leaf.Content)
	}

	// Positions are dense and ordered.
	for i, c := range chunks {
		if c.Position != i {
			t.Errorf("chunk %d has position %d", i, c.Position)
		}
	}
}

func TestProcessor_Process_EmptyContent(t *testing.T) {
	chunks, err := New().Process(context.Background(), &domain.Document{ID: "d"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks != nil {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}

// TestProcessor_Process_NeverSplitsClause is a property test over
// synthetic documents with nested clause numbering: every clause body
// line ends up whole inside exactly one chunk.
func TestProcessor_Process_NeverSplitsClause(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 25; trial++ {
		var b strings.Builder
		var bodies []string

		sections := rng.Intn(4) + 1
		for s := 1; s <= sections; s++ {
			fmt.Fprintf(&b, "%d Section heading\n", s)
			subs := rng.Intn(3) + 1
			for sub := 1; sub <= subs; sub++ {
				fmt.Fprintf(&b, "%d.%d Subsection\n", s, sub)
				items := rng.Intn(3) + 1
				for item := 1; item <= items; item++ {
					body := fmt.Sprintf("Body of clause %d.%d.%d with %d filler words.",
						s, sub, item, rng.Intn(50))
					// Oversized clauses must still be one chunk.
					if rng.Intn(3) == 0 {
						body += strings.Repeat(" More normative prose.", 200)
					}
					fmt.Fprintf(&b, "%d.%d.%d %s\n", s, sub, item, body)
					bodies = append(bodies, body)
				}
			}
		}

		doc := &domain.Document{ID: "synthetic", Type: domain.DocTypeNormative, Content: b.String()}
		chunks, err := New().Process(context.Background(), doc, nil)
		if err != nil {
			t.Fatalf("trial %d: unexpected error: %v", trial, err)
		}

		for _, body := range bodies {
			holders := 0
			for _, c := range chunks {
				if strings.Contains(c.Content, body) {
					holders++
				}
			}
			if holders != 1 {
				t.Fatalf("trial %d: clause body found in %d chunks, want exactly 1", trial, holders)
			}
		}
	}
}
