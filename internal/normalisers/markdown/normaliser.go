package markdown

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
)

var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser converts Markdown to plain text while preserving the
// clause numbering that normative documents carry in headings and
// numbered lists.
type Normaliser struct{}

func New() *Normaliser {
	return &Normaliser{}
}

func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

func (n *Normaliser) Priority() int {
	return 50
}

func (n *Normaliser) Normalise(_ context.Context, raw *driven.RawFile) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	text := string(raw.Content)

	now := time.Now()
	doc := domain.Document{
		ID:        uuid.New().String(),
		URI:       raw.URI,
		Title:     extractTitle(text, raw.URI),
		Content:   stripMarkdown(text),
		Metadata:  copyMetadata(raw.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata["mime_type"] = raw.MIMEType
	doc.Metadata["format"] = "markdown"
	if raw.Truncated {
		doc.Metadata["truncated"] = true
	}

	return &driven.NormaliseResult{Document: doc}, nil
}

// extractTitle uses the first H1 heading, falling back to a cleaned
// filename.
func extractTitle(content, uri string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}

	filename := filepath.Base(uri)
	filename = strings.TrimSuffix(filename, filepath.Ext(filename))
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}

// Markdown constructs removed or rewritten during stripping. Numbered
// lines stay intact: normative texts carry clause numbering as
// "5.2.1 ..." and the clause chunker depends on it. Table cell text
// survives because pipes are kept as separators.
var strippers = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile("(?s)```[^`]*```"), ""},       // fenced code blocks
	{regexp.MustCompile("`[^`]+`"), ""},               // inline code
	{regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`), ""},  // images
	{regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`), "$1"}, // links keep their text
	{regexp.MustCompile(`(?m)^#{1,6}\s+`), ""},        // heading markers
	{regexp.MustCompile(`(?m)^>\s*`), ""},             // blockquotes
	{regexp.MustCompile(`(?m)^\s*\|?[-:| ]+\|[-:| ]*$`), ""}, // table separator rows
	{regexp.MustCompile(`(?m)^[-]{3,}\s*$`), ""},      // horizontal rules
	{regexp.MustCompile(`(?m)^\s*[-*+]\s+`), ""},      // bullet markers, numbered lists stay
	{regexp.MustCompile(`\n{3,}`), "\n\n"},            // collapse blank runs
}

func stripMarkdown(content string) string {
	for _, s := range strippers {
		content = s.re.ReplaceAllString(content, s.repl)
	}
	for _, marker := range []string{"**", "__", "*"} {
		content = strings.ReplaceAll(content, marker, "")
	}
	return strings.TrimSpace(content)
}

func copyMetadata(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
