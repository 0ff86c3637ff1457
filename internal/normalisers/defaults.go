package normalisers

import (
	"github.com/bldr-labs/bldr/internal/normalisers/docx"
	"github.com/bldr-labs/bldr/internal/normalisers/markdown"
	"github.com/bldr-labs/bldr/internal/normalisers/pdf"
	"github.com/bldr-labs/bldr/internal/normalisers/plaintext"
)

// RegisterDefaults registers the built-in normalisers.
func RegisterDefaults(r *Registry) {
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(docx.New())
	r.Register(pdf.New())
}

// DefaultRegistry builds a registry with all built-in normalisers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}
