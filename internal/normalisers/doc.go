// Package normalisers provides Normaliser implementations for the
// document formats found in construction project archives: PDF, DOCX,
// Markdown and plain text. Each normaliser extracts text from one or
// more MIME types and preserves clause numbering where the format
// carries it.
//
// Normalisers are registered with the NormaliserRegistry at startup;
// the registry picks the highest-priority normaliser for a file's
// detected MIME type.
package normalisers
