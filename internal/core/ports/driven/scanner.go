package driven

import "context"

// ScanOptions bounds a filesystem scan.
type ScanOptions struct {
	// MaxFileBytes caps in-memory reads. Zero means no cap.
	MaxFileBytes int64

	// Sampled enables partial reads: oversized text files are read up
	// to the cap with Truncated set, and SamplePages is passed down to
	// page-aware normalisers via metadata.
	Sampled bool

	// SamplePages bounds page extraction for paginated formats in
	// sampled mode.
	SamplePages int
}

// FileScanner reads raw files from a path for ingestion.
type FileScanner interface {
	// Scan walks path (a file or directory) and emits one RawFile per
	// readable file. Per-file read errors go to the error channel and
	// never stop the walk. Both channels close when the walk finishes
	// or the context is cancelled.
	Scan(ctx context.Context, path string, opts ScanOptions) (<-chan RawFile, <-chan error)

	// Watch emits paths whose contents changed under root. It blocks
	// until the context is cancelled.
	Watch(ctx context.Context, root string, changed chan<- string) error
}
