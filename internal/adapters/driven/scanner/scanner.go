// Package scanner reads construction document files from the local
// filesystem and detects their MIME types for normalisation.
package scanner

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/bldr-labs/bldr/internal/core/ports/driven"
	"github.com/bldr-labs/bldr/internal/logger"
)

// Ensure Scanner implements the interface.
var _ driven.FileScanner = (*Scanner)(nil)

// extensionMIME maps document extensions that mime.TypeByExtension
// resolves poorly or not at all.
var extensionMIME = map[string]string{
	".md":   "text/markdown",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".tsv":  "text/tab-separated-values",
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".json": "application/json",
	".xml":  "application/xml",
}

// wholeFileMIME lists formats that are unreadable when truncated.
var wholeFileMIME = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// Scanner walks directories and reads files into RawFile values.
type Scanner struct{}

// New creates a filesystem scanner.
func New() *Scanner {
	return &Scanner{}
}

// Scan walks path and emits one RawFile per readable file.
func (s *Scanner) Scan(ctx context.Context, path string, opts driven.ScanOptions) (<-chan driven.RawFile, <-chan error) {
	files := make(chan driven.RawFile)
	errs := make(chan error, 1)

	go func() {
		defer close(files)
		defer close(errs)

		info, err := os.Stat(path)
		if err != nil {
			errs <- fmt.Errorf("stat %s: %w", path, err)
			return
		}

		if !info.IsDir() {
			s.emitFile(ctx, path, info.Size(), opts, files, errs)
			return
		}

		walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable entry, report and keep walking.
				sendErr(ctx, errs, fmt.Errorf("walk %s: %w", p, err))
				return nil
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") && p != path {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			fi, err := d.Info()
			if err != nil {
				sendErr(ctx, errs, fmt.Errorf("stat %s: %w", p, err))
				return nil
			}
			s.emitFile(ctx, p, fi.Size(), opts, files, errs)
			return nil
		})
		if walkErr != nil && ctx.Err() == nil {
			sendErr(ctx, errs, walkErr)
		}
	}()

	return files, errs
}

func (s *Scanner) emitFile(
	ctx context.Context,
	path string,
	size int64,
	opts driven.ScanOptions,
	files chan<- driven.RawFile,
	errs chan<- error,
) {
	mimeType := DetectMIME(path, nil)

	content, truncated, err := readBounded(path, size, mimeType, opts)
	if err != nil {
		sendErr(ctx, errs, err)
		return
	}

	if mimeType == "" {
		mimeType = DetectMIME(path, content)
	}

	raw := driven.RawFile{
		URI:       path,
		MIMEType:  mimeType,
		Content:   content,
		Truncated: truncated,
		Metadata:  map[string]any{"size_bytes": size},
	}
	if opts.Sampled && opts.SamplePages > 0 {
		raw.Metadata["sample_pages"] = opts.SamplePages
	}

	select {
	case files <- raw:
	case <-ctx.Done():
	}
}

// readBounded reads a file honouring the size cap. Text files may be
// truncated in sampled mode; whole-file formats are always read fully
// because a partial ZIP or PDF is garbage.
func readBounded(path string, size int64, mimeType string, opts driven.ScanOptions) ([]byte, bool, error) {
	overCap := opts.MaxFileBytes > 0 && size > opts.MaxFileBytes

	if overCap && !wholeFileMIME[mimeType] {
		if !opts.Sampled {
			return nil, false, fmt.Errorf("%s: file exceeds %d byte limit", path, opts.MaxFileBytes)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, false, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()

		content, err := io.ReadAll(io.LimitReader(f, opts.MaxFileBytes))
		if err != nil {
			return nil, false, fmt.Errorf("read %s: %w", path, err)
		}
		return content, true, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return content, false, nil
}

// DetectMIME resolves a file's MIME type from its extension, falling
// back to content sniffing when the extension is unknown.
func DetectMIME(path string, content []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mt, ok := extensionMIME[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	if content != nil {
		return http.DetectContentType(content)
	}
	return ""
}

// Watch emits paths whose contents change under root. New directories
// are added to the watch as they appear.
func (s *Scanner) Watch(ctx context.Context, root string, changed chan<- string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && !strings.HasPrefix(d.Name(), ".") {
			return watcher.Add(p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}

	logger.Info("Watching %s for changes", root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				watcher.Add(event.Name)
				continue
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			select {
			case changed <- event.Name:
			case <-ctx.Done():
				return ctx.Err()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)
		}
	}
}

func sendErr(ctx context.Context, errs chan<- error, err error) {
	select {
	case errs <- err:
	case <-ctx.Done():
	}
}
