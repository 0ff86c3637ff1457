package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/bldr-labs/bldr/internal/core/domain"
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
	"github.com/bldr-labs/bldr/internal/core/ports/driving"
	"github.com/bldr-labs/bldr/internal/logger"
)

// Ensure IngestOrchestrator implements the interface.
var _ driving.IngestService = (*IngestOrchestrator)(nil)

// watchDebounce batches rapid filesystem events into one ingestion run.
const watchDebounce = 500 * time.Millisecond

// IngestOrchestrator runs the ingestion pipeline: scan, deduplicate,
// normalise, classify, chunk, embed, persist, index. Each file runs in
// isolation; one corrupt file fails only its own document.
type IngestOrchestrator struct {
	scanner    driven.FileScanner
	registry   driven.NormaliserRegistry
	pipeline   driven.PostProcessorPipeline
	docStore   driven.DocumentStore
	tracker    *ProcessTracker
	embedder   driven.EmbeddingService
	embedCache driven.EmbeddingCache
	vectors    driven.VectorIndex
	limiter    *rate.Limiter
	settings   domain.IngestSettings
	batchSize  int
}

// IngestOption configures the orchestrator.
type IngestOption func(*IngestOrchestrator)

// WithEmbedRateLimit bounds embedding requests per second.
func WithEmbedRateLimit(rps float64) IngestOption {
	return func(o *IngestOrchestrator) {
		o.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithEmbedBatchSize bounds texts per embedding request.
func WithEmbedBatchSize(n int) IngestOption {
	return func(o *IngestOrchestrator) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// NewIngestOrchestrator creates the ingestion service.
// The embedder, embedCache and vectors are optional as a group - when
// the embedder is nil, documents are stored but not semantically
// indexed.
func NewIngestOrchestrator(
	scanner driven.FileScanner,
	registry driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
	docStore driven.DocumentStore,
	tracker *ProcessTracker,
	embedder driven.EmbeddingService,
	embedCache driven.EmbeddingCache,
	vectors driven.VectorIndex,
	settings domain.IngestSettings,
	opts ...IngestOption,
) *IngestOrchestrator {
	o := &IngestOrchestrator{
		scanner:    scanner,
		registry:   registry,
		pipeline:   pipeline,
		docStore:   docStore,
		tracker:    tracker,
		embedder:   embedder,
		embedCache: embedCache,
		vectors:    vectors,
		settings:   settings,
		batchSize:  16,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Ingest processes a file or directory.
func (o *IngestOrchestrator) Ingest(ctx context.Context, path string, mode domain.IngestMode) (*driving.IngestReport, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: ingest mode %q", domain.ErrInvalidInput, mode)
	}

	proc, err := o.tracker.Begin(ctx, domain.ProcessKindIngest, map[string]any{
		"path": path,
		"mode": string(mode),
	})
	if err != nil {
		return nil, err
	}
	if err := o.tracker.Transition(ctx, proc.ID, domain.ProcessRunning, "scanning "+path); err != nil {
		return nil, err
	}

	report := &driving.IngestReport{
		ProcessID: proc.ID,
		Failures:  make(map[string]string),
	}

	scanOpts := driven.ScanOptions{
		MaxFileBytes: o.settings.MaxFileBytes,
		Sampled:      mode == domain.IngestModeSampled,
		SamplePages:  o.settings.SamplePages,
	}

	logger.Section("Ingest: %s (%s mode)", path, mode)

	files, errs := o.scanner.Scan(ctx, path, scanOpts)
	for files != nil || errs != nil {
		select {
		case <-ctx.Done():
			o.finish(proc.ID, report, ctx.Err())
			return report, ctx.Err()

		case raw, ok := <-files:
			if !ok {
				files = nil
				continue
			}
			if o.tracker.Cancelled(proc.ID) {
				o.finish(proc.ID, report, domain.ErrProcessCancelled)
				return report, domain.ErrProcessCancelled
			}
			o.ingestOne(ctx, &raw, report)
			processed := report.Ingested + report.Skipped + report.Failed
			_ = o.tracker.Progress(ctx, proc.ID, 0, fmt.Sprintf("processed %d files", processed))

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Error("Scan error: %v", err)
			report.Failed++
			report.Failures[path] = err.Error()
		}
	}

	o.finish(proc.ID, report, nil)
	logger.Info("Ingest finished: %d ingested, %d skipped, %d failed",
		report.Ingested, report.Skipped, report.Failed)
	return report, nil
}

// ingestOne runs the per-file pipeline. Failures are recorded on the
// report and, when the document got far enough to exist, on the
// document itself.
func (o *IngestOrchestrator) ingestOne(ctx context.Context, raw *driven.RawFile, report *driving.IngestReport) {
	doc, err := o.processFile(ctx, raw)
	switch {
	case errors.Is(err, domain.ErrDuplicateContent):
		logger.Debug("Skipping %s: identical content already indexed", raw.URI)
		report.Skipped++
	case err != nil:
		// Per-file failures must reach the user even without -v; the
		// batch itself still succeeds.
		logger.Error("Failed to ingest %s: %v", raw.URI, err)
		report.Failed++
		report.Failures[raw.URI] = err.Error()
		if doc != nil {
			doc.Status = domain.StatusFailed
			doc.FailReason = err.Error()
			doc.UpdatedAt = time.Now()
			if saveErr := o.docStore.SaveDocument(ctx, doc); saveErr != nil {
				logger.Warn("Failed to record failure for %s: %v", raw.URI, saveErr)
			}
		}
	default:
		report.Ingested++
	}
}

// processFile is the isolated pipeline for one file.
func (o *IngestOrchestrator) processFile(ctx context.Context, raw *driven.RawFile) (*domain.Document, error) {
	// 1. DEDUPLICATE by content hash before any expensive work
	hash := contentHash(raw.Content)
	existing, err := o.docStore.GetDocumentByHash(ctx, hash)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrDuplicateContent
	}

	// 2. NORMALISE (produces Document with Content)
	result, err := o.registry.Normalise(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("normalise: %w", err)
	}
	doc := result.Document
	doc.ContentHash = hash
	doc.Status = domain.StatusExtracted

	// 3. CLASSIFY document type; the chunking pipeline routes on it
	doc.Type = DetectDocumentType(doc.Title, doc.Content)
	logger.Debug("Classified %s as %s", doc.URI, doc.Type)

	// 4. RUN POST-PROCESSOR PIPELINE (produces Chunks)
	chunks, err := o.pipeline.Process(ctx, &doc)
	if err != nil {
		return &doc, fmt.Errorf("chunk: %w", err)
	}
	doc.Status = domain.StatusChunked

	// 5. GENERATE EMBEDDINGS (if service available)
	if o.embedder != nil {
		if err := o.embedChunks(ctx, chunks); err != nil {
			return &doc, fmt.Errorf("embed: %w", err)
		}
	}

	// 6. PERSIST
	doc.Status = domain.StatusIndexed
	doc.UpdatedAt = time.Now()
	if err := o.docStore.SaveDocument(ctx, &doc); err != nil {
		return &doc, fmt.Errorf("save document: %w", err)
	}
	if err := o.docStore.SaveChunks(ctx, chunks); err != nil {
		return &doc, fmt.Errorf("save chunks: %w", err)
	}

	// 7. INDEX FOR VECTOR SEARCH (if available)
	if o.vectors != nil && o.embedder != nil {
		for _, chunk := range chunks {
			if chunk.Embedding == nil {
				continue
			}
			record := driven.VectorRecord{
				ChunkID:    chunk.ID,
				DocumentID: doc.ID,
				Type:       doc.Type,
				Embedding:  chunk.Embedding,
			}
			if err := o.vectors.Upsert(ctx, record); err != nil {
				return &doc, fmt.Errorf("index vector: %w", err)
			}
		}
	}

	logger.Debug("Ingested %s: %d chunks", doc.URI, len(chunks))
	return &doc, nil
}

// embedChunks fills chunk embeddings, consulting the cache first and
// batching cache misses.
func (o *IngestOrchestrator) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	var missIdx []int
	var missTexts []string

	for i := range chunks {
		key := contentHash([]byte(chunks[i].Content))
		if o.embedCache != nil {
			embedding, hit, err := o.embedCache.Get(ctx, key)
			if err != nil {
				return fmt.Errorf("embedding cache: %w", err)
			}
			if hit {
				chunks[i].Embedding = embedding
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, chunks[i].Content)
	}

	for start := 0; start < len(missTexts); start += o.batchSize {
		end := start + o.batchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}

		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		embeddings, err := o.embedder.EmbedBatch(ctx, missTexts[start:end])
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		if len(embeddings) != end-start {
			return fmt.Errorf("embed batch: got %d embeddings for %d texts", len(embeddings), end-start)
		}

		for j, embedding := range embeddings {
			idx := missIdx[start+j]
			chunks[idx].Embedding = embedding
			if o.embedCache != nil {
				key := contentHash([]byte(chunks[idx].Content))
				if err := o.embedCache.PutIfAbsent(ctx, key, embedding); err != nil {
					logger.Warn("Embedding cache write failed: %v", err)
				}
			}
		}
	}

	return nil
}

// Watch re-triggers ingestion when files under path change. Events are
// debounced so editors that write in bursts trigger one run.
func (o *IngestOrchestrator) Watch(ctx context.Context, path string, mode domain.IngestMode) error {
	changed := make(chan string, 64)

	go func() {
		pending := make(map[string]struct{})
		var timer *time.Timer
		var fire <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return
			case p := <-changed:
				pending[p] = struct{}{}
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
				} else {
					timer.Reset(watchDebounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				for p := range pending {
					if _, err := o.Ingest(ctx, p, mode); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("Watched ingest of %s failed: %v", p, err)
					}
				}
				pending = make(map[string]struct{})
			}
		}
	}()

	return o.scanner.Watch(ctx, path, changed)
}

func (o *IngestOrchestrator) finish(procID string, report *driving.IngestReport, cause error) {
	// Use a fresh context: the run's context may already be cancelled
	// and the terminal event must still be recorded.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := fmt.Sprintf("%d ingested, %d skipped, %d failed", report.Ingested, report.Skipped, report.Failed)
	var err error
	switch {
	case errors.Is(cause, domain.ErrProcessCancelled) || errors.Is(cause, context.Canceled):
		err = o.tracker.Transition(ctx, procID, domain.ProcessCancelled, msg)
	case errors.Is(cause, context.DeadlineExceeded):
		err = o.tracker.Transition(ctx, procID, domain.ProcessTimeout, msg)
	case cause != nil:
		err = o.tracker.Transition(ctx, procID, domain.ProcessFailed, msg)
	default:
		err = o.tracker.Transition(ctx, procID, domain.ProcessCompleted, msg)
	}
	if err != nil {
		logger.Warn("Failed to finalise process %s: %v", procID, err)
	}
}

// contentHash returns the hex SHA-256 of the given bytes. It keys both
// the deduplication registry and the embedding cache.
func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
