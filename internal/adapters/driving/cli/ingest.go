package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bldr-labs/bldr/internal/core/domain"
)

var (
	ingestMode  string
	ingestWatch bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest documents into the knowledge base",
	Long: `Scans a file or directory, extracts text, detects the document type
and indexes the content for retrieval.

Sampled mode bounds the work per file (page-limited PDF extraction,
size-capped reads) for quick first passes over large archives:

  bldr ingest ./docs --mode sampled

Watch mode keeps running and re-ingests files as they change:

  bldr ingest ./docs --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestMode, "mode", "m", string(domain.IngestModeFull), "ingest mode: full or sampled")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "watch for changes and re-ingest")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := requireService(ingestService, "ingest"); err != nil {
		return err
	}

	path := args[0]
	mode := domain.IngestMode(ingestMode)
	if !mode.IsValid() {
		return fmt.Errorf("invalid mode %q: use full or sampled", ingestMode)
	}

	if ingestWatch {
		cmd.Printf("Watching %s for changes (Ctrl+C to stop)...\n", path)
		return ingestService.Watch(cmd.Context(), path, mode)
	}

	cmd.Printf("Ingesting %s...\n", path)

	report, err := ingestService.Ingest(cmd.Context(), path, mode)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Printf("Ingested %d, skipped %d (duplicates), failed %d.\n",
		report.Ingested, report.Skipped, report.Failed)
	for path, reason := range report.Failures {
		cmd.Printf("  failed: %s: %s\n", path, reason)
	}
	cmd.Printf("Process: %s\n", report.ProcessID)

	return nil
}
