package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bldr-labs/bldr/internal/core/domain"
)

var (
	searchLimit int
	searchJSON  bool
	searchType  string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed documents",
	Long: `Performs semantic search across all indexed documents and prints
the matching passages with their retrieval scores. Results below the
evidence threshold are not shown.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (0 = default)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringVarP(&searchType, "type", "t", "", "restrict to one document type (normative, estimate, schedule, contract, generic)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := requireService(searchService, "search"); err != nil {
		return err
	}

	var types []domain.DocumentType
	if searchType != "" {
		docType := domain.DocumentType(searchType)
		if !docType.IsValid() {
			return fmt.Errorf("unknown document type %q", searchType)
		}
		types = append(types, docType)
	}

	results, err := searchService.Search(cmd.Context(), args[0], searchLimit, types...)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientEvidence) {
			cmd.Println("No results above the evidence threshold.")
			return nil
		}
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.RetrievalResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.RetrievalResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		title := results[i].DocumentTitle
		if title == "" {
			title = results[i].Chunk.DocumentID
		}

		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, results[i].Score)
		if clause := results[i].Chunk.Clause(); clause != "" {
			cmd.Printf("      Clause: %s\n", clause)
		}
		cmd.Printf("      %s\n", snippet(results[i].Chunk.Content, 160))
		cmd.Println()
	}

	return nil
}

// snippet truncates content to max runes for table output.
func snippet(content string, max int) string {
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "..."
}
