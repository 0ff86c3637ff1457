package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bldr-labs/bldr/internal/core/domain"
)

var (
	askRole    string
	askSession string
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the ingested documents",
	Long: `Answers a free-text question using the knowledge base. The answer
cites the source clauses it is grounded on; when the evidence is too
weak the answer says so instead of guessing.

Examples:
  bldr ask "Какая минимальная температура бетонирования по СП 70?"
  bldr ask "Сводка по графику работ на июль" --role project-manager`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askRole, "role", "", "role hint for single-step plans")
	askCmd.Flags().StringVar(&askSession, "session", "", "session identifier for grouping queries")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := requireService(queryService, "query"); err != nil {
		return err
	}

	answer, err := queryService.Ask(cmd.Context(), args[0], domain.AskOptions{
		RoleHint:  askRole,
		SessionID: askSession,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if askJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(answer.Text)
	cmd.Println()

	if len(answer.Citations) > 0 {
		cmd.Println("Sources:")
		for _, c := range answer.Citations {
			if c.Clause != "" {
				cmd.Printf("  [%d] %s, п. %s (%.2f)\n", c.Marker, c.Document, c.Clause, c.Score)
			} else {
				cmd.Printf("  [%d] %s (%.2f)\n", c.Marker, c.Document, c.Score)
			}
		}
	}

	cmd.Printf("Confidence: %.2f\n", answer.Confidence)
	for _, failure := range answer.PartialFailures {
		cmd.Printf("  warning: %s\n", failure)
	}

	return nil
}
