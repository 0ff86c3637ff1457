package cli

import (
	"github.com/spf13/cobra"

	"github.com/bldr-labs/bldr/internal/adapters/driving/mcp"
	"github.com/bldr-labs/bldr/internal/core/ports/driven"
)

var mcpPort int

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server",
	Long: `Serve the knowledge base over the Model Context Protocol.

By default the server speaks stdio, which is what MCP hosts expect when
they spawn the binary. With --port it serves streamable HTTP instead.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireService(searchService, "search"); err != nil {
			return err
		}

		var docStore driven.DocumentStore
		if store != nil {
			docStore = store.DocumentStore()
		}

		server, err := mcp.NewServer(&mcp.Ports{
			Search:    searchService,
			Query:     queryService,
			Process:   processService,
			Documents: docStore,
		})
		if err != nil {
			return err
		}

		if mcpPort > 0 {
			cmd.Printf("Serving MCP over HTTP on port %d\n", mcpPort)
			return server.RunHTTP(cmd.Context(), mcpPort)
		}
		return server.Run(cmd.Context())
	},
}

func init() {
	mcpCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "serve over HTTP on this port instead of stdio")
	rootCmd.AddCommand(mcpCmd)
}
