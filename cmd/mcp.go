package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jtmorrow/tick/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients query and edit issues natively. Configure with:

  {
    "mcpServers": {
      "tick": { "command": "tick", "args": ["mcp"] }
    }
  }

Available tools: tick_list_issues, tick_create_issue, tick_update_issue,
tick_list_tags, tick_tag_issue, tick_list_awards`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getController()
		if err != nil {
			return err
		}
		srv := mcp.NewServer(c)
		return srv.ServeStdio(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
