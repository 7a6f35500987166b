package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/auditwise/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets AI assistants run design audits and query saved audits.
Configure it in an MCP client with:

  {
    "mcpServers": {
      "auditwise": { "command": "auditwise", "args": ["mcp"] }
    }
  }

Available tools: auditwise_scan_design, auditwise_parse_issues,
auditwise_list_audits, auditwise_get_audit, auditwise_update_issue,
auditwise_decode_share, auditwise_export_report`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	scanner, err := newScanner()
	if err != nil {
		return err
	}
	srv := mcp.NewServer(s, scanner, viper.GetString("ai.api_key"), viper.GetString("figma.token"), currentUser())
	return srv.ServeStdio(ctx)
}
