package cmd

import "github.com/spf13/cobra"

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server for AI agent integration, and checks of configured servers",
	Long: `MCP server for AI agent integration.

stackup includes a built-in Model Context Protocol (MCP) server that lets AI
agents inspect a project's setup without running the interactive pipeline.

SETUP

  Claude Code (recommended):

    claude mcp add stackup -- stackup mcp serve

  Manual .mcp.json (Claude Code, Windsurf, etc.):

    {
      "mcpServers": {
        "stackup": {
          "command": "stackup",
          "args": ["mcp", "serve"]
        }
      }
    }

AVAILABLE TOOLS

  prerequisites_check   Detect the platform and check the required tools
  servers_list          List MCP servers, enablement and missing credentials
  credentials_status    Which credentials are configured (never the values)
  config_show           Show the resolved stackup.yaml profile

Every tool except prerequisites_check takes a "dir" parameter naming the
project directory.

VERIFYING CONFIGURED SERVERS

  stackup mcp verify starts each enabled server in the project's .mcp.json,
  performs the MCP handshake, and lists its tools.`,
}
