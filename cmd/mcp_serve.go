package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/protocollar/stackup/internal/jsonout"
	stackupmcp "github.com/protocollar/stackup/internal/mcp"
)

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP server on stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCPServe,
}

func runMCPServe(cmd *cobra.Command, args []string) error {
	// stdout carries the protocol
	jsonout.SetMsgOut(io.Discard)

	s := stackupmcp.NewServer(Version)
	registerMCPTools(s)
	return stackupmcp.Serve(s)
}
