// Package mcp hosts stackup's own MCP server and smoke-tests the servers it
// configures.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates the stackup MCP server.
func NewServer(version string) *server.MCPServer {
	return server.NewMCPServer(
		"stackup",
		version,
		server.WithToolCapabilities(false),
	)
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
