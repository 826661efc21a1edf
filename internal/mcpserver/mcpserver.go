// Package mcpserver exposes the unused-dependency check as Model Context
// Protocol tools over stdio.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server and registers the unused-dep tools.
type Server struct {
	server  *mcp.Server
	version string
}

// NewServer creates a new MCP server with all tools and prompts registered.
func NewServer(version string) *Server {
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "unused-dep",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server, version: version}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "find_unused_dependencies",
		Description: describeFindUnused(),
	}, s.handleFindUnused)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_imports",
		Description: describeListImports(),
	}, s.handleListImports)
}
