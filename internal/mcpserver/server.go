// Package mcpserver exposes drover over the Model Context Protocol, so
// editor and agent hosts can validate definitions, list the library,
// launch runs, and inspect recorded runs as MCP tools.
package mcpserver

import (
	"log/slog"

	"github.com/drover-dev/drover/internal/config"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates an MCP server with the drover tools registered.
func NewServer(cfg *config.Config, logger *slog.Logger, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"drover",
		version,
		server.WithToolCapabilities(true),
	)

	h := &Handlers{cfg: cfg, logger: logger}

	s.AddTool(
		mcp.NewTool("drover/validate",
			mcp.WithDescription("Validate a drover agent definition YAML file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the agent definition YAML file")),
		),
		h.HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("drover/agents",
			mcp.WithDescription("List the agents in the configured library"),
		),
		h.HandleAgents,
	)

	s.AddTool(
		mcp.NewTool("drover/run",
			mcp.WithDescription("Run an agent from the library to a terminal state"),
			mcp.WithString("agent", mcp.Required(), mcp.Description("Name of the agent to run")),
			mcp.WithObject("inputs", mcp.Description("Run inputs as key/value pairs")),
		),
		h.HandleRun,
	)

	s.AddTool(
		mcp.NewTool("drover/runs",
			mcp.WithDescription("List recorded runs, or show one run with its events"),
			mcp.WithString("run_id", mcp.Description("Run ID to show in detail (optional)")),
		),
		h.HandleRuns,
	)

	s.AddTool(
		mcp.NewTool("drover/schema",
			mcp.WithDescription("Export the agent definition JSON Schema"),
		),
		h.HandleSchema,
	)

	return s
}
