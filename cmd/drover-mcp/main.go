// Package main provides the drover-mcp binary, an MCP stdio server for
// AI agent hosts.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/mcpserver"
	"github.com/mark3labs/mcp-go/server"
)

var version = "0.1.0"

func main() {
	projectDir := flag.String("directory", ".", "project directory")
	flag.Parse()

	cfg, err := config.Load(*projectDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg.WorkspaceDir = resolvePath(*projectDir, cfg.WorkspaceDir)
	cfg.StorePath = resolvePath(*projectDir, cfg.StorePath)
	cfg.Agent.Library = resolvePath(*projectDir, cfg.Agent.Library)
	cfg.Log.File = resolvePath(*projectDir, cfg.Log.File)

	// Stdout carries the MCP protocol; logs go to stderr and the file.
	logger, cleanup := config.SetupLogger(cfg.Log)
	defer cleanup()
	slog.SetDefault(logger)

	s := mcpserver.NewServer(cfg, logger, version)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func resolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
