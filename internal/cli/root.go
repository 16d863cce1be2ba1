// Package cli provides the command-line interface for drover.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/drover-dev/drover/internal/adapters/sqlite"
	"github.com/drover-dev/drover/internal/config"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	// Global flags
	projectDir string
	verbose    bool

	// Config overrides
	flagModel         string
	flagMaxIterations int

	// Loaded in PersistentPreRunE for every command that needs them
	cfg        *config.Config
	logger     *slog.Logger
	logCleanup func() error
)

var rootCmd = &cobra.Command{
	Use:   "drover",
	Short: "Micro-agent workflow driver",
	Long: `Drover runs small, single-purpose agents defined as YAML documents.
An agent is either a fixed workflow of named steps or a single prompt;
prompt steps ask an LLM for the next action, fixed steps execute as
written, and every side effect runs inside a sandbox.

Run state streams to stdout as JSON lines; logs go to stderr and the
log file.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "help", "version", "completion", "schema", "init":
			return nil
		}

		var err error
		cfg, err = config.Load(projectDir)
		if err != nil {
			return err
		}

		// Paths in the config are relative to the project directory.
		cfg.WorkspaceDir = resolvePath(cfg.WorkspaceDir)
		cfg.StorePath = resolvePath(cfg.StorePath)
		cfg.Agent.Library = resolvePath(cfg.Agent.Library)
		cfg.Log.File = resolvePath(cfg.Log.File)

		if flagModel != "" {
			cfg.LLM.Model = flagModel
		}
		if flagMaxIterations > 0 {
			cfg.Agent.MaxIterations = flagMaxIterations
		}
		if verbose {
			cfg.Log.Level = "debug"
		}

		logger, logCleanup = config.SetupLogger(cfg.Log)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			if err := logCleanup(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectDir, "directory", "C", ".", "project directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "override the configured LLM model")
	rootCmd.PersistentFlags().IntVar(&flagMaxIterations, "max-iterations", 0, "override the configured turn limit")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(initCmd)
}

// resolvePath anchors a relative config path at the project directory.
func resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectDir, path)
}

// openStore opens the run store at path, creating its directory first.
func openStore(path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	store, err := sqlite.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening run store: %w", err)
	}
	return store, nil
}
