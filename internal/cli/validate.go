package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/drover-dev/drover/internal/definition"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Validate agent definition files",
	Long: `Validate checks agent definitions in three phases: strict YAML decoding,
JSON Schema validation, and workflow rules the schema cannot express.
With no arguments the whole configured library is checked.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		var err error
		paths, err = libraryFiles(cfg.Agent.Library)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Printf("No definitions found in %s.\n", cfg.Agent.Library)
			return nil
		}
	}

	failed := 0
	for _, path := range paths {
		def, errs := definition.ValidateFile(path)
		if len(errs) == 0 {
			fmt.Printf("ok    %s (%s)\n", path, def.Name)
			continue
		}

		hasError := false
		for _, e := range errs {
			if e.Severity == "error" {
				hasError = true
				break
			}
		}
		if hasError {
			failed++
			fmt.Printf("fail  %s\n", path)
		} else {
			fmt.Printf("warn  %s (%s)\n", path, def.Name)
		}
		for _, e := range errs {
			if e.Path != "" {
				fmt.Printf("      [%s] %s: %s\n", e.Phase, e.Path, e.Message)
			} else {
				fmt.Printf("      [%s] %s\n", e.Phase, e.Message)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d definitions failed validation", failed, len(paths))
	}
	return nil
}

// libraryFiles mirrors the registry loader's layout rules: agent.yaml in
// per-agent subdirectories plus yaml files directly under the library.
func libraryFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read agent library: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			path := filepath.Join(dir, entry.Name(), "agent.yaml")
			if _, err := os.Stat(path); err == nil {
				paths = append(paths, path)
			}
		} else if ext := filepath.Ext(entry.Name()); ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths, nil
}
