package cli

import (
	"fmt"

	"github.com/drover-dev/drover/internal/definition"
	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agents in the library",
	RunE:  runAgents,
}

func runAgents(cmd *cobra.Command, args []string) error {
	reg, err := definition.LoadDir(cfg.Agent.Library)
	if err != nil {
		return fmt.Errorf("load agent library: %w", err)
	}

	names := reg.Names()
	if len(names) == 0 {
		fmt.Printf("No agents found in %s.\n", cfg.Agent.Library)
		return nil
	}

	fmt.Printf("Agents (%d):\n\n", len(names))
	for _, name := range names {
		def, _ := reg.Get(name)
		mode := "prompt"
		if def.Workflow != nil {
			mode = fmt.Sprintf("workflow, %d steps", len(def.Workflow))
		}
		fmt.Printf("- %s [%s]\n", name, mode)
		if def.Description != "" {
			fmt.Printf("  %s\n", def.Description)
		}
		if verbose {
			if def.Generates != "" {
				fmt.Printf("  Generates: %s\n", def.Generates)
			}
			for _, input := range def.Inputs {
				fmt.Printf("  Input: %s", input.Name)
				if input.Description != "" {
					fmt.Printf(" (%s)", input.Description)
				}
				fmt.Println()
			}
		}
	}
	return nil
}
