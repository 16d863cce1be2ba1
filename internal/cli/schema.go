package cli

import (
	"fmt"

	"github.com/drover-dev/drover/internal/definition"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the agent definition JSON Schema",
	Long: `Schema prints the JSON Schema that validate checks definitions against.
Point an editor's YAML language server at it for completion and inline
diagnostics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := definition.GenerateJSONSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}
