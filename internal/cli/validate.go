/*
PURPOSE:
  Defines the 'validate' subcommand.
  Checks the configuration without touching the network or the table.

REQUIREMENTS:
  User-specified:
  - Catch configuration mistakes before spending money on model calls.

  Implementation-discovered:
  - Mirrors the validation the run performs up front, so 'validate'
    passing means 'run' will get past its config checks.

ARCHITECTURE INTEGRATION:
  - Uses: internal/config

ERROR HANDLING:
  - Returns the first validation error; exit code 1 via main.

IMPLEMENTATION RULES:
  - No model calls, no file writes.

USAGE:
  column-runner validate --config column_runner.yaml

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/config/config.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daryltucker/column-runner/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		specs := cfg.ColumnSpecs()
		fmt.Printf("OK: %d column(s) configured\n", len(specs))
		for _, spec := range specs {
			fmt.Printf("- %s -> %v (model %s, batch %d, cooldown %s)\n",
				spec.Name, spec.TargetFields(), spec.Model, spec.BatchSize, spec.Cooldown)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
