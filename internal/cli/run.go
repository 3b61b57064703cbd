/*
PURPOSE:
  Defines the 'run' subcommand.
  Executes the full augmentation run.

REQUIREMENTS:
  User-specified:
  - Run every configured column over the input table.
  - Specific flags for overrides.

  Implementation-discovered:
  - Need to load config first.
  - Apply flag overrides to config.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Run()
  - Uses: internal/config

ERROR HANDLING:
  - Returns error if config load fails or engine run fails.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Engine.Run.

USAGE:
  column-runner run --input data.csv --output out.csv

SELF-HEALING INSTRUCTIONS:
  - Check flag names match Config struct fields generally.

RELATED FILES:
  - internal/cli/root.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"github.com/spf13/cobra"

	"github.com/daryltucker/column-runner/internal/config"
	"github.com/daryltucker/column-runner/internal/engine"
)

var (
	inputOverride  string
	outputOverride string
	modelOverride  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the augmentation over the input table",
	Long: `Reads the input CSV, then for each configured column (in declaration
order) calls the model once per row and writes the generated value into the
row. Rows inside a batch run concurrently; failed rows are retried with
exponential backoff. A full snapshot of the table is checkpointed to
<output>.progress.csv after every batch.`,
	Example: `  # Run with defaults (uses column_runner.yaml)
  column-runner run

  # Override input/output paths
  column-runner run --input books.csv --output books_out.csv

  # Override the run-level default model
  column-runner run --model openai/gpt-4o-mini`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load Config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// 2. Overrides
		if inputOverride != "" {
			cfg.Input = inputOverride
		}
		if outputOverride != "" {
			cfg.Output = outputOverride
		}
		if modelOverride != "" {
			cfg.Model = modelOverride
		}

		// 3. Execution
		return engine.Run(cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&inputOverride, "input", "i", "", "Input CSV path (overrides config)")
	runCmd.Flags().StringVarP(&outputOverride, "output", "o", "", "Output CSV path (overrides config)")
	runCmd.Flags().StringVarP(&modelOverride, "model", "m", "", "Run-level default model identifier (overrides config)")
}
