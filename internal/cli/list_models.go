/*
PURPOSE:
  Defines the 'list-models' subcommand.
  Helps debug connectivity and model availability.

REQUIREMENTS:
  User-specified:
  - List available models.

  Implementation-discovered:
  - Useful validation step before an expensive full run.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.ListModels() (via Engine)

ERROR HANDLING:
  - Prints error if the API is unreachable.

IMPLEMENTATION RULES:
  - Simple output to stdout.

USAGE:
  column-runner list-models

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/engine/client.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daryltucker/column-runner/internal/config"
	"github.com/daryltucker/column-runner/internal/engine"
)

var listModelsCmd = &cobra.Command{
	Use:   "list-models",
	Short: "List model identifiers available on the configured API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		e := engine.New(cfg)
		models, err := e.ListModels(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list models from %s: %w", cfg.BaseURL, err)
		}

		for _, m := range models {
			fmt.Printf("- %s\n", m)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listModelsCmd)
}
