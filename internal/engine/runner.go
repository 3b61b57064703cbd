/*
PURPOSE:
  High-level runner that orchestrates a full augmentation run.
  Loads the table, executes each configured column in order, aggregates
  statistics, and persists the final output.

REQUIREMENTS:
  User-specified:
  - Columns execute strictly in declaration order. Later columns may
    reference fields populated by earlier ones in their prompts.
  - Aggregate cost/token totals per column and for the whole run.

  Implementation-discovered:
  - Needs to report progress to CLI.
  - A fatal failure in one column aborts the remaining columns, but
    statistics and checkpoints from completed work remain on disk.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/engine, internal/output

ERROR HANDLING:
  - Config validation failures and missing credentials abort before any
    row is loaded or any model call is made.
  - Batch retry exhaustion propagates up with its row/signature summary.

IMPLEMENTATION RULES:
  - Validate config -> load rows -> iterate columns -> persist.
  - Output fields are appended to the header before their column runs.

USAGE:
  engine.Run(cfg)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/engine/column.go
  - internal/output/table.go

MAINTENANCE:
  - Update iteration logic if cross-column parallelism is introduced.
*/

package engine

import (
	"context"
	"fmt"

	"github.com/daryltucker/column-runner/internal/config"
	"github.com/daryltucker/column-runner/internal/model"
	"github.com/daryltucker/column-runner/internal/output"
)

// Run executes the full augmentation run.
func Run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	e := New(cfg)
	if e.apiKey == "" {
		return fmt.Errorf("no API key: set %s in the environment", cfg.APIKeyEnv)
	}

	table, err := output.ReadTable(cfg.Input)
	if err != nil {
		return fmt.Errorf("failed to load rows from %s: %w", cfg.Input, err)
	}
	output.Logger.Info("Loaded rows", "path", cfg.Input, "rows", len(table.Rows), "fields", len(table.Header))

	statsWriter, err := output.NewStatsWriter(output.StatsPath(cfg.Output))
	if err != nil {
		return fmt.Errorf("failed to init stats writer: %w", err)
	}
	defer statsWriter.Close()

	checkpoint := output.NewCheckpointWriter(cfg.Output)
	output.Logger.Info("Checkpointing to", "path", checkpoint.Path())

	// No cancellation path: a run finishes or dies on a fatal batch error.
	ctx := context.Background()

	specs := cfg.ColumnSpecs()
	var total model.Stats
	for _, spec := range specs {
		for _, field := range spec.TargetFields() {
			table.EnsureColumn(field)
		}

		output.Logger.Info("Running column",
			"column", spec.Name, "model", spec.Model, "batch_size", spec.BatchSize, "targets", spec.TargetFields())

		stats, err := e.RunColumn(ctx, table, spec, checkpoint)
		total = total.Merge(stats)
		if werr := statsWriter.Write(output.StatsEntry{Column: spec.Name, Stats: stats}); werr != nil {
			output.Logger.Error("Failed to write stats entry", "column", spec.Name, "error", werr)
		}
		if err != nil {
			output.Logger.Error("Column failed, aborting run",
				"column", spec.Name, "cost_so_far", total.Cost, "error", err)
			return err
		}

		output.Logger.Info("Column complete",
			"column", spec.Name,
			"rows", stats.Rows,
			"cost", fmt.Sprintf("%.6f", stats.Cost),
			"prompt_tokens", stats.PromptTokens,
			"completion_tokens", stats.CompletionTokens,
		)
	}

	if err := output.WriteTable(cfg.Output, table); err != nil {
		return fmt.Errorf("failed to persist rows to %s: %w", cfg.Output, err)
	}
	if err := statsWriter.Write(output.StatsEntry{Column: "_total", Stats: total}); err != nil {
		output.Logger.Error("Failed to write total stats entry", "error", err)
	}

	output.Logger.Info("Run complete",
		"output", cfg.Output,
		"columns", len(specs),
		"rows", len(table.Rows),
		"cost", fmt.Sprintf("%.6f", total.Cost),
		"prompt_tokens", total.PromptTokens,
		"completion_tokens", total.CompletionTokens,
	)
	return nil
}
