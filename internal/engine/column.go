/*
PURPOSE:
  Executes one column specification over the full row set: fixed-size
  batches in index order, checkpoint after every batch, cooldown between
  batches.

REQUIREMENTS:
  User-specified:
  - Batches run strictly in order; only rows inside a batch run
    concurrently.
  - A full row-set snapshot is written after each batch so a crash loses
    at most one batch of work.
  - An optional cooldown pause between batches keeps request pressure
    down.

  Implementation-discovered:
  - A failed checkpoint write is logged and skipped, never fatal: losing
    a snapshot is cheaper than losing the run.
  - Cost/token totals are folded from batch outcomes and returned, not
    accumulated in ambient state. Totals from completed batches are
    returned even when a later batch fails, so partial statistics
    survive a fatal run.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go
  - Uses: internal/engine/batch.go, internal/output

ERROR HANDLING:
  - Propagates *RetryExhaustedError from the batch layer untouched.

IMPLEMENTATION RULES:
  - Batch ranges are half-open [start, end); the last batch may be short.
  - No cross-batch concurrency, ever.

USAGE:
  stats, err := e.RunColumn(ctx, table, spec, checkpoint)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/engine/batch.go
  - internal/output/table.go

MAINTENANCE:
  - Update if per-column row ranges (partial tables) are ever added.
*/

package engine

import (
	"context"

	"github.com/daryltucker/column-runner/internal/model"
	"github.com/daryltucker/column-runner/internal/output"
)

// CheckpointSink persists a full snapshot of the row set. Writes are
// sequenced by the column driver; implementations need not be concurrent.
type CheckpointSink interface {
	Write(t *model.Table) error
}

// RunColumn processes every row of the table for one column spec and
// returns the column's accumulated statistics. Statistics from completed
// batches are returned alongside a fatal batch error.
func (e *Engine) RunColumn(ctx context.Context, table *model.Table, spec model.ColumnSpec, checkpoint CheckpointSink) (model.Stats, error) {
	var stats model.Stats

	total := len(table.Rows)
	for start := 0; start < total; start += spec.BatchSize {
		end := start + spec.BatchSize
		if end > total {
			end = total
		}

		indices := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			indices = append(indices, i)
		}

		output.Logger.Info("Processing batch",
			"column", spec.Name, "rows", len(indices), "from", start, "to", end-1)

		outcomes, err := e.ProcessBatch(ctx, table, indices, spec)
		if err != nil {
			return stats, err
		}
		for _, outcome := range outcomes {
			stats.Add(outcome.Usage)
		}

		if err := checkpoint.Write(table); err != nil {
			// Advisory artifact: losing one snapshot must not kill the run.
			output.Logger.Error("Failed to write checkpoint", "column", spec.Name, "error", err)
		}

		if spec.Cooldown > 0 {
			output.Logger.Info("Cooling down", "column", spec.Name, "delay", spec.Cooldown)
			e.sleep(spec.Cooldown)
		}
	}

	return stats, nil
}
