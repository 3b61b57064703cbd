/*
PURPOSE:
  Drives one batch of rows through the fill -> invoke -> distribute
  pipeline concurrently, retrying only the rows that failed.

REQUIREMENTS:
  User-specified:
  - All rows of a batch are issued concurrently.
  - A failed row is retried up to a ceiling with exponential backoff;
    rows that already succeeded are never re-invoked.
  - Exhausting the ceiling is fatal and must name every failing row and
    a de-duplicated summary of the distinct errors.

  Implementation-discovered:
  - The backoff delay is global to the batch: one retry round sleeps
    once, then re-launches every still-failing row together.
  - Identical (status, message) failures across rows collapse into one
    summary entry listing the rows it affected.
  - Each concurrent task owns exactly one row for the duration of its
    call, so the shared row slice needs no locking.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/column.go
  - Uses: template.go, client.go, distribute.go

ERROR HANDLING:
  - Per-row API errors are retryable up to Config.MaxRetries rounds.
  - *RetryExhaustedError is terminal; nothing above catches it.

IMPLEMENTATION RULES:
  - Structured join via errgroup: every launched task completes before
    the round is examined.
  - Backoff for retry round r is 2^r seconds (2, 4, 8, ...).

USAGE:
  outcomes, err := e.ProcessBatch(ctx, table, indices, spec)

SELF-HEALING INSTRUCTIONS:
  - If rows fail persistently, inspect the error signatures in the fatal
    message before raising the retry ceiling.

RELATED FILES:
  - internal/engine/column.go
  - internal/engine/client.go

MAINTENANCE:
  - Update if per-row (rather than per-batch) backoff is ever wanted.
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/daryltucker/column-runner/internal/model"
	"github.com/daryltucker/column-runner/internal/output"
)

// ErrorSignature is one distinct (status, message) failure shape and the
// rows it affected in the final retry round.
type ErrorSignature struct {
	Status  int
	Message string
	Rows    []int
}

func (s ErrorSignature) String() string {
	return fmt.Sprintf("[status %d] %s (rows %v)", s.Status, s.Message, s.Rows)
}

// RetryExhaustedError reports a batch whose failing rows did not recover
// within the retry ceiling. It is fatal to the run.
type RetryExhaustedError struct {
	Column     string
	Retries    int
	Rows       []int
	Signatures []ErrorSignature
}

func (e *RetryExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "column %q: %d row(s) still failing after %d retries: rows %v",
		e.Column, len(e.Rows), e.Retries, e.Rows)
	for _, sig := range e.Signatures {
		b.WriteString("\n  ")
		b.WriteString(sig.String())
	}
	return b.String()
}

// ProcessBatch runs every row index in indices through the pipeline
// concurrently and returns one outcome per row, ordered by row index.
// Failed rows are retried in whole-batch rounds with doubling backoff;
// when the retry ceiling is exceeded the batch fails with a
// *RetryExhaustedError.
func (e *Engine) ProcessBatch(ctx context.Context, table *model.Table, indices []int, spec model.ColumnSpec) ([]model.RowOutcome, error) {
	pending := append([]int(nil), indices...)
	succeeded := make(map[int]model.RowOutcome, len(indices))
	lastErr := make(map[int]error)

	for round := 0; ; round++ {
		if round > 0 {
			delay := time.Duration(1<<round) * time.Second
			output.Logger.Info("Backing off before retry",
				"column", spec.Name, "retry", round, "rows", len(pending), "delay", delay)
			e.sleep(delay)
		}

		results := make([]model.RowOutcome, len(pending))
		var g errgroup.Group
		for i, idx := range pending {
			g.Go(func() error {
				results[i] = e.processRow(ctx, table.Rows[idx], idx, spec)
				return results[i].Err
			})
		}
		// Tasks record their own outcome; Wait only joins them.
		_ = g.Wait()

		var failing []int
		for _, res := range results {
			if res.Err != nil {
				lastErr[res.Index] = res.Err
				failing = append(failing, res.Index)
				continue
			}
			delete(lastErr, res.Index)
			succeeded[res.Index] = res
		}

		if len(failing) == 0 {
			break
		}
		output.Logger.Warn("Batch round had failures",
			"column", spec.Name, "round", round, "failed", len(failing), "of", len(pending))

		if round >= e.Config.MaxRetries {
			return nil, newRetryExhausted(spec.Name, round, failing, lastErr)
		}
		pending = failing
	}

	outcomes := make([]model.RowOutcome, 0, len(succeeded))
	for _, idx := range indices {
		outcomes = append(outcomes, succeeded[idx])
	}
	return outcomes, nil
}

// processRow owns one row for the duration of one call: fill the prompt
// from the row's current fields, invoke the model once, and write the
// distributed values back into the row.
func (e *Engine) processRow(ctx context.Context, row model.Row, idx int, spec model.ColumnSpec) model.RowOutcome {
	prompt := FillTemplate(spec.Prompt, row)

	comp, err := e.Complete(ctx, spec.Model, prompt, spec.Plugins, spec.Search)
	if err != nil {
		// Keep the error unwrapped: identical failures on different rows
		// must collapse into one signature in the fatal summary.
		return model.RowOutcome{Index: idx, Err: err}
	}

	for field, value := range DistributeResponse(comp.Text, spec) {
		row[field] = value
	}
	return model.RowOutcome{Index: idx, Usage: comp.Usage}
}

func newRetryExhausted(column string, retries int, rows []int, lastErr map[int]error) *RetryExhaustedError {
	sort.Ints(rows)

	grouped := make(map[string]*ErrorSignature)
	for _, idx := range rows {
		status, message := errorSignature(lastErr[idx])
		key := fmt.Sprintf("%d|%s", status, message)
		sig, ok := grouped[key]
		if !ok {
			sig = &ErrorSignature{Status: status, Message: message}
			grouped[key] = sig
		}
		sig.Rows = append(sig.Rows, idx)
	}

	signatures := make([]ErrorSignature, 0, len(grouped))
	for _, sig := range grouped {
		signatures = append(signatures, *sig)
	}
	sort.Slice(signatures, func(i, j int) bool {
		if signatures[i].Status != signatures[j].Status {
			return signatures[i].Status < signatures[j].Status
		}
		return signatures[i].Message < signatures[j].Message
	})

	return &RetryExhaustedError{
		Column:     column,
		Retries:    retries,
		Rows:       rows,
		Signatures: signatures,
	}
}

// errorSignature reduces a per-row error to its (status, message) pair so
// identical failures de-duplicate in the fatal summary.
func errorSignature(err error) (int, string) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status, apiErr.Message
	}
	if err == nil {
		return 0, ""
	}
	return 0, err.Error()
}
