/*
PURPOSE:
  Reads the input CSV into a row set and writes the augmented row set back
  out, for both the final output and per-batch progress checkpoints.

REQUIREMENTS:
  User-specified:
  - Output CSV keeps the original field order; generated fields are
    appended after the originals in column declaration order.
  - A full snapshot of the row set is persisted after every batch so a
    crashed run leaves usable partial results behind.

  Implementation-discovered:
  - The first input row defines the canonical header order.
  - The checkpoint path must be derivable from the output path alone, so
    operators can find it without extra configuration.
  - Checkpoints are overwritten wholesale, never appended to; the write
    goes through a temp-free Create because partial checkpoints are an
    accepted crash artifact.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Consumes: internal/model.Table

ERROR HANDLING:
  - Returns error on file creation or write failure. The engine decides
    whether a failed checkpoint is fatal (it is not).

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Missing fields render as empty cells, never error.

USAGE:
  table, err := output.ReadTable("in.csv")
  err = output.WriteTable("out.csv", table)
  cp := output.NewCheckpointWriter("out.csv")
  err = cp.Write(table)

SELF-HEALING INSTRUCTIONS:
  - If the checkpoint naming scheme changes, update CheckpointPath and its
    test together.

RELATED FILES:
  - internal/model/types.go
  - internal/engine/column.go

MAINTENANCE:
  - Update if a second tabular format (TSV, JSONL) is added.
*/

package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/daryltucker/column-runner/internal/model"
)

// ReadTable loads a CSV file into a Table. The first record is the header;
// every following record becomes one Row keyed by header field.
func ReadTable(path string) (*model.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty file, expected a header row", path)
	}

	header := records[0]
	t := &model.Table{Header: header}
	for _, record := range records[1:] {
		row := make(model.Row, len(header))
		for i, field := range header {
			if i < len(record) {
				row[field] = record[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// WriteTable persists the table to path, overwriting any existing file.
// Cells are emitted in header order; absent fields become empty cells.
func WriteTable(path string, t *model.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		f.Close()
		return err
	}

	record := make([]string, len(t.Header))
	for _, row := range t.Rows {
		for i, field := range t.Header {
			record[i] = row[field]
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CheckpointPath derives the progress file location from the output path:
// "results.csv" becomes "results.progress.csv". Deterministic so operators
// can locate the checkpoint from the config alone.
func CheckpointPath(outputPath string) string {
	ext := filepath.Ext(outputPath)
	base := strings.TrimSuffix(outputPath, ext)
	return base + ".progress" + ext
}

// CheckpointWriter persists full row-set snapshots to the progress file.
// Each Write overwrites the previous snapshot wholesale. The file is an
// advisory crash-recovery artifact; nothing reads it back on startup.
type CheckpointWriter struct {
	path string
}

// NewCheckpointWriter creates a writer for the checkpoint derived from
// outputPath.
func NewCheckpointWriter(outputPath string) *CheckpointWriter {
	return &CheckpointWriter{path: CheckpointPath(outputPath)}
}

// Path returns the checkpoint file location.
func (cw *CheckpointWriter) Path() string {
	return cw.path
}

// Write snapshots the table to the checkpoint file.
func (cw *CheckpointWriter) Write(t *model.Table) error {
	return WriteTable(cw.path, t)
}
