/*
PURPOSE:
  Writes per-column run statistics to a JSON Lines file (NDJSON).
  Optimized for machine parsing and post-run cost analysis.

REQUIREMENTS:
  User-specified:
  - Keep a machine-readable record of what each column cost.

  Implementation-discovered:
  - JSON Lines is better for streaming/logging than a single large array
    (append-friendly): a fatal failure in a later column still leaves the
    completed columns' entries on disk.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Consumes: internal/model.Stats

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/json.NewEncoder.
  - Thread-safe.

USAGE:
  w, err := output.NewStatsWriter("out.stats.jsonl")
  w.Write(output.StatsEntry{Column: "Summary", Stats: stats})
  w.Close()

SELF-HEALING INSTRUCTIONS:
  - None specific.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Update if we switch to plain JSON array (not recommended for streaming).
*/

package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/daryltucker/column-runner/internal/model"
)

// StatsEntry is one statistics record: a column's totals, or the run
// total (Column "_total").
type StatsEntry struct {
	Column string `json:"column"`
	model.Stats
}

// StatsPath derives the statistics file location from the output path:
// "results.csv" becomes "results.stats.jsonl".
func StatsPath(outputPath string) string {
	base := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
	return base + ".stats.jsonl"
}

// StatsWriter handles writing run statistics to a JSON Lines file.
type StatsWriter struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewStatsWriter creates a new StatsWriter.
func NewStatsWriter(path string) (*StatsWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	return &StatsWriter{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// Write writes a single entry as a JSON line.
func (sw *StatsWriter) Write(e StatsEntry) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	return sw.encoder.Encode(e)
}

// Close closes the underlying file.
func (sw *StatsWriter) Close() error {
	return sw.file.Close()
}
