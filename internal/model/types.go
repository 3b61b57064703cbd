/*
PURPOSE:
  Defines the core data structures used throughout Column Runner.
  Rows, column specifications, per-call usage accounting, and run totals.

REQUIREMENTS:
  User-specified:
  - One model call per row per column (or per column group).
  - Track cost, prompt tokens, and completion tokens per call.

  Implementation-discovered:
  - Column specs come in two shapes (single field vs. field group) and
    downstream code must dispatch on the shape exhaustively.
  - Cells that could not be resolved from a model response need a marker
    value distinguishable from legitimate data.

ARCHITECTURE INTEGRATION:
  - Used by: internal/config, internal/engine, internal/output
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs).

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - Rows are mutated in place; they are never copied between columns.

USAGE:
  row := model.Row{"Title": "Dune"}
  spec := model.ColumnSpec{Kind: model.KindSingle, Name: "Summary", ...}

SELF-HEALING INSTRUCTIONS:
  - If new usage metrics are needed, add field and update Stats.Add.

RELATED FILES:
  - internal/engine/batch.go
  - internal/output/table.go

MAINTENANCE:
  - Update when the model API exposes new usage fields.
*/

package model

import "time"

// Unresolved marks a cell whose value could not be extracted from a model
// response (malformed group JSON, or a declared key missing from the payload).
const Unresolved = "__undetectable__"

// IsUnresolved reports whether a cell carries the unresolved marker.
func IsUnresolved(v string) bool {
	return v == Unresolved
}

// Row maps field names to string values for one logical record.
// Every column that targets the row mutates it in place.
type Row map[string]string

// Table is the full row set plus the canonical field order. The header
// starts as the input file's first row; output fields are appended in
// column declaration order.
type Table struct {
	Header []string
	Rows   []Row
}

// EnsureColumn appends name to the header if it is not already present.
func (t *Table) EnsureColumn(name string) {
	for _, h := range t.Header {
		if h == name {
			return
		}
	}
	t.Header = append(t.Header, name)
}

// ColumnKind discriminates the two column specification variants.
type ColumnKind int

const (
	// KindSingle produces exactly one output field from each model call.
	KindSingle ColumnKind = iota
	// KindGroup produces several output fields from one model call's
	// JSON payload.
	KindGroup
)

// ColumnSpec describes one unit of augmentation work: which model to call,
// how to build the prompt, and which field(s) the response populates.
type ColumnSpec struct {
	Kind ColumnKind

	// Name is the output field for KindSingle, and the group label for
	// KindGroup.
	Name string

	// OutputColumns lists the target fields for KindGroup, in declaration
	// order. Empty for KindSingle.
	OutputColumns []string

	Model     string
	Prompt    string
	BatchSize int
	Cooldown  time.Duration

	// Plugins and Search are forwarded verbatim in the request body.
	// Their contents are never interpreted here.
	Plugins []map[string]any
	Search  map[string]any
}

// TargetFields returns the field names this spec populates.
// Always non-empty for a validated spec.
func (c ColumnSpec) TargetFields() []string {
	if c.Kind == KindGroup {
		return c.OutputColumns
	}
	return []string{c.Name}
}

// Usage is the accounting returned by one model call. All fields are zero
// when the upstream response omits usage data.
type Usage struct {
	Cost             float64
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the result of one successful model call.
type Completion struct {
	Text  string
	Usage Usage
}

// RowOutcome records the result of processing one row within one batch:
// either a success with usage accounting, or a failure with the error.
// Never both.
type RowOutcome struct {
	Index int
	Usage Usage
	Err   error
}

// Stats accumulates cost and token totals. Totals only grow; they are
// never reset mid-run.
type Stats struct {
	Rows             int     `json:"rows"`
	Cost             float64 `json:"cost"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
}

// Add folds one successful call's usage into the totals.
func (s *Stats) Add(u Usage) {
	s.Rows++
	s.Cost += u.Cost
	s.PromptTokens += u.PromptTokens
	s.CompletionTokens += u.CompletionTokens
}

// Merge returns the sum of two stat sets.
func (s Stats) Merge(o Stats) Stats {
	return Stats{
		Rows:             s.Rows + o.Rows,
		Cost:             s.Cost + o.Cost,
		PromptTokens:     s.PromptTokens + o.PromptTokens,
		CompletionTokens: s.CompletionTokens + o.CompletionTokens,
	}
}
