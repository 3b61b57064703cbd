/*
PURPOSE:
  Decodes a raw model response into one or more output field values,
  according to the column specification variant.

REQUIREMENTS:
  User-specified:
  - Single columns: the whole trimmed response is the value.
  - Group columns: the response is a JSON object, one key per declared
    output field, optionally wrapped in a ```json fenced block.

  Implementation-discovered:
  - Models wrap JSON in code fences often enough that stripping them is
    table stakes.
  - A single malformed response must not abort the batch. Decode failures
    and missing keys degrade to the unresolved marker so the run keeps
    going and the bad cells stay visible in the output.
  - One model call yields one shared JSON payload, so a decode failure
    marks every field of the group, not just one.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/batch.go
  - Uses: internal/model, internal/output (diagnostics only)

ERROR HANDLING:
  - Never returns an error. Failures are absorbed into unresolved cells
    plus a warning log.

IMPLEMENTATION RULES:
  - Deterministic: the same raw text always yields the same mapping.
  - Non-string JSON values keep their JSON text (numbers, bools, nested
    objects are re-encoded compactly).

USAGE:
  values := engine.DistributeResponse(comp.Text, spec)
  for field, v := range values { row[field] = v }

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/engine/batch.go
  - internal/model/types.go

MAINTENANCE:
  - Update fence stripping if models start using other wrappers.
*/

package engine

import (
	"encoding/json"
	"strings"

	"github.com/daryltucker/column-runner/internal/model"
	"github.com/daryltucker/column-runner/internal/output"
)

// DistributeResponse maps raw generated text onto the spec's target fields.
func DistributeResponse(text string, spec model.ColumnSpec) map[string]string {
	if spec.Kind == model.KindSingle {
		return map[string]string{spec.Name: strings.TrimSpace(text)}
	}
	return distributeGroup(text, spec)
}

func distributeGroup(text string, spec model.ColumnSpec) map[string]string {
	values := make(map[string]string, len(spec.OutputColumns))

	var payload map[string]any
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &payload); err != nil {
		output.Logger.Warn("Group response is not valid JSON, marking all fields unresolved",
			"group", spec.Name, "error", err)
		for _, field := range spec.OutputColumns {
			values[field] = model.Unresolved
		}
		return values
	}

	for _, field := range spec.OutputColumns {
		v, ok := payload[field]
		if !ok || v == nil {
			output.Logger.Warn("Group response is missing a declared field",
				"group", spec.Name, "field", field)
			values[field] = model.Unresolved
			continue
		}
		values[field] = stringifyValue(v)
	}
	return values
}

// stripCodeFence removes a leading fence line (``` or ```json) and a
// trailing ``` line, when both forms of wrapping are present. Text without
// fences passes through untouched.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	lines = lines[1:] // drop the opening fence, with or without a "json" tag
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// stringifyValue renders a decoded JSON value as a cell string. Strings
// pass through verbatim; everything else keeps its compact JSON text.
func stringifyValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return model.Unresolved
	}
	return string(encoded)
}
