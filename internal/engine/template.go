/*
PURPOSE:
  Fills prompt templates with per-row field values.
  Placeholders look like {{Field Name}} and are replaced with the row's
  current value for that field.

REQUIREMENTS:
  User-specified:
  - Placeholder names may contain internal whitespace, to match
    multi-word CSV headers.

  Implementation-discovered:
  - A placeholder naming a field the row does not have must be left
    untouched (not blanked, not errored). Partially populated rows then
    degrade gracefully instead of producing silently mutilated prompts.
  - text/template is the wrong tool here: it either errors or blanks
    unknown keys, and chokes on space-bearing identifiers.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/batch.go
  - Uses: internal/model

ERROR HANDLING:
  - None. Pure function, no failure modes.

IMPLEMENTATION RULES:
  - No side effects. The row is read, never written.

USAGE:
  prompt := engine.FillTemplate("Summarize {{Title}}", row)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/engine/batch.go

MAINTENANCE:
  - Update the pattern if the placeholder syntax ever changes.
*/

package engine

import (
	"regexp"
	"strings"

	"github.com/daryltucker/column-runner/internal/model"
)

var placeholderPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// FillTemplate substitutes every {{field}} placeholder in tmpl with the
// row's value for that field. Surrounding whitespace inside the braces is
// ignored ({{ Title }} matches the "Title" field); internal whitespace is
// part of the name ({{Release Year}}). Placeholders naming absent fields
// are left as-is.
func FillTemplate(tmpl string, row model.Row) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		if value, ok := row[name]; ok {
			return value
		}
		return match
	})
}
