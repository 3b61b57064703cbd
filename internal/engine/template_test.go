package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daryltucker/column-runner/internal/model"
)

// TestFillTemplate verifies placeholder substitution against row fields.
func TestFillTemplate(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		row  model.Row
		want string
	}{
		{
			name: "single placeholder",
			tmpl: "Summarize {{Title}}",
			row:  model.Row{"Title": "Dune"},
			want: "Summarize Dune",
		},
		{
			name: "multiple placeholders",
			tmpl: "{{Title}} by {{Author}}",
			row:  model.Row{"Title": "Dune", "Author": "Herbert"},
			want: "Dune by Herbert",
		},
		{
			name: "repeated placeholder",
			tmpl: "{{Title}}, yes {{Title}}",
			row:  model.Row{"Title": "Dune"},
			want: "Dune, yes Dune",
		},
		{
			name: "missing field leaves placeholder untouched",
			tmpl: "Summarize {{Title}} for {{Audience}}",
			row:  model.Row{"Title": "Dune"},
			want: "Summarize Dune for {{Audience}}",
		},
		{
			name: "multi-word header",
			tmpl: "Released in {{Release Year}}",
			row:  model.Row{"Release Year": "1965"},
			want: "Released in 1965",
		},
		{
			name: "surrounding whitespace in braces is ignored",
			tmpl: "Summarize {{ Title }}",
			row:  model.Row{"Title": "Dune"},
			want: "Summarize Dune",
		},
		{
			name: "no placeholders",
			tmpl: "static prompt",
			row:  model.Row{"Title": "Dune"},
			want: "static prompt",
		},
		{
			name: "empty value substitutes empty string",
			tmpl: "[{{Title}}]",
			row:  model.Row{"Title": ""},
			want: "[]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FillTemplate(tt.tmpl, tt.row))
		})
	}
}

// TestFillTemplateDoesNotMutateRow confirms the filler is read-only.
func TestFillTemplateDoesNotMutateRow(t *testing.T) {
	row := model.Row{"Title": "Dune"}
	FillTemplate("{{Title}} {{Missing}}", row)
	assert.Equal(t, model.Row{"Title": "Dune"}, row)
}
