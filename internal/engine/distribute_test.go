package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daryltucker/column-runner/internal/model"
)

func singleSpec(name string) model.ColumnSpec {
	return model.ColumnSpec{Kind: model.KindSingle, Name: name}
}

func groupSpec(name string, fields ...string) model.ColumnSpec {
	return model.ColumnSpec{Kind: model.KindGroup, Name: name, OutputColumns: fields}
}

// TestDistributeSingle verifies that a single column takes the whole
// trimmed response as its value.
func TestDistributeSingle(t *testing.T) {
	got := DistributeResponse("  a short summary \n", singleSpec("Summary"))
	assert.Equal(t, map[string]string{"Summary": "a short summary"}, got)
}

// TestDistributeGroup verifies JSON payload decoding across group fields.
func TestDistributeGroup(t *testing.T) {
	tests := []struct {
		name string
		text string
		spec model.ColumnSpec
		want map[string]string
	}{
		{
			name: "plain JSON object",
			text: `{"A":"x","B":"y"}`,
			spec: groupSpec("meta", "A", "B"),
			want: map[string]string{"A": "x", "B": "y"},
		},
		{
			name: "fenced block with missing key",
			text: "```json\n{\"A\":\"x\"}\n```",
			spec: groupSpec("meta", "A", "B"),
			want: map[string]string{"A": "x", "B": model.Unresolved},
		},
		{
			name: "fence without language tag",
			text: "```\n{\"A\":\"x\",\"B\":\"y\"}\n```",
			spec: groupSpec("meta", "A", "B"),
			want: map[string]string{"A": "x", "B": "y"},
		},
		{
			name: "non-JSON text marks every field",
			text: "sorry, I can't answer that",
			spec: groupSpec("meta", "A", "B"),
			want: map[string]string{"A": model.Unresolved, "B": model.Unresolved},
		},
		{
			name: "null value marks its field only",
			text: `{"A":null,"B":"y"}`,
			spec: groupSpec("meta", "A", "B"),
			want: map[string]string{"A": model.Unresolved, "B": "y"},
		},
		{
			name: "non-string values keep their JSON text",
			text: `{"Year":1965,"Classic":true}`,
			spec: groupSpec("meta", "Year", "Classic"),
			want: map[string]string{"Year": "1965", "Classic": "true"},
		},
		{
			name: "extra keys in payload are ignored",
			text: `{"A":"x","B":"y","C":"z"}`,
			spec: groupSpec("meta", "A", "B"),
			want: map[string]string{"A": "x", "B": "y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DistributeResponse(tt.text, tt.spec))
		})
	}
}

// TestDistributeIsIdempotent confirms the same raw text always yields the
// same mapping.
func TestDistributeIsIdempotent(t *testing.T) {
	spec := groupSpec("meta", "Game", "Category")
	text := "```json\n{\"Game\":\"chess\"}\n```"

	first := DistributeResponse(text, spec)
	second := DistributeResponse(text, spec)
	assert.Equal(t, first, second)
}

// TestStripCodeFence covers the fence-stripping edge cases directly.
func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no fence", in: `{"a":1}`, want: `{"a":1}`},
		{name: "json tagged fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "untagged fence", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "missing trailing fence", in: "```json\n{\"a\":1}", want: `{"a":1}`},
		{name: "surrounding whitespace", in: "  ```json\n{\"a\":1}\n```  ", want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFence(tt.in))
		})
	}
}
