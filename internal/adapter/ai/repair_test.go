package ai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLadder_Stages(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		stage Stage
		want  map[string]any
	}{
		{
			name:  "direct",
			raw:   ` {"a":1} `,
			stage: StageDirect,
			want:  map[string]any{"a": float64(1)},
		},
		{
			name:  "fenced block with prose",
			raw:   "Here is the result:\n```json\n{\"a\":1}\n```\nThanks.",
			stage: StageFenced,
			want:  map[string]any{"a": float64(1)},
		},
		{
			name:  "fenced block without language",
			raw:   "```\n{\"a\":2}\n```",
			stage: StageFenced,
			want:  map[string]any{"a": float64(2)},
		},
		{
			name:  "braces inside prose",
			raw:   `Result: {"a":{"b":[1]}} -- end`,
			stage: StageBraces,
			want:  map[string]any{"a": map[string]any{"b": []any{float64(1)}}},
		},
		{
			name:  "missing final brace",
			raw:   `{"a":{"b":1}`,
			stage: StageRepaired,
			want:  map[string]any{"a": map[string]any{"b": float64(1)}},
		},
		{
			name:  "trailing commas",
			raw:   `{"a":[1,2,],}`,
			stage: StageRepaired,
			want:  map[string]any{"a": []any{float64(1), float64(2)}},
		},
		{
			name:  "truncated fenced block",
			raw:   "```json\n{\"items\":[{\"x\":1},{\"x\":2",
			stage: StageRepaired,
			want:  map[string]any{"items": []any{map[string]any{"x": float64(1)}, map[string]any{"x": float64(2)}}},
		},
		{
			name:  "truncated with closer-like text in a string",
			raw:   `{"reason":"covers items [x, ] and {y, }","quote":"cut`,
			stage: StageRepaired,
			want:  map[string]any{"reason": "covers items [x, ] and {y, }", "quote": "cut"},
		},
		{
			name:  "truncated inside string",
			raw:   `{"summary":"cut he`,
			stage: StageRepaired,
			want:  map[string]any{"summary": "cut he"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseLadder(tt.raw)
			require.True(t, res.OK(), "err: %v", res.Err)
			assert.Equal(t, tt.stage, res.Stage)
			assert.Equal(t, tt.want, res.Value)
		})
	}
}

func TestParseLadder_Failures(t *testing.T) {
	for _, raw := range []string{"", "no json here", "null", "[1,2,3]", `{"a":}`} {
		res := ParseLadder(raw)
		assert.False(t, res.OK(), "raw %q", raw)
		assert.Equal(t, StageNone, res.Stage)
		assert.Error(t, res.Err)
		assert.Nil(t, res.Value)
	}
}

func TestRepair(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"closers in nesting order", `{"items":[{"a":1`, `{"items":[{"a":1}]}`},
		{"dangling comma", `{"a":[1,2,`, `{"a":[1,2]}`},
		{"dangling key", `{"a":`, `{"a":null}`},
		{"unterminated string", `{"a":"x`, `{"a":"x"}`},
		{"unterminated escape", `{"a":"x\`, `{"a":"x"}`},
		{"brackets in strings ignored", `{"q":"a { b [","x":[1`, `{"q":"a { b [","x":[1]}`},
		{"escaped quote", `{"q":"say \"hi\"","x":1`, `{"q":"say \"hi\"","x":1}`},
		{"already valid", `{"a":[1]}`, `{"a":[1]}`},
		{"commas before closers inside strings kept", `{"r":"items [x, ] and {y, }","a":[1,],`, `{"r":"items [x, ] and {y, }","a":[1]}`},
		{"dangling comma after string", `{"a":"x, ]",`, `{"a":"x, ]"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Repair(tt.in)
			assert.Equal(t, tt.want, got)
			assert.True(t, json.Valid([]byte(got)), got)
		})
	}
}
