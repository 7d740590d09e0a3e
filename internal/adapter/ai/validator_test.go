package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
)

const overallJSON = `"overall":{"summary":"ok","strengths":["s"],"weaknesses":[],"risks":[],"recommendations":["r"]}`

func itemJSON(fields string) string {
	return `{"itemId":"a","itemName":"A","category":"C","reason":"because",` + fields + `}`
}

func responseJSON(items ...string) string {
	return `{` + overallJSON + `,"items":[` + strings.Join(items, ",") + `]}`
}

func TestParseAndValidate_Valid(t *testing.T) {
	raw := responseJSON(itemJSON(`"score":4,"triState":"achieved","evidence":{"pages":[{"page":2,"quote":"q"}],"confidence":0.9}`))
	resp, stage, err := ParseAndValidate(raw)
	require.NoError(t, err)
	assert.Equal(t, StageDirect, stage)
	assert.Equal(t, "ok", resp.Overall.Summary)
	assert.Equal(t, []string{"r"}, resp.Overall.Recommendations)
	require.Len(t, resp.Items, 1)
	it := resp.Items[0]
	assert.Equal(t, "a", it.ItemID)
	assert.Equal(t, domain.Score(4), it.Score)
	assert.Equal(t, domain.TriAchieved, it.TriState)
	assert.Equal(t, []domain.PageEvidence{{Page: 2, Quote: "q"}}, it.Evidence.Pages)
	assert.InDelta(t, 0.9, it.Evidence.Confidence, 1e-9)
}

func TestParseAndValidate_TruncatedWithZeroScore(t *testing.T) {
	full := responseJSON(
		`{"itemId":"a","itemName":"A","category":"C","score":4,"triState":"達成","reason":"r","evidence":{"pages":[{"page":1,"quote":"q"}],"confidence":0.8}}`,
		`{"itemId":"b","itemName":"B","category":"C","score":0,"triState":"achieved","reason":"r","evidence":{"pages":[],"confidence":0}}`,
	)
	raw := strings.TrimSuffix(full, "}")

	resp, stage, err := ParseAndValidate(raw)
	require.NoError(t, err)
	assert.Equal(t, StageRepaired, stage)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, domain.TriAchieved, resp.Items[0].TriState)
	assert.True(t, resp.Items[1].Score.IsNone())
	assert.Equal(t, []domain.PageEvidence{}, resp.Items[1].Evidence.Pages)
}

func TestParseAndValidate_FencedWithSynonyms(t *testing.T) {
	raw := "```json\n" + responseJSON(
		itemJSON(`"score":"3","triState":"部分"`),
	) + "\n```"
	resp, stage, err := ParseAndValidate(raw)
	require.NoError(t, err)
	assert.Equal(t, StageFenced, stage)
	assert.Equal(t, domain.Score(3), resp.Items[0].Score)
	assert.Equal(t, domain.TriPartial, resp.Items[0].TriState)
	assert.NotNil(t, resp.Items[0].Evidence.Pages)
}

func TestParseAndValidate_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"score above range", responseJSON(itemJSON(`"score":7,"triState":"achieved"`))},
		{"negative score", responseJSON(itemJSON(`"score":-1,"triState":"achieved"`))},
		{"fractional score", responseJSON(itemJSON(`"score":3.5,"triState":"partial"`))},
		{"confidence above one", responseJSON(itemJSON(`"score":4,"triState":"achieved","evidence":{"pages":[],"confidence":1.5}`))},
		{"page zero", responseJSON(itemJSON(`"score":4,"triState":"achieved","evidence":{"pages":[{"page":0,"quote":"q"}],"confidence":0.5}`))},
		{"empty item id", responseJSON(`{"itemId":"","itemName":"A","category":"C","reason":"r","score":4,"triState":"achieved"}`)},
		{"missing reason", responseJSON(`{"itemId":"a","itemName":"A","category":"C","score":4,"triState":"achieved"}`)},
		{"missing item name", responseJSON(`{"itemId":"a","category":"C","reason":"r","score":4,"triState":"achieved"}`)},
		{"missing category", responseJSON(`{"itemId":"a","itemName":"A","reason":"r","score":4,"triState":"achieved"}`)},
		{"reason not a string", responseJSON(`{"itemId":"a","itemName":"A","category":"C","reason":3,"score":4,"triState":"achieved"}`)},
		{"missing overall", `{"items":[]}`},
		{"overall list not strings", `{"overall":{"summary":"s","strengths":[1],"weaknesses":[],"risks":[],"recommendations":[]},"items":[]}`},
		{"missing items", `{` + overallJSON + `}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stage, err := ParseAndValidate(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
			assert.Equal(t, StageDirect, stage)
		})
	}
}

func TestParseAndValidate_Unparseable(t *testing.T) {
	_, stage, err := ParseAndValidate("I cannot help with that.")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
	assert.Equal(t, StageNone, stage)
	assert.Contains(t, err.Error(), "unparseable")
}

func TestParseAndValidate_EmptyItems(t *testing.T) {
	resp, _, err := ParseAndValidate(responseJSON())
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
}
