package criteria

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
)

func TestParseCSV_EnglishHeaders(t *testing.T) {
	in := "item_id,item_name,category,definition,reference_standards,evidence_sources,risks\n" +
		"G-01,Data retention,Privacy,Retention periods are documented,ISO 27701,Policy,Fines\n" +
		"G-02,\"Encryption, at rest\",Security,Data is encrypted,,,\n"
	items, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, domain.CriteriaItem{
		ItemID: "G-01", ItemName: "Data retention", Category: "Privacy",
		Definition: "Retention periods are documented", ReferenceStandards: "ISO 27701",
		EvidenceSources: "Policy", Risks: "Fines",
	}, items[0])
	assert.Equal(t, "Encryption, at rest", items[1].ItemName)
}

func TestParseCSV_JapaneseHeadersWithBOMAndWidthVariants(t *testing.T) {
	in := "\ufeffカテゴリ,チェック項目,詳細基準/望ましい水準,参考規格・法令,証拠/確認ソース(例),未達時の主なリスク\n" +
		"透明性,利用規約の公開,利用規約が公開されている,ISO,Webサイト,信頼低下\n"
	items, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "item_001", items[0].ItemID)
	assert.Equal(t, "透明性", items[0].Category)
	assert.Equal(t, "利用規約の公開", items[0].ItemName)
	assert.Equal(t, "Webサイト", items[0].EvidenceSources)
	assert.Equal(t, "信頼低下", items[0].Risks)
}

func TestParseCSV_GeneratedIDsFollowRowPosition(t *testing.T) {
	in := "itemId,itemName,category,definition\n" +
		",A,C,D\n" +
		"\n" +
		"X-9,B,C,D\n" +
		",C,C,D\n"
	items, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "item_001", items[0].ItemID)
	assert.Equal(t, "X-9", items[1].ItemID)
	assert.Equal(t, "item_003", items[2].ItemID)
}

func TestParseCSV_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
		msg  string
	}{
		{"empty file", "", "empty file"},
		{"header only", "itemName,category,definition\n", "no rows"},
		{"missing column", "itemName,category\nA,B\n", "missing columns definition"},
		{"row lacks definition", "itemName,category,definition\nA,B,D\nA2,B2,\n", "row 2"},
		{"row lacks name", "itemName,category,definition\n ,B,D\n", "row 1"},
		{"duplicate id", "itemId,itemName,category,definition\nX,A,B,D\nX,A2,B,D\n", "duplicate itemId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := ParseCSV(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Nil(t, items)
			assert.ErrorIs(t, err, domain.ErrCSVSchemaInvalid)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseCSV_ShortRowsTolerated(t *testing.T) {
	in := "itemName,category,definition,risks\nA,B,D\n"
	items, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Empty(t, items[0].Risks)
}

func TestHeaderField(t *testing.T) {
	assert.Equal(t, "itemId", HeaderField(" ITEM_ID "))
	assert.Equal(t, "category", HeaderField("ｶﾃｺﾞﾘ"))
	assert.Equal(t, "evidenceSources", HeaderField("証拠/確認ソース（例）"))
	assert.Equal(t, "", HeaderField("unknown"))
}
