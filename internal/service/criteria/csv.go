// Package criteria imports evaluation criteria from CSV and keeps the active
// criteria set as one versioned value in the key-value backend.
package criteria

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/pkg/textx"
)

type field int

const (
	fieldItemID field = iota
	fieldItemName
	fieldCategory
	fieldDefinition
	fieldReferenceStandards
	fieldEvidenceSources
	fieldRisks
)

// headerSynonyms lists accepted header spellings per field, English and
// Japanese. Keys are folded (NFKC, lowercase) before lookup.
var headerSynonyms = map[field][]string{
	fieldItemID:             {"itemId", "item_id", "item id", "id", "項目ID"},
	fieldItemName:           {"itemName", "item_name", "item name", "name", "チェック項目", "項目名"},
	fieldCategory:           {"category", "カテゴリ", "カテゴリー"},
	fieldDefinition:         {"definition", "description", "詳細基準/望ましい水準", "詳細基準", "評価要件"},
	fieldReferenceStandards: {"referenceStandards", "reference_standards", "参考規格・法令"},
	fieldEvidenceSources:    {"evidenceSources", "evidence_sources", "証拠/確認ソース（例）", "証拠/確認ソース"},
	fieldRisks:              {"risks", "未達時の主なリスク"},
}

var headerIndex = func() map[string]field {
	m := make(map[string]field)
	for f, names := range headerSynonyms {
		for _, n := range names {
			m[textx.Fold(n)] = f
		}
	}
	return m
}()

// HeaderField resolves a CSV header to its field name, or "" when unknown.
func HeaderField(header string) string {
	f, ok := headerIndex[textx.Fold(header)]
	if !ok {
		return ""
	}
	return [...]string{"itemId", "itemName", "category", "definition", "referenceStandards", "evidenceSources", "risks"}[f]
}

// ParseCSV reads criteria rows. Rows lacking an item name, category or
// definition reject the whole import with domain.ErrCSVSchemaInvalid, as do
// duplicate item IDs. A missing item ID becomes item_NNN from the row position.
func ParseCSV(r io.Reader) ([]domain.CriteriaItem, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("op=criteria.ParseCSV: %w: empty file", domain.ErrCSVSchemaInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("op=criteria.ParseCSV: %w: %v", domain.ErrCSVSchemaInvalid, err)
	}
	cols := map[field]int{}
	for i, h := range header {
		if f, ok := headerIndex[textx.Fold(h)]; ok {
			if _, dup := cols[f]; !dup {
				cols[f] = i
			}
		}
	}
	var missing []string
	for _, f := range []field{fieldItemName, fieldCategory, fieldDefinition} {
		if _, ok := cols[f]; !ok {
			missing = append(missing, headerSynonyms[f][0])
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("op=criteria.ParseCSV: %w: missing columns %s", domain.ErrCSVSchemaInvalid, strings.Join(missing, ", "))
	}

	var (
		items []domain.CriteriaItem
		seen  = map[string]int{}
		row   int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("op=criteria.ParseCSV: %w: %v", domain.ErrCSVSchemaInvalid, err)
		}
		if blank(rec) {
			continue
		}
		row++
		get := func(f field) string {
			i, ok := cols[f]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		it := domain.CriteriaItem{
			ItemID:             get(fieldItemID),
			ItemName:           get(fieldItemName),
			Category:           get(fieldCategory),
			Definition:         get(fieldDefinition),
			ReferenceStandards: get(fieldReferenceStandards),
			EvidenceSources:    get(fieldEvidenceSources),
			Risks:              get(fieldRisks),
		}
		if it.ItemName == "" || it.Category == "" || it.Definition == "" {
			return nil, fmt.Errorf("op=criteria.ParseCSV: %w: row %d lacks itemName, category or definition", domain.ErrCSVSchemaInvalid, row)
		}
		if it.ItemID == "" {
			it.ItemID = fmt.Sprintf("item_%03d", row)
		}
		if prev, dup := seen[it.ItemID]; dup {
			return nil, fmt.Errorf("op=criteria.ParseCSV: %w: duplicate itemId %q in rows %d and %d", domain.ErrCSVSchemaInvalid, it.ItemID, prev, row)
		}
		seen[it.ItemID] = row
		items = append(items, it)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("op=criteria.ParseCSV: %w: no rows", domain.ErrCSVSchemaInvalid)
	}
	return items, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
