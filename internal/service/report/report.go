// Package report renders assessments as CSV and XLSX downloads.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/pkg/textx"
)

// Format selects the export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Columns is the fixed column order of the ratings table.
var Columns = []string{
	"assessmentId", "createdAt", "targetType", "name", "version", "provider",
	"category", "itemId", "itemName", "score", "triState", "reason", "pageRefs",
}

const utf8BOM = "\ufeff"

// Filename returns the download name for a.
func Filename(a domain.Assessment, f Format) string {
	return fmt.Sprintf("assessment_%s_%s.%s", a.ID, textx.SafeFilename(a.Target.Name), f)
}

// PageRefs renders evidence pages as "p.1;p.3".
func PageRefs(ev domain.Evidence) string {
	refs := make([]string, len(ev.Pages))
	for i, p := range ev.Pages {
		refs[i] = "p." + strconv.Itoa(p.Page)
	}
	return strings.Join(refs, ";")
}

func scoreCell(s domain.Score) string {
	if s.IsNone() {
		return ""
	}
	return strconv.Itoa(int(s))
}

func rows(a domain.Assessment) [][]string {
	out := make([][]string, 0, len(a.Ratings))
	for _, r := range a.Ratings {
		out = append(out, []string{
			a.ID,
			a.CreatedAt.UTC().Format(time.RFC3339),
			string(a.Target.TargetType),
			a.Target.Name,
			a.Target.Version,
			a.Target.Provider,
			r.Category,
			r.ItemID,
			r.ItemName,
			scoreCell(r.Score),
			string(r.TriState),
			r.Reason,
			PageRefs(r.Evidence),
		})
	}
	return out
}

// CSV renders one row per rating with a header, prefixed by a UTF-8 BOM so
// spreadsheet tools detect the encoding.
func CSV(a domain.Assessment) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, fmt.Errorf("op=report.CSV: %w", err)
	}
	if err := w.WriteAll(rows(a)); err != nil {
		return nil, fmt.Errorf("op=report.CSV: %w", err)
	}
	return buf.Bytes(), nil
}

const (
	ratingsSheet = "Ratings"
	summarySheet = "Summary"
)

// XLSX renders a workbook with a Ratings sheet holding the CSV columns and a
// Summary sheet with metrics and the overall narrative.
func XLSX(a domain.Assessment) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ratingsSheet); err != nil {
		return nil, fmt.Errorf("op=report.XLSX: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("op=report.XLSX: %w", err)
	}

	for i, h := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(ratingsSheet, cell, h)
	}
	for ri, r := range rows(a) {
		for ci, v := range r {
			cell, _ := excelize.CoordinatesToCellName(ci+1, ri+2)
			var val any = v
			if ci == 9 && v != "" {
				val = int(a.Ratings[ri].Score)
			}
			_ = f.SetCellValue(ratingsSheet, cell, val)
		}
	}
	_ = f.SetColWidth(ratingsSheet, "A", "B", 28)
	_ = f.SetColWidth(ratingsSheet, "G", "I", 24)
	_ = f.SetColWidth(ratingsSheet, "L", "L", 60)

	row := 1
	put := func(k string, v any) {
		kc, _ := excelize.CoordinatesToCellName(1, row)
		vc, _ := excelize.CoordinatesToCellName(2, row)
		_ = f.SetCellValue(summarySheet, kc, k)
		_ = f.SetCellValue(summarySheet, vc, v)
		row++
	}
	put("assessmentId", a.ID)
	put("createdAt", a.CreatedAt.UTC().Format(time.RFC3339))
	put("targetType", string(a.Target.TargetType))
	put("name", a.Target.Name)
	put("version", a.Target.Version)
	put("provider", a.Target.Provider)
	put("criteriaVersion", a.CriteriaVersion)
	put("fallback", a.Fallback)
	put("achievedRate", a.Metrics.AchievedRate)
	put("scoreAvg", a.Metrics.ScoreAvg)
	put("unknownCount", a.Metrics.UnknownCount)
	put("summary", a.Overall.Summary)
	put("strengths", strings.Join(a.Overall.Strengths, "\n"))
	put("weaknesses", strings.Join(a.Overall.Weaknesses, "\n"))
	put("risks", strings.Join(a.Overall.Risks, "\n"))
	put("recommendations", strings.Join(a.Overall.Recommendations, "\n"))
	_ = f.SetColWidth(summarySheet, "A", "A", 20)
	_ = f.SetColWidth(summarySheet, "B", "B", 80)

	idx, _ := f.GetSheetIndex(ratingsSheet)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("op=report.XLSX: %w", err)
	}
	return buf.Bytes(), nil
}

// Render encodes a in format f.
func Render(a domain.Assessment, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return CSV(a)
	case FormatXLSX:
		return XLSX(a)
	default:
		return nil, fmt.Errorf("op=report.Render: unknown format %q: %w", f, domain.ErrInvalidArgument)
	}
}
