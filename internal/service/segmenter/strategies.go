package segmenter

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
)

// DefaultWordPageBudget is the soft character budget of a synthetic Word page.
const DefaultWordPageBudget = 3000

var (
	// two or more blank lines
	pdfPageBreak = regexp.MustCompile(`\n\s*\n\s*\n`)
	// one or more blank lines
	wordSectionBreak = regexp.MustCompile(`\n\n+`)
)

// PDFStrategy splits on runs of at least two blank lines, a proxy for page
// breaks in extracted PDF text.
type PDFStrategy struct{}

// Name implements Strategy.
func (PDFStrategy) Name() string { return "pdf" }

// Segment implements Strategy.
func (PDFStrategy) Segment(text string) []domain.DocumentPage {
	return number(pdfPageBreak.Split(text, -1), text)
}

// PhysicalPages reports the page count from the PDF metadata.
func (PDFStrategy) PhysicalPages(ex domain.Extraction) int { return ex.PageCount }

// WordStrategy packs blank-line separated sections greedily into pages of
// roughly Budget characters, separators included. A section longer than the
// budget is kept whole.
type WordStrategy struct {
	Budget int
}

// Name implements Strategy.
func (WordStrategy) Name() string { return "word" }

// Segment implements Strategy.
func (w WordStrategy) Segment(text string) []domain.DocumentPage {
	budget := w.Budget
	if budget <= 0 {
		budget = DefaultWordPageBudget
	}
	var (
		out    []string
		cur    strings.Builder
		curLen int
	)
	for _, section := range wordSectionBreak.Split(text, -1) {
		n := utf8.RuneCountInString(section)
		if curLen+n > budget && curLen > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
			curLen += 2
		}
		cur.WriteString(section)
		curLen += n
	}
	out = append(out, cur.String())
	return number(out, text)
}
