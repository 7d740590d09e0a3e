// Package segmenter turns PDF and Word documents into ordered logical pages.
//
// Text extraction does not reliably expose true page breaks, so pages are
// derived heuristically by a per-format Strategy. Strategies are pluggable;
// a page-boundary-aware one can replace the defaults without touching the
// evaluation stages.
package segmenter

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	obsmetrics "github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/observability"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/observability"
)

// Accepted MIME types.
const (
	MIMEPDF  = "application/pdf"
	MIMEDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEDoc  = "application/msword"
)

// Strategy splits extracted text into logical pages numbered from 1.
type Strategy interface {
	Name() string
	Segment(text string) []domain.DocumentPage
}

// physicalPager is implemented by strategies whose format carries a
// physical page count worth reporting next to the logical one.
type physicalPager interface {
	PhysicalPages(ex domain.Extraction) int
}

// Segmenter dispatches on MIME type to a Strategy.
type Segmenter struct {
	extractor  domain.TextExtractor
	strategies map[string]Strategy
}

// Option customizes a Segmenter.
type Option func(*Segmenter)

// WithStrategy registers (or replaces) the strategy for a MIME type.
func WithStrategy(mimeType string, s Strategy) Option {
	return func(sg *Segmenter) { sg.strategies[normalizeMIME(mimeType)] = s }
}

// WithWordPageBudget sets the soft character budget of Word pages.
func WithWordPageBudget(chars int) Option {
	return func(sg *Segmenter) {
		w := WordStrategy{Budget: chars}
		sg.strategies[MIMEDocx] = w
		sg.strategies[MIMEDoc] = w
	}
}

// New builds a Segmenter with the PDF and Word strategies registered.
func New(extractor domain.TextExtractor, opts ...Option) *Segmenter {
	sg := &Segmenter{
		extractor: extractor,
		strategies: map[string]Strategy{
			MIMEPDF:  PDFStrategy{},
			MIMEDocx: WordStrategy{},
			MIMEDoc:  WordStrategy{},
		},
	}
	for _, o := range opts {
		o(sg)
	}
	return sg
}

// Supports reports whether a strategy is registered for mimeType.
func (s *Segmenter) Supports(mimeType string) bool {
	_, ok := s.strategies[normalizeMIME(mimeType)]
	return ok
}

// Segment extracts the text of data and splits it into pages. Unknown MIME
// types fail with domain.ErrUnsupportedFormat before any extraction.
func (s *Segmenter) Segment(ctx context.Context, data []byte, mimeType string) (domain.SegmentedDocument, error) {
	mt := normalizeMIME(mimeType)
	strategy, ok := s.strategies[mt]
	if !ok {
		return domain.SegmentedDocument{}, fmt.Errorf("op=segmenter.Segment: %w: %q", domain.ErrUnsupportedFormat, mimeType)
	}
	ctx, span := otel.Tracer("segmenter").Start(ctx, "segmenter.Segment")
	defer span.End()

	ex, err := s.extractor.Extract(ctx, data, mt)
	if err != nil {
		return domain.SegmentedDocument{}, fmt.Errorf("op=segmenter.Segment: %w", err)
	}
	doc := domain.SegmentedDocument{Pages: strategy.Segment(ex.Text)}
	if pp, ok := strategy.(physicalPager); ok {
		doc.PhysicalPages = pp.PhysicalPages(ex)
	}
	span.SetAttributes(
		attribute.String("segmenter.strategy", strategy.Name()),
		attribute.Int("segmenter.logical_pages", doc.LogicalPages()),
		attribute.Int("segmenter.physical_pages", doc.PhysicalPages),
	)
	obsmetrics.ObserveSegmentation(strategy.Name(), doc.LogicalPages())
	observability.LoggerFromContext(ctx).Debug("document segmented",
		slog.String("strategy", strategy.Name()),
		slog.Int("logical_pages", doc.LogicalPages()),
		slog.Int("physical_pages", doc.PhysicalPages),
		slog.Int("chars", len(ex.Text)))
	return doc, nil
}

func normalizeMIME(m string) string {
	if mt, _, err := mime.ParseMediaType(m); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(m))
}

// number assigns contiguous page numbers to non-empty texts. When nothing
// remains, the whole (trimmed) text becomes the single page.
func number(texts []string, full string) []domain.DocumentPage {
	pages := make([]domain.DocumentPage, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		pages = append(pages, domain.DocumentPage{PageNumber: len(pages) + 1, Text: t})
	}
	if len(pages) == 0 {
		return []domain.DocumentPage{{PageNumber: 1, Text: strings.TrimSpace(full)}}
	}
	return pages
}
