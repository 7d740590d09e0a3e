package segmenter

import (
	"sort"
	"strings"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/pkg/textx"
)

// DefaultRankLimit is used when RankPagesByRelevance gets a non-positive limit.
const DefaultRankLimit = 10

// RankPagesByRelevance scores each page by the summed case-insensitive
// substring occurrences of every keyword and returns at most limit pages in
// descending score order. Pages without any hit are dropped; equal scores
// keep their original order.
func RankPagesByRelevance(pages []domain.DocumentPage, keywords []string, limit int) []domain.DocumentPage {
	if limit <= 0 {
		limit = DefaultRankLimit
	}
	type scored struct {
		page  domain.DocumentPage
		score int
	}
	ranked := make([]scored, 0, len(pages))
	for _, p := range pages {
		score := 0
		for _, kw := range keywords {
			score += textx.CountFold(p.Text, strings.TrimSpace(kw))
		}
		if score > 0 {
			ranked = append(ranked, scored{page: p, score: score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]domain.DocumentPage, len(ranked))
	for i, r := range ranked {
		out[i] = r.page
	}
	return out
}

// KeywordsFromCriteria collects distinct item names and categories as
// relevance keywords.
func KeywordsFromCriteria(items []domain.CriteriaItem) []string {
	seen := map[string]bool{}
	var out []string
	for _, it := range items {
		for _, kw := range []string{it.ItemName, it.Category} {
			kw = strings.TrimSpace(kw)
			k := strings.ToLower(kw)
			if kw == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, kw)
		}
	}
	return out
}

// DefaultQuoteLength bounds evidence quotes.
const DefaultQuoteLength = 300

// TruncateText shortens text to at most n runes (DefaultQuoteLength when
// n <= 0), "..." suffix included.
func TruncateText(text string, n int) string {
	if n <= 0 {
		n = DefaultQuoteLength
	}
	return textx.Truncate(text, n)
}
