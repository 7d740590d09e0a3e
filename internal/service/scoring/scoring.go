// Package scoring derives tri-state verdicts from scores, guarantees one
// rating per criterion and aggregates ratings into metrics.
package scoring

import (
	"math"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
)

// TriStateFromScore maps 4 and 5 to achieved, 3 to partial, 1 and 2 to
// not-achieved, and none (or anything out of range) to unknown.
func TriStateFromScore(s domain.Score) domain.TriState {
	switch s {
	case 4, 5:
		return domain.TriAchieved
	case 3:
		return domain.TriPartial
	case 1, 2:
		return domain.TriNotAchieved
	default:
		return domain.TriUnknown
	}
}

// Reconcile makes the tri-state agree with the score. The score is
// authoritative; overridden reports whether the declared value differed.
func Reconcile(r domain.AssessmentItemRating) (out domain.AssessmentItemRating, overridden bool) {
	derived := TriStateFromScore(r.Score)
	overridden = r.TriState != derived
	r.TriState = derived
	return r, overridden
}

// Result is the output of Complete.
type Result struct {
	Ratings     []domain.AssessmentItemRating
	Synthesized int
	Overridden  int
	Dropped     int
}

// Complete returns exactly one rating per criterion, in criteria order. For
// each criterion the first model item with its ID wins; later duplicates and
// items with unknown IDs are dropped. Criteria the model skipped get a
// synthesized rating with no score, unknown tri-state and notStated as
// reason. Name and category always come from the criterion.
func Complete(criteria []domain.CriteriaItem, items []domain.AssessmentItemRating, notStated string) Result {
	byID := make(map[string]domain.AssessmentItemRating, len(items))
	known := make(map[string]struct{}, len(criteria))
	for _, c := range criteria {
		known[c.ItemID] = struct{}{}
	}
	res := Result{Ratings: make([]domain.AssessmentItemRating, 0, len(criteria))}
	for _, it := range items {
		if _, ok := known[it.ItemID]; !ok {
			res.Dropped++
			continue
		}
		if _, dup := byID[it.ItemID]; dup {
			res.Dropped++
			continue
		}
		byID[it.ItemID] = it
	}

	for _, c := range criteria {
		it, ok := byID[c.ItemID]
		if !ok {
			res.Synthesized++
			res.Ratings = append(res.Ratings, NotStated(c, notStated))
			continue
		}
		it.ItemName = c.ItemName
		it.Category = c.Category
		if it.Evidence.Pages == nil {
			it.Evidence.Pages = []domain.PageEvidence{}
		}
		var overridden bool
		it, overridden = Reconcile(it)
		if overridden {
			res.Overridden++
		}
		res.Ratings = append(res.Ratings, it)
	}
	return res
}

// NotStated builds the rating used when nothing supports a criterion.
func NotStated(c domain.CriteriaItem, reason string) domain.AssessmentItemRating {
	return domain.AssessmentItemRating{
		ItemID:   c.ItemID,
		ItemName: c.ItemName,
		Category: c.Category,
		Score:    domain.NoScore,
		TriState: domain.TriUnknown,
		Reason:   reason,
		Evidence: domain.Evidence{Pages: []domain.PageEvidence{}, Confidence: 0},
	}
}

// ComputeMetrics aggregates ratings. achievedRate is the share of achieved
// among achieved, partial and not-achieved in percent; unknown ratings are
// excluded from the denominator. scoreAvg is the mean of present scores.
// Both are rounded to one decimal and are 0 when their denominator is empty.
func ComputeMetrics(ratings []domain.AssessmentItemRating) domain.Metrics {
	var (
		m          domain.Metrics
		sum, count int
	)
	for _, r := range ratings {
		switch r.TriState {
		case domain.TriAchieved:
			m.AchievedCount++
		case domain.TriPartial:
			m.PartialCount++
		case domain.TriNotAchieved:
			m.NotAchievedCount++
		default:
			m.UnknownCount++
		}
		if !r.Score.IsNone() {
			sum += int(r.Score)
			count++
		}
	}
	if den := m.AchievedCount + m.PartialCount + m.NotAchievedCount; den > 0 {
		m.AchievedRate = round1(100 * float64(m.AchievedCount) / float64(den))
	}
	if count > 0 {
		m.ScoreAvg = round1(float64(sum) / float64(count))
	}
	return m
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
