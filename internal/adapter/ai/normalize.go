package ai

import (
	"math"
	"strconv"
	"strings"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/pkg/textx"
)

var triStateSynonyms = func() map[string]domain.TriState {
	src := map[domain.TriState][]string{
		domain.TriAchieved: {
			"achieved", "met", "compliant", "yes", "達成", "達成済", "達成済み", "充足",
		},
		domain.TriPartial: {
			"partial", "partially achieved", "partially met", "partially-achieved", "partially",
			"部分", "部分達成", "一部達成", "一部",
		},
		domain.TriNotAchieved: {
			"not-achieved", "not achieved", "not_achieved", "notachieved", "not met", "unmet",
			"non-compliant", "no", "未達成", "未達", "未充足",
		},
		domain.TriUnknown: {
			"unknown", "n/a", "na", "none", "null", "不明", "不明確", "判定不能",
		},
	}
	m := make(map[string]domain.TriState)
	for ts, names := range src {
		for _, n := range names {
			m[textx.Fold(n)] = ts
		}
	}
	return m
}()

// NormalizeTriState maps a model-declared tri-state to a canonical value.
// Surrounding quotes, width variants and case are ignored; anything
// unrecognized becomes unknown.
func NormalizeTriState(v any) domain.TriState {
	s, ok := v.(string)
	if !ok {
		return domain.TriUnknown
	}
	s = strings.Trim(strings.TrimSpace(s), "\"'`「」『』")
	if ts, ok := triStateSynonyms[textx.Fold(s)]; ok {
		return ts
	}
	return domain.TriUnknown
}

// normalizeScore coerces integral numbers and numeric strings to float64
// and maps 0 to null. Other values pass through for the schema to judge.
func normalizeScore(v any) any {
	switch s := v.(type) {
	case float64:
		if s == 0 {
			return nil
		}
		return s
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || f != math.Trunc(f) {
			return v
		}
		return normalizeScore(f)
	}
	return v
}

// Normalize rewrites a decoded response in place so that sloppy but
// unambiguous values pass validation: scores of 0 become null, tri-states are
// canonical, and missing evidence becomes empty evidence. It never fails.
func Normalize(v map[string]any) map[string]any {
	items, ok := v["items"].([]any)
	if !ok {
		return v
	}
	for _, raw := range items {
		it, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if s, present := it["score"]; present {
			it["score"] = normalizeScore(s)
		} else {
			it["score"] = nil
		}
		it["triState"] = string(NormalizeTriState(it["triState"]))
		ev, ok := it["evidence"].(map[string]any)
		if !ok {
			ev = map[string]any{}
			it["evidence"] = ev
		}
		if ev["pages"] == nil {
			ev["pages"] = []any{}
		}
		if ev["confidence"] == nil {
			ev["confidence"] = float64(0)
		}
	}
	return v
}
