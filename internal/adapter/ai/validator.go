package ai

import (
	"encoding/json"
	"fmt"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
)

// ParseAndValidate runs the repair ladder over raw model output, normalizes
// the decoded value and validates it against the response schema. The stage
// that recovered the JSON is returned even when validation fails. Every
// failure wraps domain.ErrSchemaInvalid.
func ParseAndValidate(raw string) (domain.ModelResponse, Stage, error) {
	res := ParseLadder(raw)
	if !res.OK() {
		return domain.ModelResponse{}, StageNone, fmt.Errorf("op=ai.ParseAndValidate: %w: unparseable output: %v", domain.ErrSchemaInvalid, res.Err)
	}
	v := Normalize(res.Value)
	if err := ValidateResponse(v); err != nil {
		return domain.ModelResponse{}, res.Stage, fmt.Errorf("op=ai.ParseAndValidate: %w: %v", domain.ErrSchemaInvalid, err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return domain.ModelResponse{}, res.Stage, fmt.Errorf("op=ai.ParseAndValidate: %w: %v", domain.ErrSchemaInvalid, err)
	}
	var out domain.ModelResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return domain.ModelResponse{}, res.Stage, fmt.Errorf("op=ai.ParseAndValidate: %w: %v", domain.ErrSchemaInvalid, err)
	}
	for i := range out.Items {
		if out.Items[i].Evidence.Pages == nil {
			out.Items[i].Evidence.Pages = []domain.PageEvidence{}
		}
	}
	return out, res.Stage, nil
}
