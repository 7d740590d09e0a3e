package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const responseSchemaURL = "model_response.json"

var responseSchema = map[string]any{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type":    "object",
	"required": []string{"overall", "items"},
	"properties": map[string]any{
		"overall": map[string]any{
			"type":     "object",
			"required": []string{"summary", "strengths", "weaknesses", "risks", "recommendations"},
			"properties": map[string]any{
				"summary":         map[string]any{"type": "string"},
				"strengths":       stringArray,
				"weaknesses":      stringArray,
				"risks":           stringArray,
				"recommendations": stringArray,
			},
		},
		"items": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"itemId", "itemName", "category", "score", "triState", "reason"},
				"properties": map[string]any{
					"itemId":   map[string]any{"type": "string", "minLength": 1},
					"itemName": map[string]any{"type": "string"},
					"category": map[string]any{"type": "string"},
					"reason":   map[string]any{"type": "string"},
					"score": map[string]any{
						"type":    []string{"integer", "null"},
						"minimum": 1,
						"maximum": 5,
					},
					"triState": map[string]any{
						"enum": []string{"achieved", "partial", "not-achieved", "unknown"},
					},
					"evidence": map[string]any{
						"type":     "object",
						"required": []string{"pages", "confidence"},
						"properties": map[string]any{
							"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
							"pages": map[string]any{
								"type": "array",
								"items": map[string]any{
									"type":     "object",
									"required": []string{"page"},
									"properties": map[string]any{
										"page":  map[string]any{"type": "integer", "minimum": 1},
										"quote": map[string]any{"type": "string"},
									},
								},
							},
						},
					},
				},
			},
		},
	},
}

var stringArray = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

var (
	compiledOnce sync.Once
	compiled     *jsonschema.Schema
	compileErr   error
)

func schema() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		b, err := json.Marshal(responseSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(responseSchemaURL, bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile(responseSchemaURL)
	})
	return compiled, compileErr
}

// ValidateResponse checks a decoded, normalized response against the
// response schema.
func ValidateResponse(v map[string]any) error {
	s, err := schema()
	if err != nil {
		return err
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
