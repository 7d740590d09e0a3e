package app

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/ai"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/ai/gemini"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/ai/openai"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/config"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/prompt"
)

// NewModelClient builds the instrumented model client selected by
// MODEL_PROVIDER and returns it with the model name used for token counts.
func NewModelClient(cfg config.Config) (*ai.InstrumentedClient, string, error) {
	switch strings.ToLower(cfg.ModelProvider) {
	case config.ProviderGemini:
		c := gemini.New(gemini.Options{
			APIKey:          cfg.GeminiAPIKey,
			BaseURL:         cfg.GeminiBaseURL,
			Model:           cfg.GeminiModel,
			Temperature:     cfg.ModelTemperature,
			TopK:            cfg.ModelTopK,
			TopP:            cfg.ModelTopP,
			MaxOutputTokens: cfg.ModelMaxOutputTokens,
			Timeout:         cfg.ModelHTTPTimeout,
		})
		return ai.Instrument(c, config.ProviderGemini), cfg.GeminiModel, nil
	case config.ProviderOpenAI:
		c := openai.New(openai.Options{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			Temperature: cfg.ModelTemperature,
			TopP:        cfg.ModelTopP,
			MaxTokens:   cfg.ModelMaxOutputTokens,
			Timeout:     cfg.ModelHTTPTimeout,
		})
		return ai.Instrument(c, config.ProviderOpenAI), cfg.OpenAIModel, nil
	}
	return nil, "", fmt.Errorf("op=app.NewModelClient: unknown provider %q", cfg.ModelProvider)
}

// LoadPrompt returns the template file when configured, else the embedded
// template for PROMPT_LANGUAGE.
func LoadPrompt(cfg config.Config) (prompt.Template, error) {
	if cfg.PromptTemplateFile != "" {
		return prompt.LoadFile(cfg.PromptTemplateFile)
	}
	return prompt.Load(cfg.PromptLanguage)
}
