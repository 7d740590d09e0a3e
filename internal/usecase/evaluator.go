// Package usecase contains application business logic services.
package usecase

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/ai"
	obsmetrics "github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/observability"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/observability"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/prompt"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/scoring"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/segmenter"
)

// TokenCounter estimates the prompt size for a model.
type TokenCounter interface {
	CountPrompt(instructions, content, model string) int
}

// Evaluation is the outcome of one orchestrated model run. Response is always
// usable: when the call or its output could not be trusted, Fallback is set,
// Cause holds the reason and Response is the fallback response.
type Evaluation struct {
	Response domain.ModelResponse
	Fallback bool
	Stage    ai.Stage
	Cause    error
}

// Evaluator builds the prompt, invokes the model exactly once and turns the
// answer into a validated response.
type Evaluator struct {
	model     domain.ModelClient
	tpl       prompt.Template
	tokens    TokenCounter
	modelName string
}

// NewEvaluator constructs an Evaluator. tokens may be nil.
func NewEvaluator(model domain.ModelClient, tpl prompt.Template, tokens TokenCounter, modelName string) *Evaluator {
	return &Evaluator{model: model, tpl: tpl, tokens: tokens, modelName: modelName}
}

// Evaluate never fails; see Evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, criteria []domain.CriteriaItem, pages []domain.DocumentPage, target domain.TargetInfo) Evaluation {
	ctx, span := otel.Tracer("usecase.evaluator").Start(ctx, "Evaluator.Evaluate")
	defer span.End()
	span.SetAttributes(attribute.Int("criteria", len(criteria)), attribute.Int("pages", len(pages)))
	lg := observability.LoggerFromContext(ctx)

	p := e.tpl.Build(criteria, pages, target)
	if e.tokens != nil {
		n := e.tokens.CountPrompt(p.Instructions, p.Content, e.modelName)
		obsmetrics.AIPromptTokens.Observe(float64(n))
		span.SetAttributes(attribute.Int("prompt.tokens", n))
		lg.Info("evaluation prompt built",
			slog.Int("criteria", len(criteria)),
			slog.Int("pages", len(pages)),
			slog.Int("prompt_tokens", n))
	}

	raw, err := e.model.Invoke(ctx, p.Instructions, p.Content)
	if err != nil {
		return e.fallback(ctx, criteria, ai.StageNone, err)
	}

	resp, stage, err := ai.ParseAndValidate(raw)
	obsmetrics.ObserveRepairStage(string(stage))
	span.SetAttributes(attribute.String("repair.stage", string(stage)))
	if err != nil {
		lg.Warn("model output rejected",
			slog.String("stage", string(stage)),
			slog.String("raw_head", segmenter.TruncateText(raw, 500)),
			slog.Any("error", err))
		return e.fallback(ctx, criteria, stage, err)
	}
	for i := range resp.Items {
		for j := range resp.Items[i].Evidence.Pages {
			q := &resp.Items[i].Evidence.Pages[j].Quote
			*q = segmenter.TruncateText(*q, segmenter.DefaultQuoteLength)
		}
	}
	lg.Info("model output accepted", slog.String("stage", string(stage)), slog.Int("items", len(resp.Items)))
	return Evaluation{Response: resp, Stage: stage}
}

func (e *Evaluator) fallback(ctx context.Context, criteria []domain.CriteriaItem, stage ai.Stage, cause error) Evaluation {
	observability.LoggerFromContext(ctx).Warn("evaluation fell back",
		slog.String("stage", string(stage)),
		slog.Any("cause", cause))
	return Evaluation{
		Response: FallbackResponse(e.tpl, criteria),
		Fallback: true,
		Stage:    stage,
		Cause:    cause,
	}
}

// FallbackResponse is the deterministic response used when the model cannot
// be trusted: every criterion unknown with no score and the template's fixed
// summary, risk and recommendation.
func FallbackResponse(tpl prompt.Template, criteria []domain.CriteriaItem) domain.ModelResponse {
	items := make([]domain.AssessmentItemRating, len(criteria))
	for i, c := range criteria {
		items[i] = scoring.NotStated(c, tpl.Fallback.Reason)
	}
	return domain.ModelResponse{
		Overall: domain.Overall{
			Summary:         tpl.Fallback.Summary,
			Strengths:       []string{},
			Weaknesses:      []string{},
			Risks:           []string{tpl.Fallback.Risk},
			Recommendations: []string{tpl.Fallback.Recommendation},
		},
		Items: items,
	}
}
