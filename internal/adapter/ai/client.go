package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	obsmetrics "github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/observability"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/observability"
)

// InstrumentedClient records a span, external-call metrics and per-provider
// request counts around one model invocation. It never retries.
type InstrumentedClient struct {
	next     domain.ModelClient
	provider string
}

// Instrument wraps next for the named provider.
func Instrument(next domain.ModelClient, provider string) *InstrumentedClient {
	return &InstrumentedClient{next: next, provider: provider}
}

// Invoke calls the wrapped client once. Errors that are not already
// classified are wrapped with domain.ErrModelInvocationFailed.
func (c *InstrumentedClient) Invoke(ctx context.Context, instructions, content string) (string, error) {
	var out string
	err := observability.ObserveCall(ctx, observability.DependencyModel, c.provider, func(ctx context.Context) error {
		var err error
		out, err = c.next.Invoke(ctx, instructions, content)
		return err
	})
	if err != nil {
		obsmetrics.AIRequestsTotal.WithLabelValues(c.provider, "error").Inc()
		observability.LoggerFromContext(ctx).Warn("model invocation failed",
			slog.String("provider", c.provider),
			slog.Any("error", err))
		if !errors.Is(err, domain.ErrModelInvocationFailed) {
			err = fmt.Errorf("%w: %v", domain.ErrModelInvocationFailed, err)
		}
		return "", fmt.Errorf("op=ai.Invoke: %w", err)
	}
	obsmetrics.AIRequestsTotal.WithLabelValues(c.provider, "success").Inc()
	return out, nil
}
