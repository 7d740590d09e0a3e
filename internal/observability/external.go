package observability

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	obsmetrics "github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/observability"
)

// Dependency names an external system the pipeline talks to.
type Dependency string

// Known dependencies.
const (
	DependencyTika     Dependency = "tika"
	DependencyModel    Dependency = "model"
	DependencyRedis    Dependency = "redis"
	DependencyPostgres Dependency = "postgres"
)

// ObserveCall runs fn inside a span named "<dependency>.<operation>" and
// records call count, outcome and latency. It adds no timeout of its own;
// callers that need a deadline set it on ctx.
func ObserveCall(ctx context.Context, dep Dependency, operation string, fn func(ctx context.Context) error) error {
	ctx, span := otel.Tracer("external").Start(ctx, string(dep)+"."+operation)
	defer span.End()
	span.SetAttributes(
		attribute.String("dependency", string(dep)),
		attribute.String("operation", operation),
	)

	start := time.Now()
	err := fn(ctx)
	dur := time.Since(start)

	status := callStatus(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.String("status", status), attribute.Float64("duration.seconds", dur.Seconds()))

	obsmetrics.ExternalCallsTotal.WithLabelValues(string(dep), operation, status).Inc()
	obsmetrics.ExternalCallDuration.WithLabelValues(string(dep), operation).Observe(dur.Seconds())

	LoggerFromContext(ctx).Debug("external call",
		slog.String("dependency", string(dep)),
		slog.String("operation", operation),
		slog.String("status", status),
		slog.Duration("duration", dur),
		slog.String("request_id", RequestIDFromContext(ctx)),
	)
	return err
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
