package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// WaitFor pings p with exponential backoff until it answers or maxElapsed
// passes.
func WaitFor(ctx context.Context, name string, p Pinger, maxElapsed time.Duration) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 200 * time.Millisecond
	expo.MaxInterval = 5 * time.Second
	expo.MaxElapsedTime = maxElapsed
	attempt := 0
	op := func() error {
		attempt++
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return p.Ping(pctx)
	}
	notify := func(err error, next time.Duration) {
		slog.Warn("dependency not ready", slog.String("dependency", name), slog.Int("attempt", attempt),
			slog.Duration("retry_in", next), slog.Any("error", err))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(expo, ctx), notify); err != nil {
		return fmt.Errorf("op=app.WaitFor dependency=%s: %w", name, err)
	}
	slog.Info("dependency ready", slog.String("dependency", name), slog.Int("attempts", attempt))
	return nil
}
