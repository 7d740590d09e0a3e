// Command server starts the compliance assessment HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/ai/tokencount"
	httpserver "github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/kv/rediskv"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/observability"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/repo/postgres"
	tikaext "github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/textextractor/tika"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/app"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/config"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/blobstore"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/criteria"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/segmenter"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/usecase"
)

func fatal(msg string, err error) {
	slog.Error(msg, slog.Any("error", err))
	os.Exit(1)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	// Infra: Redis (documents, criteria) and Postgres (assessments)
	rdb, err := rediskv.NewClient(cfg.RedisURL)
	if err != nil {
		fatal("redis config invalid", err)
	}
	defer func() { _ = rdb.Close() }()
	kv := rediskv.New(rdb)
	if err := app.WaitFor(ctx, "redis", kv, cfg.StartupMaxElapsed); err != nil {
		fatal("redis unavailable", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		fatal("db connect failed", err)
	}
	defer pool.Close()
	if err := app.WaitFor(ctx, "postgres", pool, cfg.StartupMaxElapsed); err != nil {
		fatal("db unavailable", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		fatal("db migrate failed", err)
	}
	repo := postgres.NewAssessmentRepo(pool)

	if cfg.DataRetentionDays > 0 {
		cleanupSvc := postgres.NewCleanupService(repo, cfg.DataRetentionDays)
		go cleanupSvc.RunPeriodic(ctx, cfg.CleanupInterval)
		slog.Info("cleanup service started", slog.Int("retention_days", cfg.DataRetentionDays), slog.Duration("interval", cfg.CleanupInterval))
	}

	// Ingestion
	tika := tikaext.New(cfg.TikaURL, 0)
	blobs := blobstore.New(kv, blobstore.Options{ChunkSize: cfg.BlobChunkSize, TTL: cfg.BlobTTL})
	seg := segmenter.New(tika, segmenter.WithWordPageBudget(cfg.WordPageChars))

	// Evaluation
	tpl, err := app.LoadPrompt(cfg)
	if err != nil {
		fatal("prompt template invalid", err)
	}
	model, modelName, err := app.NewModelClient(cfg)
	if err != nil {
		fatal("model client invalid", err)
	}
	slog.Info("model client initialized", slog.String("provider", cfg.ModelProvider), slog.String("model", modelName), slog.String("prompt_language", tpl.Language))
	evaluator := usecase.NewEvaluator(model, tpl, tokencount.NewCounter(), modelName)

	// Usecases
	criteriaSvc := usecase.NewCriteriaService(criteria.NewStore(kv))
	uploadSvc := usecase.NewUploadService(blobs, seg, cfg.MaxUploadBytes(), cfg.MaxPages)
	assessmentSvc := usecase.NewAssessmentService(criteriaSvc.Store, blobs, seg, evaluator, repo, tpl.NotStatedReason, cfg.EvalMaxPages)

	dbCheck, redisCheck, tikaCheck := app.BuildReadinessChecks(pool, kv, tika)
	srv := httpserver.NewServer(cfg, uploadSvc, criteriaSvc, assessmentSvc, dbCheck, redisCheck, tikaCheck)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.BuildRouter(cfg, srv),
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", slog.Any("error", err))
	}
}
