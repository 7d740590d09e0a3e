package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
		},
		[]string{"route", "method"},
	)

	// External dependency calls (tika, model, ...)
	ExternalCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "external_calls_total",
			Help: "Total number of calls to external dependencies by outcome",
		},
		[]string{"dependency", "operation", "status"},
	)
	ExternalCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "external_call_duration_seconds",
			Help:    "External dependency call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"dependency", "operation"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of model requests by provider and status",
		},
		[]string{"provider", "status"},
	)
	AIPromptTokens = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ai_prompt_tokens",
			Help:    "Estimated prompt size in tokens per evaluation",
			Buckets: prometheus.ExponentialBuckets(1000, 2, 10),
		},
	)

	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluations_total",
			Help: "Total number of evaluation runs by outcome (ok, fallback)",
		},
		[]string{"outcome"},
	)
	ResponseRepairStageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_repair_stage_total",
			Help: "Parse stage that recovered the model response",
		},
		[]string{"stage"},
	)
	TriStateOverridesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tristate_overrides_total",
			Help: "Ratings whose model-declared tri-state disagreed with the score",
		},
	)
	SynthesizedRatingsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "synthesized_ratings_total",
			Help: "Ratings filled in for criteria the model omitted",
		},
	)

	// Evaluation outcome distributions
	AchievedRateHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assessment_achieved_rate",
			Help:    "Distribution of achievedRate ([0,100])",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)
	ScoreAvgHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assessment_score_avg",
			Help:    "Distribution of scoreAvg ([0,5])",
			Buckets: []float64{0, 1, 1.5, 2, 2.5, 3, 3.5, 4, 4.5, 5},
		},
	)

	BlobChunksWrittenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "blob_chunks_written_total",
			Help: "Total number of blob chunks written",
		},
	)
	SegmentedPages = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "document_segmented_pages",
			Help:    "Logical pages produced per segmented document",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"format"},
	)
)

var initOnce sync.Once

// InitMetrics registers all collectors with the default registry. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			ExternalCallsTotal,
			ExternalCallDuration,
			AIRequestsTotal,
			AIPromptTokens,
			EvaluationsTotal,
			ResponseRepairStageTotal,
			TriStateOverridesTotal,
			SynthesizedRatingsTotal,
			AchievedRateHistogram,
			ScoreAvgHistogram,
			BlobChunksWrittenTotal,
			SegmentedPages,
		)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// ObserveEvaluation records the outcome of one evaluation run.
func ObserveEvaluation(fallback bool, achievedRate, scoreAvg float64) {
	outcome := "ok"
	if fallback {
		outcome = "fallback"
	}
	EvaluationsTotal.WithLabelValues(outcome).Inc()
	if achievedRate >= 0 && achievedRate <= 100 {
		AchievedRateHistogram.Observe(achievedRate)
	}
	if scoreAvg >= 0 && scoreAvg <= 5 {
		ScoreAvgHistogram.Observe(scoreAvg)
	}
}

// ObserveRepairStage records which parse stage recovered a model response.
func ObserveRepairStage(stage string) {
	if stage == "" {
		stage = "failed"
	}
	ResponseRepairStageTotal.WithLabelValues(stage).Inc()
}

// ObserveSegmentation records the logical page count of a segmented document.
func ObserveSegmentation(format string, pages int) {
	SegmentedPages.WithLabelValues(format).Observe(float64(pages))
}
