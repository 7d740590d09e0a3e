// Package app wires application components and startup helpers.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/observability"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/config"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/report"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming
// spaces. An empty list means any origin.
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.RequestID())
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{httpserver.RequestIDHeader, "Content-Disposition", "Location"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(httpserver.TimeoutMiddleware(requestTimeout(cfg)))

		// Mutating endpoints are rate limited per client IP.
		v1.Group(func(wr chi.Router) {
			if cfg.RateLimitPerMin > 0 {
				wr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, time.Minute))
			}
			wr.Post("/criteria", srv.ImportCriteriaHandler())
			wr.Post("/upload", srv.UploadHandler())
			wr.Post("/assessments", srv.CreateAssessmentHandler())
			wr.Delete("/assessments/{id}", srv.DeleteAssessmentHandler())
		})

		v1.Get("/criteria", srv.CurrentCriteriaHandler())
		v1.Get("/assessments/{id}", srv.GetAssessmentHandler())
		v1.Get("/assessments/{id}/export.csv", srv.ExportHandler(report.FormatCSV))
		v1.Get("/assessments/{id}/export.xlsx", srv.ExportHandler(report.FormatXLSX))
	})

	r.Get("/healthz", httpserver.HealthzHandler)
	r.Get("/readyz", srv.ReadyzHandler())
	r.Handle("/metrics", promhttp.Handler())

	return httpserver.SecurityHeaders(r)
}

func requestTimeout(cfg config.Config) time.Duration {
	if cfg.RequestTimeout > 0 {
		return cfg.RequestTimeout
	}
	return 5 * time.Minute
}
