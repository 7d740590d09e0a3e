package httpserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/config"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/report"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/usecase"
)

// multipartSlack covers multipart framing around the file part.
const multipartSlack = 1 << 20

// Uploader stores validated documents.
type Uploader interface {
	Ingest(ctx context.Context, filename string, data []byte) (usecase.UploadResult, error)
}

// CriteriaManager imports and serves the active criteria set.
type CriteriaManager interface {
	Import(ctx context.Context, r io.Reader) (domain.CriteriaSet, error)
	Current(ctx context.Context) (domain.CriteriaSet, error)
}

// AssessmentManager runs and serves assessments.
type AssessmentManager interface {
	Create(ctx context.Context, req domain.AssessmentRequest) (domain.Assessment, error)
	Get(ctx context.Context, id string) (domain.Assessment, error)
	Delete(ctx context.Context, id string) error
	Export(ctx context.Context, id string, format report.Format) (usecase.Export, error)
}

// Server aggregates handlers dependencies.
type Server struct {
	Cfg         config.Config
	Uploads     Uploader
	Criteria    CriteriaManager
	Assessments AssessmentManager
	DBCheck     func(ctx context.Context) error
	RedisCheck  func(ctx context.Context) error
	TikaCheck   func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, uploads Uploader, criteria CriteriaManager, assessments AssessmentManager, dbCheck, redisCheck, tikaCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Uploads: uploads, Criteria: criteria, Assessments: assessments, DBCheck: dbCheck, RedisCheck: redisCheck, TikaCheck: tikaCheck}
}

// acceptsJSON implements the accept negotiation of the JSON endpoints.
func acceptsJSON(w http.ResponseWriter, r *http.Request) bool {
	a := r.Header.Get("Accept")
	if a == "" || strings.Contains(a, "*/*") || strings.Contains(a, "application/json") {
		return true
	}
	writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{
		Code: "NOT_ACCEPTABLE", Message: "not acceptable", Details: map[string]string{"accept": a},
	}})
	return false
}

// readMultipartFile returns the name and bytes of the "file" part. Bodies
// over limit fail with ErrSizeLimitExceeded.
func readMultipartFile(w http.ResponseWriter, r *http.Request, limit int64) (string, []byte, error) {
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt != "multipart/form-data" {
		return "", nil, fmt.Errorf("%w: content-type must be multipart/form-data", domain.ErrInvalidArgument)
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
			return "", nil, fmt.Errorf("%w: body exceeds %d bytes", domain.ErrSizeLimitExceeded, limit)
		}
		return "", nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	f, h, err := r.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("%w: file required", domain.ErrInvalidArgument)
	}
	defer func() { _ = f.Close() }()
	if limit > 0 && h.Size > limit {
		return "", nil, fmt.Errorf("%w: %d bytes exceeds %d", domain.ErrSizeLimitExceeded, h.Size, limit)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("%w: read file: %v", domain.ErrInvalidArgument, err)
	}
	return h.Filename, data, nil
}

// UploadHandler stores one document sent as multipart field "file".
func (s *Server) UploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		name, data, err := readMultipartFile(w, r, s.Cfg.MaxUploadBytes())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		res, err := s.Uploads.Ingest(r.Context(), name, data)
		if err != nil {
			writeError(w, r, err, map[string]string{"filename": name})
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type criteriaResponse struct {
	Version   string                `json:"version"`
	UpdatedAt time.Time             `json:"updatedAt"`
	Count     int                   `json:"count"`
	Items     []domain.CriteriaItem `json:"items"`
}

func toCriteriaResponse(set domain.CriteriaSet) criteriaResponse {
	return criteriaResponse{Version: set.Version, UpdatedAt: set.UpdatedAt, Count: len(set.Items), Items: set.Items}
}

// ImportCriteriaHandler replaces the active criteria set with an uploaded CSV.
func (s *Server) ImportCriteriaHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		_, data, err := readMultipartFile(w, r, s.Cfg.MaxUploadBytes())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		set, err := s.Criteria.Import(r.Context(), bytes.NewReader(data))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toCriteriaResponse(set))
	}
}

// CurrentCriteriaHandler returns the active criteria set.
func (s *Server) CurrentCriteriaHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		set, err := s.Criteria.Current(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toCriteriaResponse(set))
	}
}

type createAssessmentRequest struct {
	TargetType string   `json:"targetType" validate:"required,oneof=LLM SaaS"`
	Name       string   `json:"name" validate:"required,max=200"`
	Version    string   `json:"version" validate:"max=100"`
	Provider   string   `json:"provider" validate:"max=200"`
	Notes      string   `json:"notes" validate:"max=5000"`
	FileIDs    []string `json:"fileIds" validate:"required,min=1,max=20,unique,dive,required,max=64"`
}

// CreateAssessmentHandler evaluates uploaded documents against the active
// criteria set and returns the stored assessment.
func (s *Server) CreateAssessmentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		var req createAssessmentRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		a, err := s.Assessments.Create(r.Context(), domain.AssessmentRequest{
			Target: domain.TargetInfo{
				TargetType: domain.TargetType(req.TargetType),
				Name:       strings.TrimSpace(req.Name),
				Version:    strings.TrimSpace(req.Version),
				Provider:   strings.TrimSpace(req.Provider),
			},
			Notes:   req.Notes,
			FileIDs: req.FileIDs,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.Header().Set("Location", "/v1/assessments/"+a.ID)
		writeJSON(w, http.StatusCreated, a)
	}
}

// GetAssessmentHandler returns a stored assessment.
func (s *Server) GetAssessmentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		if err := ValidateID(id); err != nil {
			writeError(w, r, err, map[string]string{"field": "id"})
			return
		}
		a, err := s.Assessments.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// DeleteAssessmentHandler removes a stored assessment.
func (s *Server) DeleteAssessmentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := ValidateID(id); err != nil {
			writeError(w, r, err, map[string]string{"field": "id"})
			return
		}
		if err := s.Assessments.Delete(r.Context(), id); err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ExportHandler streams a stored assessment as a download in format f.
func (s *Server) ExportHandler(f report.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := ValidateID(id); err != nil {
			writeError(w, r, err, map[string]string{"field": "id"})
			return
		}
		exp, err := s.Assessments.Export(r.Context(), id, f)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.Header().Set("Content-Type", exp.ContentType)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": exp.Filename}))
		w.Header().Set("Content-Length", strconv.Itoa(len(exp.Data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(exp.Data)
	}
}

// ReadyzHandler checks DB, Redis and Tika.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		deps := []struct {
			name string
			fn   func(context.Context) error
		}{{"db", s.DBCheck}, {"redis", s.RedisCheck}, {"tika", s.TikaCheck}}

		checks := make([]check, 0, len(deps))
		ok := true
		for _, p := range deps {
			if p.fn == nil {
				continue
			}
			if err := p.fn(ctx); err != nil {
				ok = false
				checks = append(checks, check{Name: p.name, Details: err.Error()})
				continue
			}
			checks = append(checks, check{Name: p.name, OK: true})
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}

// HealthzHandler reports liveness.
func HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
