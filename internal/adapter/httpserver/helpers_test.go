package httpserver_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	httpserver "github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/config"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/report"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/usecase"
)

type fakeUploader struct {
	got  []byte
	name string
	res  usecase.UploadResult
	err  error
}

func (f *fakeUploader) Ingest(_ context.Context, filename string, data []byte) (usecase.UploadResult, error) {
	f.name, f.got = filename, data
	return f.res, f.err
}

type fakeCriteria struct {
	csv []byte
	set domain.CriteriaSet
	err error
}

func (f *fakeCriteria) Import(_ context.Context, r io.Reader) (domain.CriteriaSet, error) {
	f.csv, _ = io.ReadAll(r)
	return f.set, f.err
}

func (f *fakeCriteria) Current(context.Context) (domain.CriteriaSet, error) { return f.set, f.err }

type fakeAssessments struct {
	req    domain.AssessmentRequest
	a      domain.Assessment
	export usecase.Export
	format report.Format
	err    error
}

func (f *fakeAssessments) Create(_ context.Context, req domain.AssessmentRequest) (domain.Assessment, error) {
	f.req = req
	return f.a, f.err
}

func (f *fakeAssessments) Get(_ context.Context, id string) (domain.Assessment, error) {
	if f.err != nil {
		return domain.Assessment{}, f.err
	}
	a := f.a
	a.ID = id
	return a, nil
}

func (f *fakeAssessments) Delete(context.Context, string) error { return f.err }

func (f *fakeAssessments) Export(_ context.Context, _ string, format report.Format) (usecase.Export, error) {
	f.format = format
	return f.export, f.err
}

type deps struct {
	uploads     *fakeUploader
	criteria    *fakeCriteria
	assessments *fakeAssessments
}

func newTestServer() (*httpserver.Server, *deps) {
	d := &deps{uploads: &fakeUploader{}, criteria: &fakeCriteria{}, assessments: &fakeAssessments{}}
	cfg := config.Config{Port: 8080, MaxUploadMB: 1}
	return httpserver.NewServer(cfg, d.uploads, d.criteria, d.assessments, nil, nil, nil), d
}

func routes(s *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/upload", s.UploadHandler())
	r.Post("/v1/criteria", s.ImportCriteriaHandler())
	r.Get("/v1/criteria", s.CurrentCriteriaHandler())
	r.Post("/v1/assessments", s.CreateAssessmentHandler())
	r.Get("/v1/assessments/{id}", s.GetAssessmentHandler())
	r.Delete("/v1/assessments/{id}", s.DeleteAssessmentHandler())
	r.Get("/v1/assessments/{id}/export.csv", s.ExportHandler(report.FormatCSV))
	r.Get("/v1/assessments/{id}/export.xlsx", s.ExportHandler(report.FormatXLSX))
	return r
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	fw, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func do(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}
