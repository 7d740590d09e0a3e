package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/kv/rediskv"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/blobstore"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/criteria"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/prompt"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/segmenter"
)

// pdfBytes is recognized as application/pdf by content sniffing.
func pdfBytes(tag string) []byte { return []byte("%PDF-1.4\n" + tag + "\n%%EOF") }

type textExtractor struct {
	byData map[string]domain.Extraction
	err    error
}

func (e *textExtractor) Extract(_ context.Context, data []byte, _ string) (domain.Extraction, error) {
	if e.err != nil {
		return domain.Extraction{}, e.err
	}
	return e.byData[string(data)], nil
}

type scriptedModel struct {
	mu      sync.Mutex
	out     string
	err     error
	calls   int
	content string
}

func (m *scriptedModel) Invoke(_ context.Context, _, content string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.content = content
	return m.out, m.err
}

type memRepo struct {
	mu   sync.Mutex
	rows map[string]domain.Assessment
	err  error
}

func newMemRepo() *memRepo { return &memRepo{rows: map[string]domain.Assessment{}} }

func (r *memRepo) Create(_ context.Context, a domain.Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.rows[a.ID] = a
	return nil
}

func (r *memRepo) Get(_ context.Context, id string) (domain.Assessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return domain.Assessment{}, domain.ErrNotFound
	}
	return a, nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

type fixture struct {
	kv        *rediskv.Store
	blobs     *blobstore.Store
	criteria  *criteria.Store
	extractor *textExtractor
	seg       *segmenter.Segmenter
	model     *scriptedModel
	repo      *memRepo
	tpl       prompt.Template
	uploads   UploadService
	svc       *AssessmentService
}

var threeCriteria = []domain.CriteriaItem{
	{ItemID: "a", ItemName: "Terms published", Category: "Transparency", Definition: "Terms of use are public"},
	{ItemID: "b", ItemName: "Data retention", Category: "Privacy", Definition: "Retention periods are documented"},
	{ItemID: "c", ItemName: "Encryption", Category: "Security", Definition: "Data is encrypted at rest"},
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		kv:        rediskv.New(rdb),
		extractor: &textExtractor{byData: map[string]domain.Extraction{}},
		model:     &scriptedModel{},
		repo:      newMemRepo(),
	}
	f.blobs = blobstore.New(f.kv, blobstore.Options{ChunkSize: 16})
	f.criteria = criteria.NewStore(f.kv)
	f.seg = segmenter.New(f.extractor)
	tpl, err := prompt.Load("ja")
	require.NoError(t, err)
	f.tpl = tpl
	f.uploads = NewUploadService(f.blobs, f.seg, 1<<20, 10)
	f.svc = NewAssessmentService(f.criteria, f.blobs, f.seg, NewEvaluator(f.model, tpl, nil, "test"), f.repo, tpl.NotStatedReason, 0)
	return f
}

// upload stores a PDF whose extracted text is text.
func (f *fixture) upload(t *testing.T, tag, text string, physical int) string {
	t.Helper()
	data := pdfBytes(tag)
	f.extractor.byData[string(data)] = domain.Extraction{Text: text, PageCount: physical}
	res, err := f.uploads.Ingest(context.Background(), tag+".pdf", data)
	require.NoError(t, err)
	return res.FileID
}
