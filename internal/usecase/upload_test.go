package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/segmenter"
)

func TestUpload_Ingest_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	data := pdfBytes("doc")
	f.extractor.byData[string(data)] = domain.Extraction{Text: "one\n\n\ntwo\n\n\nthree", PageCount: 2}

	res, err := f.uploads.Ingest(ctx, "doc.pdf", data)
	require.NoError(t, err)
	assert.NotEmpty(t, res.FileID)
	assert.Equal(t, "doc.pdf", res.Filename)
	assert.Equal(t, segmenter.MIMEPDF, res.MIMEType)
	assert.Equal(t, int64(len(data)), res.Size)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, 2, res.PhysicalPages)

	man, err := f.blobs.Manifest(ctx, res.FileID)
	require.NoError(t, err)
	assert.Equal(t, segmenter.MIMEPDF, man.Type)
	assert.Equal(t, 3, man.Pages)
	got, err := f.blobs.Get(ctx, res.FileID)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestUpload_Ingest_Rejects(t *testing.T) {
	f := newFixture(t)
	pdf := pdfBytes("big")
	f.extractor.byData[string(pdf)] = domain.Extraction{Text: "x", PageCount: 11}

	tests := []struct {
		name string
		svc  UploadService
		data []byte
		want error
	}{
		{"empty", f.uploads, nil, domain.ErrInvalidArgument},
		{"too large", NewUploadService(f.blobs, f.seg, 4, 10), pdf, domain.ErrSizeLimitExceeded},
		{"plain text", f.uploads, []byte("just some notes"), domain.ErrUnsupportedFormat},
		{"png", f.uploads, []byte("\x89PNG\r\n\x1a\n0000"), domain.ErrUnsupportedFormat},
		{"too many pages", f.uploads, pdf, domain.ErrPageLimitExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.Ingest(context.Background(), "f", tt.data)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}
	keys, err := f.kv.ListPrefix(context.Background(), "file")
	require.NoError(t, err)
	assert.Empty(t, keys, "rejected uploads must not be stored")
}

func TestUpload_Ingest_ExtractorError(t *testing.T) {
	f := newFixture(t)
	f.extractor.err = errors.New("tika unavailable")
	_, err := f.uploads.Ingest(context.Background(), "doc.pdf", pdfBytes("doc"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tika unavailable")
}

func TestDetectMIME(t *testing.T) {
	seg := segmenter.New(&textExtractor{})
	assert.Equal(t, segmenter.MIMEPDF, DetectMIME(pdfBytes("x"), seg.Supports))
	assert.Equal(t, "", DetectMIME([]byte("hello"), seg.Supports))
	assert.Equal(t, "text/plain", DetectMIME([]byte("hello"), func(m string) bool { return m == "text/plain" }))

	var seen []string
	DetectMIME([]byte("hello"), func(m string) bool { seen = append(seen, m); return false })
	require.NotEmpty(t, seen)
	for _, m := range seen {
		assert.NotContains(t, m, ";")
	}
}
