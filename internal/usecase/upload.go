package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"mime"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/observability"
)

// BlobStore is the chunked document store used by the services.
type BlobStore interface {
	Put(ctx context.Context, id string, data []byte, meta domain.FileMetadata) (domain.FileManifest, error)
	Get(ctx context.Context, id string) ([]byte, error)
	Manifest(ctx context.Context, id string) (domain.FileManifest, error)
	Delete(ctx context.Context, id string) error
}

// Segmenter turns document bytes into logical pages.
type Segmenter interface {
	Segment(ctx context.Context, data []byte, mimeType string) (domain.SegmentedDocument, error)
	Supports(mimeType string) bool
}

// UploadResult describes a stored document.
type UploadResult struct {
	FileID        string `json:"fileId"`
	Filename      string `json:"filename"`
	Size          int64  `json:"size"`
	MIMEType      string `json:"mimeType"`
	Pages         int    `json:"pages"`
	PhysicalPages int    `json:"physicalPages,omitempty"`
}

// UploadService validates documents at the boundary and stores them.
type UploadService struct {
	Blobs     BlobStore
	Segmenter Segmenter
	MaxBytes  int64
	MaxPages  int
	newID     func() string
}

// NewUploadService constructs an UploadService.
func NewUploadService(blobs BlobStore, seg Segmenter, maxBytes int64, maxPages int) UploadService {
	return UploadService{Blobs: blobs, Segmenter: seg, MaxBytes: maxBytes, MaxPages: maxPages, newID: func() string { return ulid.Make().String() }}
}

// DetectMIME sniffs data and returns the first type in the detected type's
// ancestry accepted by accept, or "" when none is. Types are passed to accept
// and returned without parameters.
func DetectMIME(data []byte, accept func(string) bool) string {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		mt := m.String()
		if base, _, err := mime.ParseMediaType(mt); err == nil {
			mt = base
		}
		if accept(mt) {
			return mt
		}
	}
	return ""
}

// Ingest enforces the size limit, the format allowlist and the page limit,
// then stores the document under a new id.
func (s UploadService) Ingest(ctx context.Context, filename string, data []byte) (UploadResult, error) {
	if len(data) == 0 {
		return UploadResult{}, fmt.Errorf("op=upload.Ingest: %w: empty file", domain.ErrInvalidArgument)
	}
	if s.MaxBytes > 0 && int64(len(data)) > s.MaxBytes {
		return UploadResult{}, fmt.Errorf("op=upload.Ingest: %w: %d bytes exceeds %d", domain.ErrSizeLimitExceeded, len(data), s.MaxBytes)
	}
	mt := DetectMIME(data, s.Segmenter.Supports)
	if mt == "" {
		return UploadResult{}, fmt.Errorf("op=upload.Ingest: %w: %s", domain.ErrUnsupportedFormat, mimetype.Detect(data).String())
	}
	doc, err := s.Segmenter.Segment(ctx, data, mt)
	if err != nil {
		return UploadResult{}, fmt.Errorf("op=upload.Ingest: %w", err)
	}
	if s.MaxPages > 0 && doc.ReportedPages() > s.MaxPages {
		return UploadResult{}, fmt.Errorf("op=upload.Ingest: %w: %d pages exceeds %d", domain.ErrPageLimitExceeded, doc.ReportedPages(), s.MaxPages)
	}

	id := s.newID()
	man, err := s.Blobs.Put(ctx, id, data, domain.FileMetadata{
		Filename:      filename,
		Type:          mt,
		Pages:         doc.LogicalPages(),
		PhysicalPages: doc.PhysicalPages,
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("op=upload.Ingest: %w", err)
	}
	observability.LoggerFromContext(ctx).Info("document uploaded",
		slog.String("file_id", id),
		slog.String("mime", mt),
		slog.Int64("size", man.Size),
		slog.Int("pages", doc.LogicalPages()),
		slog.Int("physical_pages", doc.PhysicalPages))
	return UploadResult{
		FileID:        id,
		Filename:      filename,
		Size:          man.Size,
		MIMEType:      mt,
		Pages:         doc.LogicalPages(),
		PhysicalPages: doc.PhysicalPages,
	}, nil
}
