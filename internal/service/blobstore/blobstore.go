// Package blobstore persists large documents in a key-value backend whose
// values are size-limited, by splitting them into fixed-size chunks and
// writing a manifest that drives reassembly.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	obsmetrics "github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/observability"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/observability"
)

// Defaults used when Options leave a field zero.
const (
	DefaultChunkSize = 900000
	DefaultTTL       = 30 * 24 * time.Hour
)

const (
	manifestNamespace = "file"
	chunkNamespace    = "filechunk"
)

// Options tune chunking and retention.
type Options struct {
	ChunkSize int
	TTL       time.Duration
	Now       func() time.Time
}

// Store is the chunked blob store.
type Store struct {
	kv        domain.KVStore
	chunkSize int
	ttl       time.Duration
	now       func() time.Time
}

// New builds a Store on the given backend.
func New(kv domain.KVStore, opts Options) *Store {
	s := &Store{kv: kv, chunkSize: opts.ChunkSize, ttl: opts.TTL, now: opts.Now}
	if s.chunkSize <= 0 {
		s.chunkSize = DefaultChunkSize
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// ManifestKey is the key of the manifest for id.
func ManifestKey(id string) string { return manifestNamespace + ":" + id }

// ChunkKey is the key of chunk index of id.
func ChunkKey(id string, index int) string {
	return chunkNamespace + ":" + id + ":" + strconv.Itoa(index)
}

func chunkPrefix(id string) string { return chunkNamespace + ":" + id + ":" }

// ChunkCount returns how many chunks a buffer of size bytes needs.
func ChunkCount(size, chunkSize int) int {
	if size <= 0 {
		return 0
	}
	return (size + chunkSize - 1) / chunkSize
}

// Put writes data as chunks and then the manifest. The manifest is written
// only after every chunk write succeeded; chunks left behind by a failed
// write are not removed and expire with the TTL.
func (s *Store) Put(ctx context.Context, id string, data []byte, meta domain.FileMetadata) (domain.FileManifest, error) {
	ctx, span := otel.Tracer("blobstore").Start(ctx, "blobstore.Put")
	defer span.End()
	if id == "" {
		return domain.FileManifest{}, fmt.Errorf("op=blobstore.Put: %w: empty id", domain.ErrInvalidArgument)
	}

	count := ChunkCount(len(data), s.chunkSize)
	span.SetAttributes(attribute.String("blob.id", id), attribute.Int("blob.size", len(data)), attribute.Int("blob.chunks", count))
	for i := 0; i < count; i++ {
		start := i * s.chunkSize
		end := min(start+s.chunkSize, len(data))
		if err := s.kv.Set(ctx, ChunkKey(id, i), data[start:end], s.ttl); err != nil {
			return domain.FileManifest{}, fmt.Errorf("op=blobstore.Put chunk=%d: %w", i, err)
		}
		obsmetrics.BlobChunksWrittenTotal.Inc()
	}

	sum := sha256.Sum256(data)
	m := domain.FileManifest{
		FileID:        id,
		Filename:      meta.Filename,
		Size:          int64(len(data)),
		Type:          meta.Type,
		ChunkSize:     s.chunkSize,
		ChunkCount:    count,
		SHA256:        hex.EncodeToString(sum[:]),
		Pages:         meta.Pages,
		PhysicalPages: meta.PhysicalPages,
		CreatedAt:     s.now().UTC(),
	}
	b, err := json.Marshal(m)
	if err != nil {
		return domain.FileManifest{}, fmt.Errorf("op=blobstore.Put: %w", err)
	}
	if err := s.kv.Set(ctx, ManifestKey(id), b, s.ttl); err != nil {
		return domain.FileManifest{}, fmt.Errorf("op=blobstore.Put manifest: %w", err)
	}
	observability.LoggerFromContext(ctx).Info("blob stored",
		slog.String("file_id", id),
		slog.Int64("size", m.Size),
		slog.Int("chunks", count))
	return m, nil
}

// Manifest loads the manifest of id, or domain.ErrBlobNotFound.
func (s *Store) Manifest(ctx context.Context, id string) (domain.FileManifest, error) {
	b, err := s.kv.Get(ctx, ManifestKey(id))
	if errors.Is(err, domain.ErrKeyNotFound) {
		return domain.FileManifest{}, fmt.Errorf("op=blobstore.Manifest id=%s: %w", id, domain.ErrBlobNotFound)
	}
	if err != nil {
		return domain.FileManifest{}, fmt.Errorf("op=blobstore.Manifest id=%s: %w", id, err)
	}
	var m domain.FileManifest
	if err := json.Unmarshal(b, &m); err != nil {
		return domain.FileManifest{}, fmt.Errorf("op=blobstore.Manifest id=%s: %w: %v", id, domain.ErrBlobCorrupt, err)
	}
	return m, nil
}

// Get reassembles the bytes of id. A missing manifest or any missing chunk
// fails the whole read with domain.ErrBlobNotFound; no partial result is
// ever returned.
func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	ctx, span := otel.Tracer("blobstore").Start(ctx, "blobstore.Get")
	defer span.End()
	span.SetAttributes(attribute.String("blob.id", id))

	m, err := s.Manifest(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, m.Size)
	for i := 0; i < m.ChunkCount; i++ {
		chunk, err := s.kv.Get(ctx, ChunkKey(id, i))
		if errors.Is(err, domain.ErrKeyNotFound) {
			return nil, fmt.Errorf("op=blobstore.Get id=%s chunk=%d: %w", id, i, domain.ErrBlobNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("op=blobstore.Get id=%s chunk=%d: %w", id, i, err)
		}
		out = append(out, chunk...)
	}
	if int64(len(out)) != m.Size {
		return nil, fmt.Errorf("op=blobstore.Get id=%s: %w: size %d, manifest %d", id, domain.ErrBlobCorrupt, len(out), m.Size)
	}
	if m.SHA256 != "" {
		sum := sha256.Sum256(out)
		if hex.EncodeToString(sum[:]) != m.SHA256 {
			return nil, fmt.Errorf("op=blobstore.Get id=%s: %w: checksum mismatch", id, domain.ErrBlobCorrupt)
		}
	}
	return out, nil
}

// Delete removes the manifest and every chunk stored under id, including
// orphans of an earlier failed write. Deleting an unknown id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	keys, err := s.kv.ListPrefix(ctx, chunkPrefix(id))
	if err != nil {
		return fmt.Errorf("op=blobstore.Delete id=%s: %w", id, err)
	}
	keys = append(keys, ManifestKey(id))
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("op=blobstore.Delete id=%s: %w", id, err)
	}
	return nil
}
