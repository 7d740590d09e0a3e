package blobstore_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/kv/rediskv"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/blobstore"
)

// memKV is an in-memory domain.KVStore with failure injection.
type memKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	failSet func(key string) error
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if m.failSet != nil {
		if err := m.failSet(key); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memKV) ListPrefix(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func newRedisStore(t *testing.T, chunk int) (*blobstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return blobstore.New(rediskv.New(rdb), blobstore.Options{ChunkSize: chunk, TTL: time.Hour}), mr
}

func TestStore_RoundTrip_ChunkBoundaries(t *testing.T) {
	const chunk = 16
	tests := []struct {
		name   string
		size   int
		chunks int
	}{
		{"empty", 0, 0},
		{"smaller than chunk", 5, 1},
		{"exactly one chunk", chunk, 1},
		{"one byte over", chunk + 1, 2},
		{"many multiples", chunk * 7, 7},
		{"many multiples plus remainder", chunk*9 + 3, 10},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newRedisStore(t, chunk)
			ctx := context.Background()
			data := bytes.Repeat([]byte{0x00, 0xff, 'a', '\n'}, tt.size/4+1)[:tt.size]

			m, err := store.Put(ctx, "doc", data, domain.FileMetadata{Filename: "a.pdf", Type: "application/pdf", Pages: 2})
			require.NoError(t, err)
			assert.Equal(t, tt.chunks, m.ChunkCount)
			assert.Equal(t, int64(tt.size), m.Size)
			assert.Equal(t, chunk, m.ChunkSize)
			assert.Equal(t, "a.pdf", m.Filename)

			got, err := store.Get(ctx, "doc")
			require.NoError(t, err)
			assert.True(t, bytes.Equal(data, got), "content must be byte-identical")
		})
	}
}

func TestStore_KeysAndTTL(t *testing.T) {
	store, mr := newRedisStore(t, 4)
	ctx := context.Background()
	_, err := store.Put(ctx, "x1", []byte("abcdefghij"), domain.FileMetadata{})
	require.NoError(t, err)

	assert.True(t, mr.Exists("file:x1"))
	assert.True(t, mr.Exists("filechunk:x1:0"))
	assert.True(t, mr.Exists("filechunk:x1:2"))
	assert.False(t, mr.Exists("filechunk:x1:3"))
	assert.Equal(t, time.Hour, mr.TTL("file:x1"))
	assert.Equal(t, time.Hour, mr.TTL("filechunk:x1:1"))

	mr.FastForward(2 * time.Hour)
	_, err = store.Get(ctx, "x1")
	assert.ErrorIs(t, err, domain.ErrBlobNotFound)
}

func TestStore_Get_MissingManifest(t *testing.T) {
	store := blobstore.New(newMemKV(), blobstore.Options{ChunkSize: 4})
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrBlobNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Get_MissingChunkFailsWholeRead(t *testing.T) {
	kv := newMemKV()
	store := blobstore.New(kv, blobstore.Options{ChunkSize: 4})
	ctx := context.Background()
	_, err := store.Put(ctx, "d", []byte("0123456789"), domain.FileMetadata{})
	require.NoError(t, err)

	require.NoError(t, kv.Delete(ctx, blobstore.ChunkKey("d", 1)))
	got, err := store.Get(ctx, "d")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrBlobNotFound)
}

func TestStore_Get_ChecksumMismatch(t *testing.T) {
	kv := newMemKV()
	store := blobstore.New(kv, blobstore.Options{ChunkSize: 4})
	ctx := context.Background()
	_, err := store.Put(ctx, "d", []byte("01234567"), domain.FileMetadata{})
	require.NoError(t, err)

	require.NoError(t, kv.Set(ctx, blobstore.ChunkKey("d", 0), []byte("XXXX"), 0))
	_, err = store.Get(ctx, "d")
	assert.ErrorIs(t, err, domain.ErrBlobCorrupt)
}

func TestStore_Put_FailureLeavesNoManifest(t *testing.T) {
	kv := newMemKV()
	kv.failSet = func(key string) error {
		if key == blobstore.ChunkKey("d", 2) {
			return errors.New("payload too large")
		}
		return nil
	}
	store := blobstore.New(kv, blobstore.Options{ChunkSize: 4})
	ctx := context.Background()

	_, err := store.Put(ctx, "d", []byte("0123456789ab"), domain.FileMetadata{})
	require.Error(t, err)
	_, err = store.Manifest(ctx, "d")
	assert.ErrorIs(t, err, domain.ErrBlobNotFound)

	// orphans stay until Delete or TTL
	orphans, _ := kv.ListPrefix(ctx, "filechunk:d:")
	assert.Len(t, orphans, 2)
	require.NoError(t, store.Delete(ctx, "d"))
	orphans, _ = kv.ListPrefix(ctx, "filechunk:d:")
	assert.Empty(t, orphans)
}

func TestStore_Delete(t *testing.T) {
	kv := newMemKV()
	store := blobstore.New(kv, blobstore.Options{ChunkSize: 2})
	ctx := context.Background()
	_, err := store.Put(ctx, "d", []byte("abcdef"), domain.FileMetadata{})
	require.NoError(t, err)
	_, err = store.Put(ctx, "d2", []byte("zz"), domain.FileMetadata{})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "d"))
	_, err = store.Get(ctx, "d")
	assert.ErrorIs(t, err, domain.ErrBlobNotFound)
	got, err := store.Get(ctx, "d2")
	require.NoError(t, err)
	assert.Equal(t, []byte("zz"), got)

	require.NoError(t, store.Delete(ctx, "unknown"))
}

func TestStore_Put_EmptyID(t *testing.T) {
	store := blobstore.New(newMemKV(), blobstore.Options{})
	_, err := store.Put(context.Background(), "", []byte("a"), domain.FileMetadata{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestChunkCount(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, blobstore.ChunkCount(0, 900000))
	assert.Equal(t, 1, blobstore.ChunkCount(1, 900000))
	assert.Equal(t, 1, blobstore.ChunkCount(900000, 900000))
	assert.Equal(t, 2, blobstore.ChunkCount(900001, 900000))
}
