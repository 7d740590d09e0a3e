// Package rediskv implements domain.KVStore on Redis.
package rediskv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/observability"
)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 200

// Store is a Redis-backed key-value store.
type Store struct {
	rdb redis.UniversalClient
}

var _ domain.KVStore = (*Store)(nil)

// New wraps an existing Redis client.
func New(rdb redis.UniversalClient) *Store { return &Store{rdb: rdb} }

// NewClient builds a Redis client from a redis:// URL.
func NewClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("op=rediskv.NewClient: %w", err)
	}
	return redis.NewClient(opt), nil
}

// Get returns the value stored at key or domain.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		out   []byte
		found bool
	)
	err := observability.ObserveCall(ctx, observability.DependencyRedis, "get", func(ctx context.Context) error {
		b, err := s.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		out, found = b, true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("op=rediskv.Get key=%s: %w", key, err)
	}
	if !found {
		return nil, fmt.Errorf("op=rediskv.Get key=%s: %w", key, domain.ErrKeyNotFound)
	}
	return out, nil
}

// Set stores value at key. A zero ttl stores without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := observability.ObserveCall(ctx, observability.DependencyRedis, "set", func(ctx context.Context) error {
		return s.rdb.Set(ctx, key, value, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("op=rediskv.Set key=%s: %w", key, err)
	}
	return nil
}

// Delete removes the given keys; absent keys are ignored.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	err := observability.ObserveCall(ctx, observability.DependencyRedis, "del", func(ctx context.Context) error {
		return s.rdb.Del(ctx, keys...).Err()
	})
	if err != nil {
		return fmt.Errorf("op=rediskv.Delete: %w", err)
	}
	return nil
}

// ListPrefix returns every key starting with prefix, using SCAN so large
// keyspaces are not blocked.
func (s *Store) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := observability.ObserveCall(ctx, observability.DependencyRedis, "scan", func(ctx context.Context) error {
		iter := s.rdb.Scan(ctx, 0, escapeGlob(prefix)+"*", scanBatch).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		return iter.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("op=rediskv.ListPrefix prefix=%s: %w", prefix, err)
	}
	return keys, nil
}

// Ping reports whether Redis is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string { return globEscaper.Replace(s) }
