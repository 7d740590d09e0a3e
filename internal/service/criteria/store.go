package criteria

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/observability"
)

// CurrentKey holds the active criteria set. Readers see either the previous
// or the new set in full because the set is one value under one key.
const CurrentKey = "criteria:current"

// Store reads and replaces the active criteria set.
type Store struct {
	kv  domain.KVStore
	now func() time.Time
}

// NewStore builds a Store on the given backend.
func NewStore(kv domain.KVStore) *Store {
	return &Store{kv: kv, now: time.Now}
}

// Replace swaps the active set for items with a new version.
func (s *Store) Replace(ctx context.Context, items []domain.CriteriaItem) (domain.CriteriaSet, error) {
	if len(items) == 0 {
		return domain.CriteriaSet{}, fmt.Errorf("op=criteria.Replace: %w: empty criteria set", domain.ErrInvalidArgument)
	}
	v, err := uuid.NewV7()
	if err != nil {
		return domain.CriteriaSet{}, fmt.Errorf("op=criteria.Replace: %w", err)
	}
	set := domain.CriteriaSet{Version: v.String(), UpdatedAt: s.now().UTC(), Items: items}
	b, err := json.Marshal(set)
	if err != nil {
		return domain.CriteriaSet{}, fmt.Errorf("op=criteria.Replace: %w", err)
	}
	if err := s.kv.Set(ctx, CurrentKey, b, 0); err != nil {
		return domain.CriteriaSet{}, fmt.Errorf("op=criteria.Replace: %w", err)
	}
	observability.LoggerFromContext(ctx).Info("criteria replaced",
		slog.String("version", set.Version),
		slog.Int("items", len(items)))
	return set, nil
}

// Current returns the active set or domain.ErrNotFound when none was loaded.
func (s *Store) Current(ctx context.Context) (domain.CriteriaSet, error) {
	b, err := s.kv.Get(ctx, CurrentKey)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return domain.CriteriaSet{}, fmt.Errorf("op=criteria.Current: criteria %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.CriteriaSet{}, fmt.Errorf("op=criteria.Current: %w", err)
	}
	var set domain.CriteriaSet
	if err := json.Unmarshal(b, &set); err != nil {
		return domain.CriteriaSet{}, fmt.Errorf("op=criteria.Current: %w: %v", domain.ErrInternal, err)
	}
	return set, nil
}
