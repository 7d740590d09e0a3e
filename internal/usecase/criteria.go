package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/criteria"
)

// CriteriaStore holds the active criteria set.
type CriteriaStore interface {
	Replace(ctx context.Context, items []domain.CriteriaItem) (domain.CriteriaSet, error)
	Current(ctx context.Context) (domain.CriteriaSet, error)
}

// CriteriaService imports and serves the active criteria set.
type CriteriaService struct {
	Store CriteriaStore
}

// NewCriteriaService constructs a CriteriaService.
func NewCriteriaService(store CriteriaStore) CriteriaService { return CriteriaService{Store: store} }

// Import parses a criteria CSV and replaces the active set with it. A
// rejected file leaves the previous set in place.
func (s CriteriaService) Import(ctx context.Context, r io.Reader) (domain.CriteriaSet, error) {
	items, err := criteria.ParseCSV(r)
	if err != nil {
		return domain.CriteriaSet{}, fmt.Errorf("op=criteria.Import: %w", err)
	}
	set, err := s.Store.Replace(ctx, items)
	if err != nil {
		return domain.CriteriaSet{}, fmt.Errorf("op=criteria.Import: %w", err)
	}
	return set, nil
}

// Current returns the active set.
func (s CriteriaService) Current(ctx context.Context) (domain.CriteriaSet, error) {
	return s.Store.Current(ctx)
}
