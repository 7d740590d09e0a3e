package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	obsmetrics "github.com/fairyhunter13/ai-compliance-assessor/internal/adapter/observability"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/observability"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/report"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/scoring"
	"github.com/fairyhunter13/ai-compliance-assessor/internal/service/segmenter"
)

// Orchestrator runs one evaluation. It cannot fail; see Evaluation.
type Orchestrator interface {
	Evaluate(ctx context.Context, criteria []domain.CriteriaItem, pages []domain.DocumentPage, target domain.TargetInfo) Evaluation
}

// AssessmentService runs evaluations end to end and serves stored results.
type AssessmentService struct {
	Criteria     CriteriaStore
	Blobs        BlobStore
	Segmenter    Segmenter
	Evaluator    Orchestrator
	Repo         domain.AssessmentRepository
	NotStated    string
	MaxEvalPages int

	now   func() time.Time
	newID func() string
}

// NewAssessmentService constructs an AssessmentService. notStated is the
// reason recorded for criteria the model did not rate. maxEvalPages > 0
// reduces larger corpora to the most relevant pages.
func NewAssessmentService(c CriteriaStore, b BlobStore, s Segmenter, e Orchestrator, repo domain.AssessmentRepository, notStated string, maxEvalPages int) *AssessmentService {
	return &AssessmentService{
		Criteria: c, Blobs: b, Segmenter: s, Evaluator: e, Repo: repo,
		NotStated: notStated, MaxEvalPages: maxEvalPages,
		now:   time.Now,
		newID: func() string { return ulid.Make().String() },
	}
}

func validateRequest(req domain.AssessmentRequest) error {
	switch req.Target.TargetType {
	case domain.TargetLLM, domain.TargetSaaS:
	default:
		return fmt.Errorf("%w: targetType must be LLM or SaaS", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(req.Target.Name) == "" {
		return fmt.Errorf("%w: name required", domain.ErrInvalidArgument)
	}
	if len(req.FileIDs) == 0 {
		return fmt.Errorf("%w: at least one file required", domain.ErrInvalidArgument)
	}
	seen := make(map[string]struct{}, len(req.FileIDs))
	for _, id := range req.FileIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate file %s", domain.ErrInvalidArgument, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Create evaluates the referenced documents against the active criteria set
// and stores the result. The returned assessment always holds one rating per
// criterion; model failures degrade it to a fallback instead of an error.
func (s *AssessmentService) Create(ctx context.Context, req domain.AssessmentRequest) (domain.Assessment, error) {
	ctx, span := otel.Tracer("usecase.assessment").Start(ctx, "AssessmentService.Create")
	defer span.End()

	if err := validateRequest(req); err != nil {
		return domain.Assessment{}, fmt.Errorf("op=assessment.Create: %w", err)
	}
	set, err := s.Criteria.Current(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Assessment{}, fmt.Errorf("op=assessment.Create: %w: no criteria loaded", domain.ErrInvalidArgument)
	}
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("op=assessment.Create: %w", err)
	}

	pages, files, err := s.loadPages(ctx, req.FileIDs)
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("op=assessment.Create: %w", err)
	}
	corpus := s.reduce(pages, set.Items)
	span.SetAttributes(attribute.Int("pages.total", len(pages)), attribute.Int("pages.sent", len(corpus)))

	ev := s.Evaluator.Evaluate(ctx, set.Items, corpus, req.Target)
	res := scoring.Complete(set.Items, ev.Response.Items, s.NotStated)
	dropped := dropUnknownPages(res.Ratings, len(pages))
	metrics := scoring.ComputeMetrics(res.Ratings)

	obsmetrics.TriStateOverridesTotal.Add(float64(res.Overridden))
	obsmetrics.SynthesizedRatingsTotal.Add(float64(res.Synthesized))

	a := domain.Assessment{
		ID:              s.newID(),
		CreatedAt:       s.now().UTC(),
		Target:          req.Target,
		Notes:           req.Notes,
		Files:           files,
		CriteriaVersion: set.Version,
		Fallback:        ev.Fallback,
		Metrics:         metrics,
		Overall:         ev.Response.Overall,
		Ratings:         res.Ratings,
	}
	if err := s.Repo.Create(ctx, a); err != nil {
		return domain.Assessment{}, fmt.Errorf("op=assessment.Create: %w", err)
	}
	obsmetrics.ObserveEvaluation(a.Fallback, metrics.AchievedRate, metrics.ScoreAvg)

	lg := observability.LoggerFromContext(ctx)
	lg.Info("assessment created",
		slog.String("assessment_id", a.ID),
		slog.String("criteria_version", set.Version),
		slog.Bool("fallback", a.Fallback),
		slog.String("stage", string(ev.Stage)),
		slog.Int("ratings", len(a.Ratings)),
		slog.Int("synthesized", res.Synthesized),
		slog.Int("overridden", res.Overridden),
		slog.Int("dropped_items", res.Dropped),
		slog.Int("dropped_page_refs", dropped),
		slog.Float64("achieved_rate", metrics.AchievedRate))
	return a, nil
}

// loadPages segments every file by its stored type and renumbers the pages
// into one contiguous sequence across files, in request order.
func (s *AssessmentService) loadPages(ctx context.Context, ids []string) ([]domain.DocumentPage, []domain.FileInfo, error) {
	var (
		pages []domain.DocumentPage
		files = make([]domain.FileInfo, 0, len(ids))
	)
	for _, id := range ids {
		man, err := s.Blobs.Manifest(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		data, err := s.Blobs.Get(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		doc, err := s.Segmenter.Segment(ctx, data, man.Type)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range doc.Pages {
			pages = append(pages, domain.DocumentPage{PageNumber: len(pages) + 1, Text: p.Text})
		}
		files = append(files, domain.FileInfo{FileID: id, Filename: man.Filename, Size: man.Size, PageCount: doc.LogicalPages()})
	}
	return pages, files, nil
}

// reduce keeps the most relevant pages when the corpus exceeds MaxEvalPages.
// Page numbers are preserved so citations still point at the full corpus.
func (s *AssessmentService) reduce(pages []domain.DocumentPage, items []domain.CriteriaItem) []domain.DocumentPage {
	if s.MaxEvalPages <= 0 || len(pages) <= s.MaxEvalPages {
		return pages
	}
	top := segmenter.RankPagesByRelevance(pages, segmenter.KeywordsFromCriteria(items), s.MaxEvalPages)
	if len(top) == 0 {
		return pages[:s.MaxEvalPages]
	}
	sort.Slice(top, func(i, j int) bool { return top[i].PageNumber < top[j].PageNumber })
	return top
}

// dropUnknownPages removes evidence citing pages outside 1..total and returns
// how many references were removed.
func dropUnknownPages(ratings []domain.AssessmentItemRating, total int) int {
	var dropped int
	for i := range ratings {
		kept := ratings[i].Evidence.Pages[:0]
		for _, p := range ratings[i].Evidence.Pages {
			if p.Page >= 1 && p.Page <= total {
				kept = append(kept, p)
				continue
			}
			dropped++
		}
		ratings[i].Evidence.Pages = kept
	}
	return dropped
}

// Get returns a stored assessment.
func (s *AssessmentService) Get(ctx context.Context, id string) (domain.Assessment, error) {
	return s.Repo.Get(ctx, id)
}

// Delete removes a stored assessment.
func (s *AssessmentService) Delete(ctx context.Context, id string) error {
	return s.Repo.Delete(ctx, id)
}

// Export is a rendered download.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Export renders a stored assessment in the given format.
func (s *AssessmentService) Export(ctx context.Context, id string, format report.Format) (Export, error) {
	a, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Export{}, err
	}
	b, err := report.Render(a, format)
	if err != nil {
		return Export{}, fmt.Errorf("op=assessment.Export: %w", err)
	}
	return Export{Filename: report.Filename(a, format), ContentType: format.ContentType(), Data: b}, nil
}
