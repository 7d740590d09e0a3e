package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-compliance-assessor/internal/domain"
)

const assessmentsTable = "assessments"

var (
	psql              = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	assessmentColumns = []string{
		"id", "created_at", "target_type", "name", "version", "provider", "notes",
		"criteria_version", "fallback", "files", "metrics", "overall", "ratings",
	}
)

// AssessmentRepo persists assessments. Structured parts are stored as jsonb.
type AssessmentRepo struct{ Pool PgxPool }

// NewAssessmentRepo constructs an AssessmentRepo with the given pool.
func NewAssessmentRepo(p PgxPool) *AssessmentRepo { return &AssessmentRepo{Pool: p} }

// Create inserts a new assessment.
func (r *AssessmentRepo) Create(ctx domain.Context, a domain.Assessment) error {
	ctx, span := otel.Tracer("repo.assessments").Start(ctx, "assessments.Create")
	defer span.End()
	span.SetAttributes(attribute.String("assessment.id", a.ID))

	files, err := json.Marshal(a.Files)
	if err != nil {
		return fmt.Errorf("op=assessment.create: %w", err)
	}
	metrics, err := json.Marshal(a.Metrics)
	if err != nil {
		return fmt.Errorf("op=assessment.create: %w", err)
	}
	overall, err := json.Marshal(a.Overall)
	if err != nil {
		return fmt.Errorf("op=assessment.create: %w", err)
	}
	ratings, err := json.Marshal(a.Ratings)
	if err != nil {
		return fmt.Errorf("op=assessment.create: %w", err)
	}
	q, args, err := psql.Insert(assessmentsTable).Columns(assessmentColumns...).Values(
		a.ID, a.CreatedAt.UTC(), string(a.Target.TargetType), a.Target.Name, a.Target.Version, a.Target.Provider, a.Notes,
		a.CriteriaVersion, a.Fallback, files, metrics, overall, ratings,
	).ToSql()
	if err != nil {
		return fmt.Errorf("op=assessment.create: %w", err)
	}
	if _, err := r.Pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("op=assessment.create: %w", err)
	}
	return nil
}

// Get loads an assessment by id.
func (r *AssessmentRepo) Get(ctx domain.Context, id string) (domain.Assessment, error) {
	ctx, span := otel.Tracer("repo.assessments").Start(ctx, "assessments.Get")
	defer span.End()
	span.SetAttributes(attribute.String("assessment.id", id))

	q, args, err := psql.Select(assessmentColumns...).From(assessmentsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("op=assessment.get: %w", err)
	}
	var (
		a                                domain.Assessment
		targetType                       string
		files, metrics, overall, ratings []byte
	)
	err = r.Pool.QueryRow(ctx, q, args...).Scan(
		&a.ID, &a.CreatedAt, &targetType, &a.Target.Name, &a.Target.Version, &a.Target.Provider, &a.Notes,
		&a.CriteriaVersion, &a.Fallback, &files, &metrics, &overall, &ratings,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assessment{}, fmt.Errorf("op=assessment.get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("op=assessment.get: %w", err)
	}
	a.Target.TargetType = domain.TargetType(targetType)
	a.CreatedAt = a.CreatedAt.UTC()
	for _, part := range []struct {
		raw []byte
		dst any
	}{{files, &a.Files}, {metrics, &a.Metrics}, {overall, &a.Overall}, {ratings, &a.Ratings}} {
		if err := json.Unmarshal(part.raw, part.dst); err != nil {
			return domain.Assessment{}, fmt.Errorf("op=assessment.get: %w: %v", domain.ErrInternal, err)
		}
	}
	return a, nil
}

// Delete removes an assessment. A missing id is ErrNotFound.
func (r *AssessmentRepo) Delete(ctx domain.Context, id string) error {
	ctx, span := otel.Tracer("repo.assessments").Start(ctx, "assessments.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("assessment.id", id))

	q, args, err := psql.Delete(assessmentsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("op=assessment.delete: %w", err)
	}
	tag, err := r.Pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("op=assessment.delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=assessment.delete: %w", domain.ErrNotFound)
	}
	return nil
}

// DeleteOlderThan removes assessments created before cutoff and returns how
// many were removed.
func (r *AssessmentRepo) DeleteOlderThan(ctx domain.Context, cutoff time.Time) (int64, error) {
	ctx, span := otel.Tracer("repo.assessments").Start(ctx, "assessments.DeleteOlderThan")
	defer span.End()

	q, args, err := psql.Delete(assessmentsTable).Where(sq.Lt{"created_at": cutoff.UTC()}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("op=assessment.delete_older: %w", err)
	}
	tag, err := r.Pool.Exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("op=assessment.delete_older: %w", err)
	}
	span.SetAttributes(attribute.Int64("rows", tag.RowsAffected()))
	return tag.RowsAffected(), nil
}
