package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetentionDeleter removes rows created before a cutoff.
type RetentionDeleter interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupService handles data retention and cleanup
type CleanupService struct {
	Repo          RetentionDeleter
	RetentionDays int
	now           func() time.Time
}

// NewCleanupService creates a new cleanup service
func NewCleanupService(repo RetentionDeleter, retentionDays int) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = 90 // default 90 days
	}
	return &CleanupService{Repo: repo, RetentionDays: retentionDays, now: time.Now}
}

// CleanupOldData removes assessments older than the retention period.
func (s *CleanupService) CleanupOldData(ctx context.Context) error {
	cutoff := s.now().AddDate(0, 0, -s.RetentionDays)
	n, err := s.Repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("op=cleanup.CleanupOldData: %w", err)
	}
	slog.Info("data cleanup completed",
		slog.Int64("deleted_assessments", n),
		slog.Time("cutoff", cutoff),
	)
	return nil
}

// RunPeriodic runs a cleanup immediately and then on every tick until ctx
// is done.
func (s *CleanupService) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour // daily by default
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.CleanupOldData(ctx); err != nil {
		slog.Error("initial cleanup failed", slog.Any("error", err))
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup service stopping")
			return
		case <-ticker.C:
			if err := s.CleanupOldData(ctx); err != nil {
				slog.Error("periodic cleanup failed", slog.Any("error", err))
			}
		}
	}
}
