package db

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultCleanupInterval = 1 * time.Hour
)

// CleanupService purges expired password reset rows. SQLite has no native
// TTL, so lookups filter on expires_at and this worker reclaims the rows.
type CleanupService struct {
	resetTokens *ResetTokenRepository
	interval    time.Duration
}

func NewCleanupService(resetTokens *ResetTokenRepository) *CleanupService {
	return &CleanupService{
		resetTokens: resetTokens,
		interval:    DefaultCleanupInterval,
	}
}

func (s *CleanupService) Start(ctx context.Context) {
	slog.Info("starting reset token cleanup service", "component", "cleanup", "interval", s.interval)

	s.runCleanup(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping reset token cleanup service", "component", "cleanup")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *CleanupService) runCleanup(ctx context.Context) {
	deleted, err := s.resetTokens.DeleteExpired(ctx)
	if err != nil {
		slog.Error("error deleting expired reset tokens", "component", "cleanup", "error", err)
	} else if deleted > 0 {
		slog.Info("deleted expired reset tokens", "component", "cleanup", "count", deleted)
	}
}
