// Package history runs background maintenance of the mood history.
package history

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mirror-of-truth/domain/repositories"
)

// CleanupService prunes mood entries older than the retention window
type CleanupService struct {
	repo      repositories.MoodHistoryRepository
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewCleanupService creates a cleanup service running every interval
func NewCleanupService(repo repositories.MoodHistoryRepository, retention, interval time.Duration, logger *zap.Logger) *CleanupService {
	return &CleanupService{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *CleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Mood history cleanup started",
		zap.Duration("retention", s.retention),
		zap.Duration("interval", s.interval))
}

// Stop stops the loop and waits for a running cleanup to finish
func (s *CleanupService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		<-s.done
		s.logger.Info("Mood history cleanup stopped")
	})
}

func (s *CleanupService) cleanupLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(context.Background())
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunOnce(context.Background())
		}
	}
}

// RunOnce deletes everything recorded before now minus retention
func (s *CleanupService) RunOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	cutoff := s.now().Add(-s.retention)
	removed, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to prune mood history", zap.Error(err))
		return 0
	}
	if removed > 0 {
		s.logger.Info("Pruned mood history",
			zap.Int64("removed", removed),
			zap.Time("cutoff", cutoff))
	}
	return removed
}
