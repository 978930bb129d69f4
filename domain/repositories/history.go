package repositories

import (
	"context"
	"time"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
)

// MoodHistoryRepository defines data access methods for committed readings
type MoodHistoryRepository interface {
	Append(ctx context.Context, entry *entities.MoodEntry) error
	// ListBySession returns the newest entries first, at most limit (0 means no limit)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*entities.MoodEntry, error)
	SummaryBySession(ctx context.Context, sessionID string) (entities.MoodSummary, error)
	// DeleteBefore removes entries recorded before cutoff and returns how many were removed
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
