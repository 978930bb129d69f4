package history

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mirror-of-truth/adapters"
	"github.com/satriahrh/mirror-of-truth/domain/entities"
)

func TestCleanupRunOnce(t *testing.T) {
	ctx := context.Background()
	repo := adapters.NewMemoryMoodHistory()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	for _, age := range []time.Duration{48 * time.Hour, 25 * time.Hour, time.Hour} {
		err := repo.Append(ctx, &entities.MoodEntry{
			SessionID:  "s1",
			Emotion:    entities.EmotionNeutral,
			Confidence: 0.7,
			Mode:       entities.ModeDemo,
			RecordedAt: now.Add(-age),
		})
		if err != nil {
			t.Fatalf("Failed to append: %v", err)
		}
	}

	svc := NewCleanupService(repo, 24*time.Hour, time.Hour, zap.NewNop())
	svc.now = func() time.Time { return now }

	if removed := svc.RunOnce(ctx); removed != 2 {
		t.Errorf("Expected 2 entries pruned, got %d", removed)
	}
	if removed := svc.RunOnce(ctx); removed != 0 {
		t.Errorf("Expected nothing left to prune, got %d", removed)
	}

	left, _ := repo.ListBySession(ctx, "s1", 0)
	if len(left) != 1 {
		t.Errorf("Expected 1 entry left, got %d", len(left))
	}
}

func TestCleanupStartStop(t *testing.T) {
	svc := NewCleanupService(adapters.NewMemoryMoodHistory(), time.Hour, time.Hour, zap.NewNop())
	svc.Start()

	stopped := make(chan struct{})
	go func() {
		svc.Stop()
		svc.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
