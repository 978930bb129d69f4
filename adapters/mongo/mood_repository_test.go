package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
)

func TestSummaryFromRows(t *testing.T) {
	summary := summaryFromRows("s1", []summaryRow{
		{Emotion: entities.EmotionSad, Count: 2, SumConfidence: 1.25},
		{Emotion: entities.EmotionHappy, Count: 2, SumConfidence: 1.75},
		{Emotion: entities.EmotionNeutral, Count: 1, SumConfidence: 0.5},
	})

	if summary.Total != 5 {
		t.Errorf("Expected total 5, got %d", summary.Total)
	}
	if summary.Dominant != entities.EmotionHappy {
		t.Errorf("Ties should resolve in label order, got %s", summary.Dominant)
	}
	if summary.AvgConfidence != 0.7 {
		t.Errorf("Expected average 0.7, got %f", summary.AvgConfidence)
	}

	empty := summaryFromRows("s2", nil)
	if empty.Total != 0 || empty.Dominant != "" {
		t.Errorf("Expected empty summary, got %+v", empty)
	}
}

// TestMoodRepository_Integration requires a running MongoDB instance
// (skipped if MONGODB_URI is not set)
func TestMoodRepository_Integration(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	logger, _ := zap.NewDevelopment()

	client, err := NewClient(ctx, ClientOptions{URI: mongoURI, Database: "mirror_of_truth_test"}, logger)
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Close(ctx)
	defer client.Database.Drop(ctx)

	repo := NewMoodRepository(client.Database, logger)
	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("Failed to create indexes: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Millisecond)
	labels := []entities.EmotionLabel{entities.EmotionHappy, entities.EmotionSad, entities.EmotionHappy}

	t.Run("AppendAndList", func(t *testing.T) {
		for i, label := range labels {
			entry := &entities.MoodEntry{
				SessionID:  "session-1",
				Emotion:    label,
				Confidence: 0.6,
				Tip:        "tip",
				Mode:       entities.ModeDemo,
				RecordedAt: base.Add(time.Duration(i) * time.Second),
			}
			if err := repo.Append(ctx, entry); err != nil {
				t.Fatalf("Failed to append entry: %v", err)
			}
		}

		entries, err := repo.ListBySession(ctx, "session-1", 2)
		if err != nil {
			t.Fatalf("Failed to list entries: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("Expected 2 entries, got %d", len(entries))
		}
		if entries[0].Emotion != entities.EmotionHappy || !entries[0].RecordedAt.Equal(base.Add(2*time.Second)) {
			t.Errorf("Expected newest entry first, got %+v", entries[0])
		}
	})

	t.Run("Summary", func(t *testing.T) {
		summary, err := repo.SummaryBySession(ctx, "session-1")
		if err != nil {
			t.Fatalf("Failed to summarize: %v", err)
		}
		if summary.Total != 3 || summary.Dominant != entities.EmotionHappy {
			t.Errorf("Unexpected summary: %+v", summary)
		}
	})

	t.Run("DeleteBefore", func(t *testing.T) {
		removed, err := repo.DeleteBefore(ctx, base.Add(time.Second))
		if err != nil {
			t.Fatalf("DeleteBefore returned error: %v", err)
		}
		if removed != 1 {
			t.Errorf("Expected 1 removed entry, got %d", removed)
		}
	})
}
