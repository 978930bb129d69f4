package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
)

func newEntry(sessionID string, label entities.EmotionLabel, confidence float64, at time.Time) *entities.MoodEntry {
	return &entities.MoodEntry{
		SessionID:  sessionID,
		Emotion:    label,
		Confidence: confidence,
		Tip:        "tip",
		Mode:       entities.ModeLive,
		RecordedAt: at,
	}
}

func TestMemoryMoodHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMoodHistory()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("AppendAndList", func(t *testing.T) {
		for i, label := range []entities.EmotionLabel{entities.EmotionHappy, entities.EmotionSad, entities.EmotionHappy} {
			if err := repo.Append(ctx, newEntry("s1", label, 0.5+float64(i)*0.1, base.Add(time.Duration(i)*time.Second))); err != nil {
				t.Fatalf("Failed to append entry: %v", err)
			}
		}

		entries, err := repo.ListBySession(ctx, "s1", 0)
		if err != nil {
			t.Fatalf("Failed to list entries: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("Expected 3 entries, got %d", len(entries))
		}
		if !entries[0].RecordedAt.Equal(base.Add(2 * time.Second)) {
			t.Errorf("Expected newest entry first, got %s", entries[0].RecordedAt)
		}
		if entries[0].ID == "" {
			t.Error("Expected an ID to be assigned")
		}

		limited, _ := repo.ListBySession(ctx, "s1", 2)
		if len(limited) != 2 {
			t.Errorf("Expected 2 entries with limit, got %d", len(limited))
		}

		entries[0].Tip = "mutated"
		again, _ := repo.ListBySession(ctx, "s1", 1)
		if again[0].Tip == "mutated" {
			t.Error("Repository should return copies")
		}
	})

	t.Run("Summary", func(t *testing.T) {
		summary, err := repo.SummaryBySession(ctx, "s1")
		if err != nil {
			t.Fatalf("Failed to summarize: %v", err)
		}
		if summary.Total != 3 || summary.Dominant != entities.EmotionHappy {
			t.Errorf("Unexpected summary: %+v", summary)
		}
		if summary.Counts[entities.EmotionSad] != 1 {
			t.Errorf("Expected one sad entry, got %d", summary.Counts[entities.EmotionSad])
		}
	})

	t.Run("RejectsInvalid", func(t *testing.T) {
		if err := repo.Append(ctx, nil); err == nil {
			t.Error("Expected error for nil entry")
		}
		bad := newEntry("s1", "bored", 0.5, base)
		if err := repo.Append(ctx, bad); err == nil {
			t.Error("Expected error for unknown label")
		}
		off := newEntry("s1", entities.EmotionHappy, 0.5, base)
		off.Mode = entities.ModeOff
		if err := repo.Append(ctx, off); err == nil {
			t.Error("Expected error for an entry recorded while off")
		}
		if _, err := repo.ListBySession(ctx, "", 0); err == nil {
			t.Error("Expected error for empty session ID")
		}
	})

	t.Run("DeleteBefore", func(t *testing.T) {
		if err := repo.Append(ctx, newEntry("s2", entities.EmotionAngry, 0.9, base.Add(-time.Hour))); err != nil {
			t.Fatalf("Failed to append entry: %v", err)
		}

		removed, err := repo.DeleteBefore(ctx, base.Add(time.Second))
		if err != nil {
			t.Fatalf("DeleteBefore returned error: %v", err)
		}
		if removed != 2 {
			t.Errorf("Expected 2 removed entries, got %d", removed)
		}

		left, _ := repo.ListBySession(ctx, "s1", 0)
		if len(left) != 2 {
			t.Errorf("Expected 2 entries left in s1, got %d", len(left))
		}
		gone, _ := repo.ListBySession(ctx, "s2", 0)
		if len(gone) != 0 {
			t.Errorf("Expected s2 to be empty, got %d", len(gone))
		}
	})
}
