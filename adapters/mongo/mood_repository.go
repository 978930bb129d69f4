package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
)

const moodCollection = "mood_entries"

// MoodRepository implements MoodHistoryRepository using MongoDB
type MoodRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMoodRepository creates a new MongoDB mood history repository
func NewMoodRepository(db *mongo.Database, logger *zap.Logger) *MoodRepository {
	return &MoodRepository{
		collection: db.Collection(moodCollection),
		logger:     logger,
	}
}

// EnsureIndexes creates the lookup index by session and the cleanup index by time
func (r *MoodRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "recorded_at", Value: -1}}},
		{Keys: bson.D{{Key: "recorded_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create mood indexes: %w", err)
	}
	r.logger.Info("Mood history indexes created")
	return nil
}

// Append implements repositories.MoodHistoryRepository
func (r *MoodRepository) Append(ctx context.Context, entry *entities.MoodEntry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now()
	}

	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert mood entry: %w", err)
	}
	return nil
}

// ListBySession implements repositories.MoodHistoryRepository
func (r *MoodRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*entities.MoodEntry, error) {
	if sessionID == "" {
		return nil, errors.New("session ID cannot be empty")
	}

	opts := options.Find().SetSort(bson.D{{Key: "recorded_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find mood entries for session %s: %w", sessionID, err)
	}
	defer cursor.Close(ctx)

	entries := make([]*entities.MoodEntry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode mood entries: %w", err)
	}
	return entries, nil
}

type summaryRow struct {
	Emotion       entities.EmotionLabel `bson:"_id"`
	Count         int                   `bson:"count"`
	SumConfidence float64               `bson:"sum_confidence"`
}

// SummaryBySession implements repositories.MoodHistoryRepository
func (r *MoodRepository) SummaryBySession(ctx context.Context, sessionID string) (entities.MoodSummary, error) {
	if sessionID == "" {
		return entities.MoodSummary{}, errors.New("session ID cannot be empty")
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"session_id": sessionID}}},
		{{Key: "$group", Value: bson.M{
			"_id":            "$emotion",
			"count":          bson.M{"$sum": 1},
			"sum_confidence": bson.M{"$sum": "$confidence"},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return entities.MoodSummary{}, fmt.Errorf("failed to aggregate mood entries: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []summaryRow
	if err := cursor.All(ctx, &rows); err != nil {
		return entities.MoodSummary{}, fmt.Errorf("failed to decode mood summary: %w", err)
	}
	return summaryFromRows(sessionID, rows), nil
}

func summaryFromRows(sessionID string, rows []summaryRow) entities.MoodSummary {
	summary := entities.MoodSummary{
		SessionID: sessionID,
		Counts:    make(map[entities.EmotionLabel]int, len(rows)),
	}
	var sum float64
	for _, row := range rows {
		summary.Counts[row.Emotion] = row.Count
		summary.Total += row.Count
		sum += row.SumConfidence
	}
	if summary.Total == 0 {
		return summary
	}
	summary.AvgConfidence = sum / float64(summary.Total)

	best := 0
	for _, label := range entities.AllEmotions() {
		if summary.Counts[label] > best {
			best = summary.Counts[label]
			summary.Dominant = label
		}
	}
	return summary
}

// DeleteBefore implements repositories.MoodHistoryRepository
func (r *MoodRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"recorded_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete mood entries: %w", err)
	}
	return result.DeletedCount, nil
}
