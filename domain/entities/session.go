package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long an issued mirror session stays valid
const DefaultSessionTTL = 12 * time.Hour

// MirrorSession identifies one browser (or CLI) using the mirror
type MirrorSession struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewMirrorSession creates a new session valid for ttl
func NewMirrorSession(ttl time.Duration) *MirrorSession {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := time.Now()
	return &MirrorSession{
		ID:        uuid.New().String(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired checks if the session has expired
func (s *MirrorSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// MoodEntry is one committed reading kept in the mood history
type MoodEntry struct {
	ID         string       `json:"id" bson:"_id"`
	SessionID  string       `json:"session_id" bson:"session_id"`
	Emotion    EmotionLabel `json:"emotion" bson:"emotion"`
	Confidence float64      `json:"confidence" bson:"confidence"`
	Tip        string       `json:"tip" bson:"tip"`
	Mode       Mode         `json:"mode" bson:"mode"`
	RecordedAt time.Time    `json:"recorded_at" bson:"recorded_at"`
}

// NewMoodEntry creates a history entry from a committed state
func NewMoodEntry(sessionID string, state MirrorState) *MoodEntry {
	recordedAt := state.UpdatedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	return &MoodEntry{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		Emotion:    state.Emotion,
		Confidence: state.Confidence,
		Tip:        state.Tip,
		Mode:       state.Mode,
		RecordedAt: recordedAt,
	}
}

// Validate validates the entry data
func (e *MoodEntry) Validate() error {
	if e.SessionID == "" {
		return errors.New("session_id is required")
	}
	if !e.Emotion.Valid() {
		return errors.New("invalid emotion label")
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return errors.New("confidence must be between 0 and 1")
	}
	if e.Mode != ModeLive && e.Mode != ModeDemo {
		return errors.New("mode must be live or demo")
	}
	return nil
}

// MoodSummary aggregates a session's history
type MoodSummary struct {
	SessionID     string               `json:"session_id"`
	Total         int                  `json:"total"`
	Counts        map[EmotionLabel]int `json:"counts"`
	Dominant      EmotionLabel         `json:"dominant,omitempty"`
	AvgConfidence float64              `json:"avg_confidence"`
}

// Summarize builds a summary from entries
func Summarize(sessionID string, entries []*MoodEntry) MoodSummary {
	summary := MoodSummary{
		SessionID: sessionID,
		Counts:    make(map[EmotionLabel]int),
	}
	var sum float64
	for _, entry := range entries {
		summary.Counts[entry.Emotion]++
		summary.Total++
		sum += entry.Confidence
	}
	if summary.Total == 0 {
		return summary
	}
	summary.AvgConfidence = sum / float64(summary.Total)

	best := 0
	for _, label := range AllEmotions() {
		if summary.Counts[label] > best {
			best = summary.Counts[label]
			summary.Dominant = label
		}
	}
	return summary
}
