package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
)

// MemoryMoodHistory is an in-memory implementation of MoodHistoryRepository.
// It is the default store when no database is configured.
type MemoryMoodHistory struct {
	mu       sync.RWMutex
	sessions map[string][]*entities.MoodEntry // session_id -> entries, oldest first
}

// NewMemoryMoodHistory creates a new in-memory mood history
func NewMemoryMoodHistory() *MemoryMoodHistory {
	return &MemoryMoodHistory{
		sessions: make(map[string][]*entities.MoodEntry),
	}
}

// Append implements MoodHistoryRepository interface
func (m *MemoryMoodHistory) Append(ctx context.Context, entry *entities.MoodEntry) error {
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

	m.mu.Lock()
	defer m.mu.Unlock()

	entryCopy := *entry
	m.sessions[entry.SessionID] = append(m.sessions[entry.SessionID], &entryCopy)
	return nil
}

// ListBySession implements MoodHistoryRepository interface
func (m *MemoryMoodHistory) ListBySession(ctx context.Context, sessionID string, limit int) ([]*entities.MoodEntry, error) {
	if sessionID == "" {
		return nil, errors.New("session ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.sessions[sessionID]
	result := make([]*entities.MoodEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		entryCopy := *entries[i]
		result = append(result, &entryCopy)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].RecordedAt.After(result[j].RecordedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// SummaryBySession implements MoodHistoryRepository interface
func (m *MemoryMoodHistory) SummaryBySession(ctx context.Context, sessionID string) (entities.MoodSummary, error) {
	if sessionID == "" {
		return entities.MoodSummary{}, errors.New("session ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return entities.Summarize(sessionID, m.sessions[sessionID]), nil
}

// DeleteBefore implements MoodHistoryRepository interface
func (m *MemoryMoodHistory) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for sessionID, entries := range m.sessions {
		kept := entries[:0]
		for _, entry := range entries {
			if entry.RecordedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, entry)
		}
		if len(kept) == 0 {
			delete(m.sessions, sessionID)
			continue
		}
		m.sessions[sessionID] = kept
	}
	return removed, nil
}
