package api

import (
	"time"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
	"github.com/satriahrh/mirror-of-truth/internal/catalog"
)

// SessionResponse represents the response payload for a new mirror session
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CatalogResponse lists every emotion the mirror knows
type CatalogResponse struct {
	Emotions []catalog.Entry `json:"emotions"`
}

// HistoryResponse holds the newest readings of a session
type HistoryResponse struct {
	SessionID string                `json:"session_id"`
	Entries   []*entities.MoodEntry `json:"entries"`
}

// HealthResponse reports service status
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Detector  string `json:"detector"`
	Degraded  bool   `json:"degraded"`
	Connected int    `json:"connected"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
