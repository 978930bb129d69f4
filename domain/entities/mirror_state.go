package entities

import "time"

// Mode is the operating mode of a mirror
type Mode string

const (
	ModeOff            Mode = "off"
	ModeAwaitingModels Mode = "awaiting_models"
	ModeLive           Mode = "live"
	ModeDemo           Mode = "demo"
)

// MirrorState is the snapshot rendered by the presentation layer
type MirrorState struct {
	Mode         Mode         `json:"mode"`
	Emotion      EmotionLabel `json:"emotion"`
	Confidence   float64      `json:"confidence"`
	Tip          string       `json:"tip,omitempty"`
	ModelsReady  bool         `json:"models_ready"`
	CameraActive bool         `json:"camera_active"`
	FacePresent  bool         `json:"face_present"`
	// Scanned is set once the current live run has finished a detection
	Scanned      bool         `json:"scanned"`
	LastError    string       `json:"last_error,omitempty"`
	Commits      uint64       `json:"commits"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NewMirrorState returns the Off defaults
func NewMirrorState() MirrorState {
	return MirrorState{
		Mode:    ModeOff,
		Emotion: EmotionNeutral,
	}
}

// HasTip reports whether a tip is currently shown
func (s MirrorState) HasTip() bool {
	return s.Tip != ""
}

// IsRunning reports whether the mirror is in any mode other than Off
func (s MirrorState) IsRunning() bool {
	return s.Mode != ModeOff
}
