package repositories

import (
	"context"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
)

// Constraints describes the requested video stream
type Constraints struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultConstraints is the fixed 640x480 capture resolution
var DefaultConstraints = Constraints{Width: 640, Height: 480}

// Camera abstracts the media capture capability.
// Acquire returns a *entities.CameraError on failure.
type Camera interface {
	Acquire(ctx context.Context, constraints Constraints) (Stream, error)
}

// Stream is an acquired video stream
type Stream interface {
	// LatestFrame returns the most recent frame, false if none arrived yet
	LatestFrame() (entities.Frame, bool)
	// Release stops all tracks. Safe to call more than once.
	Release() error
}
