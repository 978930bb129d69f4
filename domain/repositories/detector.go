package repositories

import (
	"context"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
)

// ExpressionDetector abstracts any facial expression model
type ExpressionDetector interface {
	// Name identifies the backing model
	Name() string
	// Initialize loads or verifies the model. May take several seconds.
	Initialize(ctx context.Context) error
	// Detect returns zero or more faces found in the frame
	Detect(ctx context.Context, frame entities.Frame) ([]entities.FaceResult, error)
}
