package entities

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Frame is a single captured video frame
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	// MIMEType of Data, e.g. "image/jpeg"
	MIMEType string
	Data     []byte
}

// CameraErrorKind classifies camera acquisition failures
type CameraErrorKind string

const (
	CameraErrorPermission CameraErrorKind = "permission"
	CameraErrorDevice     CameraErrorKind = "device"
	CameraErrorUnknown    CameraErrorKind = "unknown"
)

// ParseCameraErrorKind maps a reported reason to a kind, defaulting to unknown
func ParseCameraErrorKind(reason string) CameraErrorKind {
	switch CameraErrorKind(reason) {
	case CameraErrorPermission, CameraErrorDevice:
		return CameraErrorKind(reason)
	default:
		return CameraErrorUnknown
	}
}

// CameraError is returned by camera acquisition
type CameraError struct {
	Kind CameraErrorKind
	Err  error
}

// NewCameraError creates a camera error of the given kind
func NewCameraError(kind CameraErrorKind, err error) *CameraError {
	return &CameraError{Kind: kind, Err: err}
}

func (e *CameraError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("camera error: %s", e.Kind)
	}
	return fmt.Sprintf("camera error: %s: %v", e.Kind, e.Err)
}

func (e *CameraError) Unwrap() error {
	return e.Err
}

// ClassifyCameraError turns any acquisition error into a CameraError
func ClassifyCameraError(err error) *CameraError {
	if err == nil {
		return nil
	}
	var camErr *CameraError
	if errors.As(err, &camErr) {
		return camErr
	}
	switch {
	case errors.Is(err, os.ErrPermission):
		return NewCameraError(CameraErrorPermission, err)
	case errors.Is(err, os.ErrNotExist):
		return NewCameraError(CameraErrorDevice, err)
	default:
		return NewCameraError(CameraErrorUnknown, err)
	}
}
