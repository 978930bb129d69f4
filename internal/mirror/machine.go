// Package mirror implements the emotion state machine and the controller
// that drives it from camera frames or demo ticks.
package mirror

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
	"github.com/satriahrh/mirror-of-truth/internal/catalog"
)

const (
	// AcceptanceThreshold is the minimum live score that may overwrite the state (exclusive)
	AcceptanceThreshold = 0.3

	demoMinConfidence = 0.6
	demoMaxConfidence = 1.0
)

// ErrInvalidTransition is returned for a user event the current mode does not accept
var ErrInvalidTransition = errors.New("invalid transition")

// Event drives the state machine
type Event interface {
	eventName() string
}

type (
	// StartRequested is the user asking for live detection
	StartRequested struct{}
	// DemoRequested is the user asking for the simulated mode
	DemoRequested struct{}
	// StopRequested is the user stopping the mirror
	StopRequested struct{}
	// CameraAcquired reports a bound video stream
	CameraAcquired struct{}
	// CameraFailed reports a failed acquisition
	CameraFailed struct{ Kind entities.CameraErrorKind }
	// ModelsReady reports that the detector can serve requests
	ModelsReady struct{}
	// FacesDetected carries one live detection tick
	FacesDetected struct{ Faces []entities.FaceResult }
	// DemoTick is one simulated tick
	DemoTick struct{}
)

func (StartRequested) eventName() string { return "start" }
func (DemoRequested) eventName() string  { return "start_demo" }
func (StopRequested) eventName() string  { return "stop" }
func (CameraAcquired) eventName() string { return "camera_acquired" }
func (CameraFailed) eventName() string   { return "camera_failed" }
func (ModelsReady) eventName() string    { return "models_ready" }
func (FacesDetected) eventName() string  { return "faces_detected" }
func (DemoTick) eventName() string       { return "demo_tick" }

// StateMachine updates MirrorState. It is not safe for concurrent use.
type StateMachine struct {
	catalog   *catalog.Catalog
	rng       *rand.Rand
	threshold float64
	now       func() time.Time
}

// NewStateMachine returns a StateMachine drawing randomness from rng
func NewStateMachine(c *catalog.Catalog, rng *rand.Rand) *StateMachine {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &StateMachine{
		catalog:   c,
		rng:       rng,
		threshold: AcceptanceThreshold,
		now:       time.Now,
	}
}

// Update returns the state after applying ev.
// User events that the current mode rejects return ErrInvalidTransition and
// the unchanged state; stale automatic events are ignored without error.
func (m *StateMachine) Update(state entities.MirrorState, ev Event) (entities.MirrorState, error) {
	switch e := ev.(type) {
	case StartRequested:
		if state.Mode != entities.ModeOff {
			return state, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, e.eventName(), state.Mode)
		}
		state.Mode = entities.ModeAwaitingModels
		state.LastError = ""
		state.FacePresent = false
		state.Scanned = false
		return m.touch(state), nil

	case DemoRequested:
		if state.Mode != entities.ModeOff {
			return state, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, e.eventName(), state.Mode)
		}
		state.Mode = entities.ModeDemo
		state.LastError = ""
		return m.touch(state), nil

	case StopRequested:
		reset := entities.NewMirrorState()
		reset.ModelsReady = state.ModelsReady
		reset.UpdatedAt = m.now()
		return reset, nil

	case CameraAcquired:
		if state.Mode != entities.ModeAwaitingModels {
			return state, nil
		}
		state.CameraActive = true
		if state.ModelsReady {
			state.Mode = entities.ModeLive
		}
		return m.touch(state), nil

	case CameraFailed:
		if state.Mode != entities.ModeAwaitingModels && state.Mode != entities.ModeLive {
			return state, nil
		}
		state.Mode = entities.ModeDemo
		state.CameraActive = false
		state.FacePresent = false
		state.Scanned = false
		state.LastError = string(e.Kind)
		return m.touch(state), nil

	case ModelsReady:
		if state.ModelsReady {
			return state, nil
		}
		state.ModelsReady = true
		if state.Mode == entities.ModeAwaitingModels && state.CameraActive {
			state.Mode = entities.ModeLive
		}
		return m.touch(state), nil

	case FacesDetected:
		if state.Mode != entities.ModeLive {
			return state, nil
		}
		return m.applyDetection(state, e.Faces), nil

	case DemoTick:
		if state.Mode != entities.ModeDemo {
			return state, nil
		}
		return m.applyDemoTick(state), nil

	default:
		return state, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, ev)
	}
}

func (m *StateMachine) applyDetection(state entities.MirrorState, faces []entities.FaceResult) entities.MirrorState {
	if len(faces) == 0 {
		if state.FacePresent || !state.Scanned {
			state.FacePresent = false
			state.Scanned = true
			return m.touch(state)
		}
		return state
	}

	state.FacePresent = true
	state.Scanned = true
	result, ok := faces[0].Argmax()
	if !ok || result.Confidence <= m.threshold {
		return state
	}

	return m.commit(state, result.Label, clamp01(result.Confidence))
}

func (m *StateMachine) applyDemoTick(state entities.MirrorState) entities.MirrorState {
	labels := m.catalog.Labels()
	label := labels[m.rng.IntN(len(labels))]
	confidence := demoMinConfidence + m.rng.Float64()*(demoMaxConfidence-demoMinConfidence)
	return m.commit(state, label, confidence)
}

func (m *StateMachine) commit(state entities.MirrorState, label entities.EmotionLabel, confidence float64) entities.MirrorState {
	state.Emotion = label
	state.Confidence = confidence
	state.Tip = m.catalog.PickTip(label, m.rng)
	state.Commits++
	return m.touch(state)
}

func (m *StateMachine) touch(state entities.MirrorState) entities.MirrorState {
	state.UpdatedAt = m.now()
	return state
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
