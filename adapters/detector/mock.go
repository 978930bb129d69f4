package detector

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
)

// MockDetector is an offline ExpressionDetector. It replays scripted results
// in order and, once the script is exhausted, makes up a single face.
type MockDetector struct {
	mu        sync.Mutex
	script    [][]entities.FaceResult
	rng       *rand.Rand
	initDelay time.Duration
	initErr   error
	calls     int
}

// NewMockDetector creates a mock detector seeded with seed
func NewMockDetector(seed uint64) *MockDetector {
	return &MockDetector{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// WithInitDelay makes Initialize take d, like a real model download
func (m *MockDetector) WithInitDelay(d time.Duration) *MockDetector {
	m.initDelay = d
	return m
}

// WithInitError makes Initialize fail with err
func (m *MockDetector) WithInitError(err error) *MockDetector {
	m.initErr = err
	return m
}

// Script queues results returned by successive Detect calls
func (m *MockDetector) Script(results ...[]entities.FaceResult) *MockDetector {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, results...)
	return m
}

func (m *MockDetector) Name() string {
	return "mock"
}

func (m *MockDetector) Initialize(ctx context.Context) error {
	if m.initDelay > 0 {
		select {
		case <-time.After(m.initDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.initErr
}

func (m *MockDetector) Detect(ctx context.Context, frame entities.Frame) ([]entities.FaceResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		return next, nil
	}
	return []entities.FaceResult{m.randomFace(frame)}, nil
}

// Calls returns how many times Detect was invoked
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockDetector) randomFace(frame entities.Frame) entities.FaceResult {
	labels := entities.AllEmotions()
	dominant := labels[m.rng.IntN(len(labels))]
	peak := 0.4 + m.rng.Float64()*0.6

	expressions := make(map[string]float64, len(labels))
	rest := (1 - peak) / float64(len(labels)-1)
	for _, label := range labels {
		expressions[string(label)] = rest
	}
	expressions[string(dominant)] = peak

	face := entities.FaceResult{Expressions: expressions}
	if frame.Width > 0 && frame.Height > 0 {
		w, h := float64(frame.Width), float64(frame.Height)
		face.Box = &entities.Box{X: w * 0.3, Y: h * 0.2, Width: w * 0.4, Height: h * 0.55}
	}
	return face
}
