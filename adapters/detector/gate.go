package detector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
	"github.com/satriahrh/mirror-of-truth/domain/repositories"
)

// DefaultInitTimeout bounds how long a model may take to load
const DefaultInitTimeout = 30 * time.Second

// Gate loads a detector in the background and guards Detect until it is ready.
// A detector that failed to load stays degraded: Detect reports no faces.
type Gate struct {
	detector repositories.ExpressionDetector
	logger   *zap.Logger
	timeout  time.Duration

	once     sync.Once
	ready    chan struct{}
	degraded atomic.Bool
	initErr  error
}

// NewGate wraps detector. A zero timeout uses DefaultInitTimeout.
func NewGate(detector repositories.ExpressionDetector, timeout time.Duration, logger *zap.Logger) *Gate {
	if timeout <= 0 {
		timeout = DefaultInitTimeout
	}
	return &Gate{
		detector: detector,
		logger:   logger,
		timeout:  timeout,
		ready:    make(chan struct{}),
	}
}

// Start begins loading the models. Calling it more than once has no effect.
func (g *Gate) Start(ctx context.Context) {
	g.once.Do(func() {
		go g.initialize(ctx)
	})
}

func (g *Gate) initialize(ctx context.Context) {
	defer close(g.ready)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	started := time.Now()
	g.logger.Info("Loading expression models", zap.String("detector", g.detector.Name()))
	if err := g.detector.Initialize(ctx); err != nil {
		g.initErr = err
		g.degraded.Store(true)
		g.logger.Error("Failed to load expression models, detection disabled",
			zap.String("detector", g.detector.Name()),
			zap.Error(err))
		return
	}
	g.logger.Info("Expression models loaded",
		zap.String("detector", g.detector.Name()),
		zap.Duration("took", time.Since(started)))
}

// Ready is closed once loading finished, successfully or not
func (g *Gate) Ready() <-chan struct{} {
	return g.ready
}

// Degraded reports whether loading failed
func (g *Gate) Degraded() bool {
	return g.degraded.Load()
}

// Err returns the load error once Ready is closed
func (g *Gate) Err() error {
	select {
	case <-g.ready:
		return g.initErr
	default:
		return nil
	}
}

// Name returns the wrapped detector's name
func (g *Gate) Name() string {
	return g.detector.Name()
}

// Detect forwards to the wrapped detector once it is loaded
func (g *Gate) Detect(ctx context.Context, frame entities.Frame) ([]entities.FaceResult, error) {
	select {
	case <-g.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if g.degraded.Load() {
		return nil, nil
	}
	return g.detector.Detect(ctx, frame)
}
