package mirror

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
	"github.com/satriahrh/mirror-of-truth/domain/repositories"
)

const (
	// Buffered snapshots per subscriber; the oldest is dropped when full.
	subscriberBuffer = 16

	historyWriteTimeout = 5 * time.Second
)

// ErrControllerClosed is returned once Run has exited
var ErrControllerClosed = errors.New("mirror controller closed")

// Detection is the detector as seen by the controller
type Detection interface {
	// Ready is closed once the detector can serve requests
	Ready() <-chan struct{}
	Detect(ctx context.Context, frame entities.Frame) ([]entities.FaceResult, error)
}

// Config holds the controller timings
type Config struct {
	LiveInterval   time.Duration
	DemoInterval   time.Duration
	DetectTimeout  time.Duration
	AcquireTimeout time.Duration
	Constraints    repositories.Constraints
}

// DefaultConfig returns 1s live ticks, 3s demo ticks and a 640x480 stream
func DefaultConfig() Config {
	return Config{
		LiveInterval:   time.Second,
		DemoInterval:   3 * time.Second,
		DetectTimeout:  5 * time.Second,
		AcquireTimeout: 15 * time.Second,
		Constraints:    repositories.DefaultConstraints,
	}
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) ticker {
	return timeTicker{t: time.NewTicker(d)}
}

type request struct {
	ev    Event
	reply chan error
}

type cameraOutcome struct {
	gen    uint64
	stream repositories.Stream
	err    error
}

type detectionOutcome struct {
	gen   uint64
	faces []entities.FaceResult
	err   error
}

// Controller owns one mirror: its state, camera stream and polling ticker.
// All mutation happens on the goroutine running Run.
type Controller struct {
	sessionID string
	cfg       Config
	machine   *StateMachine
	camera    repositories.Camera
	detection Detection
	history   repositories.MoodHistoryRepository
	logger    *zap.Logger

	newTicker func(time.Duration) ticker
	hook      func(step string)

	requests      chan request
	cameraResults chan cameraOutcome
	detections    chan detectionOutcome
	done          chan struct{}

	mu        sync.RWMutex
	snapshot  entities.MirrorState
	listeners map[chan entities.MirrorState]struct{}

	// Owned by Run.
	state        entities.MirrorState
	stream       repositories.Stream
	tick         ticker
	tickInterval time.Duration
	gen          uint64
	genCtx       context.Context
	cancelGen    context.CancelFunc
	detecting    bool

	writes sync.WaitGroup
}

// NewController creates a controller. history may be nil.
func NewController(
	sessionID string,
	machine *StateMachine,
	camera repositories.Camera,
	detection Detection,
	history repositories.MoodHistoryRepository,
	cfg Config,
	logger *zap.Logger,
) *Controller {
	state := entities.NewMirrorState()
	return &Controller{
		sessionID:     sessionID,
		cfg:           cfg,
		machine:       machine,
		camera:        camera,
		detection:     detection,
		history:       history,
		logger:        logger.With(zap.String("sessionID", sessionID)),
		newTicker:     newTimeTicker,
		requests:      make(chan request),
		cameraResults: make(chan cameraOutcome),
		detections:    make(chan detectionOutcome),
		done:          make(chan struct{}),
		snapshot:      state,
		listeners:     make(map[chan entities.MirrorState]struct{}),
		state:         state,
	}
}

// SessionID returns the session this controller belongs to
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Run processes events until ctx is cancelled. On exit the mirror is stopped,
// the camera released and pending history writes finished.
func (c *Controller) Run(ctx context.Context) {
	defer c.closeListeners()
	defer close(c.done)
	defer c.writes.Wait()

	ready := c.detection.Ready()
	for {
		select {
		case <-ctx.Done():
			c.halt()
			c.logger.Info("Mirror controller stopped")
			return

		case req := <-c.requests:
			req.reply <- c.handle(ctx, req.ev)

		case <-ready:
			ready = nil
			c.apply(ModelsReady{})
			c.logger.Info("Expression models ready")

		case out := <-c.cameraResults:
			c.onCamera(out)
			c.trace("camera")

		case out := <-c.detections:
			c.onDetection(out)
			c.trace("detection")

		case <-c.tickC():
			c.onTick()
			c.trace("tick")
		}
	}
}

// Done is closed once Run has exited
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Start requests live detection. The camera is acquired asynchronously; a
// failed acquisition falls back to demo mode.
func (c *Controller) Start(ctx context.Context) error {
	return c.send(ctx, StartRequested{})
}

// StartDemo switches to simulated mode without touching the camera
func (c *Controller) StartDemo(ctx context.Context) error {
	return c.send(ctx, DemoRequested{})
}

// Stop returns the mirror to Off. Safe to call in any mode and after Run exited.
func (c *Controller) Stop(ctx context.Context) error {
	err := c.send(ctx, StopRequested{})
	if errors.Is(err, ErrControllerClosed) {
		return nil
	}
	return err
}

// CameraLost reports that the camera stopped while starting or live. The
// stream is released and the mirror falls back to demo mode.
func (c *Controller) CameraLost(ctx context.Context, kind entities.CameraErrorKind) error {
	return c.send(ctx, CameraFailed{Kind: kind})
}

// Snapshot returns the latest published state
func (c *Controller) Snapshot() entities.MirrorState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Subscribe returns a channel receiving every published state, starting with
// the current one, and a function to unsubscribe.
func (c *Controller) Subscribe() (<-chan entities.MirrorState, func()) {
	ch := make(chan entities.MirrorState, subscriberBuffer)

	c.mu.Lock()
	ch <- c.snapshot
	select {
	case <-c.done:
		close(ch)
		c.mu.Unlock()
		return ch, func() {}
	default:
	}
	c.listeners[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.listeners[ch]; ok {
				delete(c.listeners, ch)
				close(ch)
			}
		})
	}
}

func (c *Controller) send(ctx context.Context, ev Event) error {
	req := request{ev: ev, reply: make(chan error, 1)}
	select {
	case c.requests <- req:
	case <-c.done:
		return ErrControllerClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-c.done:
		return ErrControllerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) handle(ctx context.Context, ev Event) error {
	switch ev.(type) {
	case StopRequested:
		c.halt()
		return nil
	case StartRequested:
		if err := c.apply(ev); err != nil {
			return err
		}
		c.acquire(ctx)
		return nil
	case CameraFailed:
		if c.state.Mode != entities.ModeAwaitingModels && c.state.Mode != entities.ModeLive {
			return nil
		}
		c.dropCamera()
		return c.apply(ev)
	default:
		return c.apply(ev)
	}
}

// apply runs ev through the state machine and publishes the result
func (c *Controller) apply(ev Event) error {
	next, err := c.machine.Update(c.state, ev)
	if err != nil {
		c.logger.Warn("Rejected mirror event",
			zap.String("event", ev.eventName()),
			zap.String("mode", string(c.state.Mode)),
			zap.Error(err))
		return err
	}
	if next == c.state {
		return nil
	}

	committed := next.Commits != c.state.Commits
	prevMode := c.state.Mode
	c.state = next
	c.syncTicker()
	c.publish()

	if prevMode != next.Mode {
		c.logger.Info("Mirror mode changed",
			zap.String("from", string(prevMode)),
			zap.String("to", string(next.Mode)),
			zap.String("event", ev.eventName()))
	}
	if committed {
		c.record(next)
	}
	return nil
}

// halt cancels the ticker and any in-flight work before resetting the state,
// so nothing from the previous run can commit afterwards.
func (c *Controller) halt() {
	c.stopTicker()
	c.dropCamera()
	c.apply(StopRequested{})
}

// dropCamera invalidates the pending acquisition and in-flight detection and
// releases the stream.
func (c *Controller) dropCamera() {
	c.gen++
	if c.cancelGen != nil {
		c.cancelGen()
		c.cancelGen = nil
		c.genCtx = nil
	}
	c.detecting = false
	c.releaseStream()
}

func (c *Controller) acquire(parent context.Context) {
	c.genCtx, c.cancelGen = context.WithCancel(parent)
	gen := c.gen
	ctx, cancel := context.WithTimeout(c.genCtx, c.cfg.AcquireTimeout)

	c.logger.Info("Acquiring camera",
		zap.Int("width", c.cfg.Constraints.Width),
		zap.Int("height", c.cfg.Constraints.Height))

	go func() {
		defer cancel()
		stream, err := c.camera.Acquire(ctx, c.cfg.Constraints)
		select {
		case c.cameraResults <- cameraOutcome{gen: gen, stream: stream, err: err}:
		case <-c.done:
			if stream != nil {
				_ = stream.Release()
			}
		}
	}()
}

func (c *Controller) onCamera(out cameraOutcome) {
	if out.gen != c.gen || c.state.Mode != entities.ModeAwaitingModels {
		if out.stream != nil {
			c.logger.Info("Releasing camera stream acquired after stop")
			if err := out.stream.Release(); err != nil {
				c.logger.Warn("Failed to release stale camera stream", zap.Error(err))
			}
		}
		return
	}

	if out.err != nil {
		camErr := entities.ClassifyCameraError(out.err)
		c.logger.Warn("Camera unavailable, falling back to demo mode",
			zap.String("kind", string(camErr.Kind)),
			zap.Error(out.err))
		c.apply(CameraFailed{Kind: camErr.Kind})
		return
	}

	c.releaseStream()
	c.stream = out.stream
	c.apply(CameraAcquired{})
}

func (c *Controller) onTick() {
	switch c.state.Mode {
	case entities.ModeDemo:
		c.apply(DemoTick{})

	case entities.ModeLive:
		if c.detecting {
			c.logger.Debug("Detection still running, skipping tick")
			return
		}
		if c.stream == nil {
			return
		}
		frame, ok := c.stream.LatestFrame()
		if !ok {
			c.logger.Debug("No frame available yet")
			return
		}

		c.detecting = true
		gen := c.gen
		ctx, cancel := context.WithTimeout(c.genCtx, c.cfg.DetectTimeout)
		go func() {
			defer cancel()
			faces, err := c.detection.Detect(ctx, frame)
			select {
			case c.detections <- detectionOutcome{gen: gen, faces: faces, err: err}:
			case <-c.done:
			}
		}()
	}
}

func (c *Controller) onDetection(out detectionOutcome) {
	if out.gen != c.gen {
		c.logger.Debug("Dropping detection from a previous run")
		return
	}
	c.detecting = false

	if out.err != nil {
		c.logger.Warn("Detection failed, skipping tick", zap.Error(out.err))
		return
	}
	c.apply(FacesDetected{Faces: out.faces})
}

func (c *Controller) tickC() <-chan time.Time {
	if c.tick == nil {
		return nil
	}
	return c.tick.C()
}

func (c *Controller) syncTicker() {
	var want time.Duration
	switch c.state.Mode {
	case entities.ModeLive:
		want = c.cfg.LiveInterval
	case entities.ModeDemo:
		want = c.cfg.DemoInterval
	}
	if want == c.tickInterval && (want == 0) == (c.tick == nil) {
		return
	}

	c.stopTicker()
	if want > 0 {
		c.tick = c.newTicker(want)
		c.tickInterval = want
	}
}

func (c *Controller) stopTicker() {
	if c.tick != nil {
		c.tick.Stop()
		c.tick = nil
	}
	c.tickInterval = 0
}

func (c *Controller) releaseStream() {
	if c.stream == nil {
		return
	}
	if err := c.stream.Release(); err != nil {
		c.logger.Warn("Failed to release camera stream", zap.Error(err))
	}
	c.stream = nil
}

func (c *Controller) publish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot = c.state
	for ch := range c.listeners {
		select {
		case ch <- c.state:
		default:
			// Drop the oldest snapshot to make room for the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- c.state:
			default:
			}
		}
	}
}

func (c *Controller) closeListeners() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.listeners {
		delete(c.listeners, ch)
		close(ch)
	}
}

func (c *Controller) record(state entities.MirrorState) {
	if c.history == nil {
		return
	}
	entry := entities.NewMoodEntry(c.sessionID, state)
	c.writes.Add(1)
	go func() {
		defer c.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()
		if err := c.history.Append(ctx, entry); err != nil {
			c.logger.Error("Failed to record mood entry", zap.Error(err))
		}
	}()
}

func (c *Controller) trace(step string) {
	if c.hook != nil {
		c.hook(step)
	}
}
