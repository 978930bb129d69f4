package websocket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
	"github.com/satriahrh/mirror-of-truth/domain/repositories"
)

// Used when the caller's context carries no deadline
const defaultCameraTimeout = 15 * time.Second

// outbox delivers a JSON message to the peer, false when it was dropped
type outbox interface {
	sendJSON(v interface{}) bool
}

type cameraAnswer struct {
	granted bool
	width   int
	height  int
	reason  string
}

// ClientCamera uses the connected browser as the camera. Acquire asks the
// page to call getUserMedia; frames then arrive as binary websocket messages.
type ClientCamera struct {
	out    outbox
	logger *zap.Logger

	mu      sync.Mutex
	pending chan cameraAnswer
	stream  *clientStream
}

var _ repositories.Camera = (*ClientCamera)(nil)

// NewClientCamera creates a camera speaking through out
func NewClientCamera(out outbox, logger *zap.Logger) *ClientCamera {
	return &ClientCamera{out: out, logger: logger}
}

// Acquire sends camera_request and waits for the browser's answer
func (c *ClientCamera) Acquire(ctx context.Context, constraints repositories.Constraints) (repositories.Stream, error) {
	c.mu.Lock()
	if c.stream != nil {
		c.mu.Unlock()
		return nil, entities.NewCameraError(entities.CameraErrorDevice, errors.New("camera already in use"))
	}
	if c.pending != nil {
		c.mu.Unlock()
		return nil, entities.NewCameraError(entities.CameraErrorDevice, errors.New("camera request already pending"))
	}
	answers := make(chan cameraAnswer, 1)
	c.pending = answers
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.pending == answers {
			c.pending = nil
		}
		c.mu.Unlock()
	}()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultCameraTimeout)
		defer cancel()
	}

	if !c.out.sendJSON(&CameraRequestMessage{
		BaseMessage: newBase(MessageTypeCameraRequest),
		Width:       constraints.Width,
		Height:      constraints.Height,
	}) {
		return nil, entities.NewCameraError(entities.CameraErrorDevice, errors.New("client connection is closed"))
	}

	select {
	case answer := <-answers:
		if !answer.granted {
			kind := entities.ParseCameraErrorKind(answer.reason)
			return nil, entities.NewCameraError(kind, fmt.Errorf("camera denied by client: %s", answer.reason))
		}

		width, height := answer.width, answer.height
		if width == 0 || height == 0 {
			width, height = constraints.Width, constraints.Height
		}
		stream := &clientStream{camera: c, width: width, height: height}

		c.mu.Lock()
		c.stream = stream
		c.mu.Unlock()

		c.logger.Info("Client camera granted", zap.Int("width", width), zap.Int("height", height))
		return stream, nil

	case <-ctx.Done():
		c.mu.Lock()
		if c.pending == answers {
			c.pending = nil
		}
		c.mu.Unlock()

		// An answer may have landed together with the deadline.
		select {
		case answer := <-answers:
			if answer.granted {
				c.logger.Info("Camera granted after the deadline, asking client to release it")
				c.out.sendJSON(&CameraReleaseMessage{BaseMessage: newBase(MessageTypeCameraRelease)})
			}
		default:
		}
		return nil, entities.NewCameraError(entities.CameraErrorDevice, fmt.Errorf("waiting for camera: %w", ctx.Err()))
	}
}

// Granted delivers a camera_granted answer. A grant nobody waits for is
// released straight away so the browser does not keep its camera on.
func (c *ClientCamera) Granted(width, height int) {
	if !c.answer(cameraAnswer{granted: true, width: width, height: height}) {
		c.logger.Info("Unexpected camera grant, asking client to release it")
		c.out.sendJSON(&CameraReleaseMessage{BaseMessage: newBase(MessageTypeCameraRelease)})
	}
}

// Denied delivers a camera_denied answer
func (c *ClientCamera) Denied(reason string) {
	if !c.answer(cameraAnswer{reason: reason}) {
		c.logger.Debug("Ignoring camera denial without a pending request", zap.String("reason", reason))
	}
}

func (c *ClientCamera) answer(a cameraAnswer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return false
	}
	select {
	case c.pending <- a:
		return true
	default:
		return false
	}
}

// PushFrame stores an encoded frame as the latest one of the active stream
func (c *ClientCamera) PushFrame(data []byte) bool {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream == nil {
		return false
	}
	stream.push(data)
	return true
}

// Active reports whether a stream is currently held
func (c *ClientCamera) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

func (c *ClientCamera) detach(s *clientStream) {
	c.mu.Lock()
	if c.stream == s {
		c.stream = nil
	}
	c.mu.Unlock()
	c.out.sendJSON(&CameraReleaseMessage{BaseMessage: newBase(MessageTypeCameraRelease)})
}

type clientStream struct {
	camera *ClientCamera
	width  int
	height int

	mu      sync.Mutex
	latest  entities.Frame
	hasData bool
	seq     uint64

	releaseOnce sync.Once
}

func (s *clientStream) push(data []byte) {
	frame := entities.Frame{
		Timestamp: time.Now(),
		Width:     s.width,
		Height:    s.height,
		MIMEType:  http.DetectContentType(data),
		Data:      data,
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		frame.Width, frame.Height = cfg.Width, cfg.Height
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	frame.Seq = s.seq
	s.latest = frame
	s.hasData = true
}

func (s *clientStream) LatestFrame() (entities.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasData
}

func (s *clientStream) Release() error {
	s.releaseOnce.Do(func() {
		s.camera.detach(s)
	})
	return nil
}
