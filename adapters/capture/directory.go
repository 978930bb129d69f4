// Package capture provides cameras that do not need a browser.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
	"github.com/satriahrh/mirror-of-truth/domain/repositories"
)

var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// DirectoryCamera replays the images of a directory as a video stream.
// Only one stream may be held at a time.
type DirectoryCamera struct {
	dir string

	mu     sync.Mutex
	active *directoryStream
}

// NewDirectoryCamera creates a camera reading frames from dir
func NewDirectoryCamera(dir string) *DirectoryCamera {
	return &DirectoryCamera{dir: dir}
}

// Acquire lists the frames of the directory. A missing or empty directory is
// a device error, an unreadable one a permission error.
func (c *DirectoryCamera) Acquire(ctx context.Context, constraints repositories.Constraints) (repositories.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, entities.NewCameraError(entities.CameraErrorUnknown, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return nil, entities.NewCameraError(entities.CameraErrorDevice, errors.New("camera is already in use"))
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, entities.ClassifyCameraError(fmt.Errorf("failed to open %s: %w", c.dir, err))
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			files = append(files, filepath.Join(c.dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, entities.NewCameraError(entities.CameraErrorDevice, fmt.Errorf("no images in %s", c.dir))
	}
	slices.Sort(files)

	c.active = &directoryStream{
		camera:      c,
		files:       files,
		constraints: constraints,
	}
	return c.active, nil
}

func (c *DirectoryCamera) release(s *directoryStream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == s {
		c.active = nil
	}
}

type directoryStream struct {
	camera      *DirectoryCamera
	files       []string
	constraints repositories.Constraints

	mu       sync.Mutex
	next     int
	seq      uint64
	released bool
}

// LatestFrame reads the next image, wrapping around at the end
func (s *directoryStream) LatestFrame() (entities.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return entities.Frame{}, false
	}

	for range len(s.files) {
		path := s.files[s.next]
		s.next = (s.next + 1) % len(s.files)

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		width, height := s.constraints.Width, s.constraints.Height
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			width, height = cfg.Width, cfg.Height
		}

		s.seq++
		return entities.Frame{
			Seq:       s.seq,
			Timestamp: time.Now(),
			Width:     width,
			Height:    height,
			MIMEType:  imageExtensions[strings.ToLower(filepath.Ext(path))],
			Data:      data,
		}, true
	}
	return entities.Frame{}, false
}

func (s *directoryStream) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	s.mu.Unlock()

	s.camera.release(s)
	return nil
}
