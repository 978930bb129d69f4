package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
	"github.com/satriahrh/mirror-of-truth/domain/repositories"
	"github.com/satriahrh/mirror-of-truth/internal/catalog"
	"github.com/satriahrh/mirror-of-truth/internal/mirror"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// ErrSessionNotFound is returned when a session has no recorded history
var ErrSessionNotFound = errors.New("session not found")

// MirrorService wires mirror controllers and serves mood history
type MirrorService struct {
	catalog   *catalog.Catalog
	detection mirror.Detection
	history   repositories.MoodHistoryRepository
	cfg       mirror.Config
	seed      uint64
	created   atomic.Uint64
	logger    *zap.Logger
}

// NewMirrorService creates a new mirror service. A zero seed picks a random
// one for every controller.
func NewMirrorService(
	c *catalog.Catalog,
	detection mirror.Detection,
	history repositories.MoodHistoryRepository,
	cfg mirror.Config,
	seed uint64,
	logger *zap.Logger,
) *MirrorService {
	return &MirrorService{
		catalog:   c,
		detection: detection,
		history:   history,
		cfg:       cfg,
		seed:      seed,
		logger:    logger,
	}
}

// NewController builds a controller for sessionID reading from camera.
// The caller runs it.
func (s *MirrorService) NewController(sessionID string, camera repositories.Camera) *mirror.Controller {
	n := s.created.Add(1)
	var src rand.Source
	if s.seed == 0 {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	} else {
		src = rand.NewPCG(s.seed, n)
	}

	s.logger.Debug("Creating mirror controller", zap.String("sessionID", sessionID))
	machine := mirror.NewStateMachine(s.catalog, rand.New(src))
	return mirror.NewController(sessionID, machine, camera, s.detection, s.history, s.cfg, s.logger)
}

// History returns the newest entries of a session
func (s *MirrorService) History(ctx context.Context, sessionID string, limit int) ([]*entities.MoodEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	entries, err := s.history.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list mood history: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrSessionNotFound
	}
	return entries, nil
}

// Summary aggregates the history of a session
func (s *MirrorService) Summary(ctx context.Context, sessionID string) (entities.MoodSummary, error) {
	summary, err := s.history.SummaryBySession(ctx, sessionID)
	if err != nil {
		return entities.MoodSummary{}, fmt.Errorf("failed to summarize mood history: %w", err)
	}
	if summary.Total == 0 {
		return entities.MoodSummary{}, ErrSessionNotFound
	}
	return summary, nil
}
