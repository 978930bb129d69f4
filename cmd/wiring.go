package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/mirror-of-truth/adapters"
	"github.com/satriahrh/mirror-of-truth/adapters/detector"
	"github.com/satriahrh/mirror-of-truth/adapters/mongo"
	"github.com/satriahrh/mirror-of-truth/adapters/tts"
	"github.com/satriahrh/mirror-of-truth/domain/repositories"
	"github.com/satriahrh/mirror-of-truth/internal/config"
	"github.com/satriahrh/mirror-of-truth/internal/mirror"
	"github.com/satriahrh/mirror-of-truth/usecase"
)

// newDetector selects the expression detector named by the config
func newDetector(ctx context.Context, cfg config.DetectorConfig, logger *zap.Logger) (repositories.ExpressionDetector, error) {
	switch cfg.Provider {
	case config.DetectorGemini:
		return detector.NewGeminiDetector(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	case config.DetectorOpenAI:
		return detector.NewOpenAIDetector(cfg.OpenAIToken, cfg.OpenAIModel, logger)
	case config.DetectorMock:
		return detector.NewMockDetector(cfg.MockSeed), nil
	default:
		return nil, fmt.Errorf("unknown detector %q", cfg.Provider)
	}
}

// newGate wraps the configured detector and starts loading it
func newGate(ctx context.Context, cfg config.DetectorConfig, logger *zap.Logger) (*detector.Gate, error) {
	d, err := newDetector(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}
	gate := detector.NewGate(d, cfg.InitTimeout, logger)
	gate.Start(ctx)
	logger.Info("Loading expression detector", zap.String("detector", d.Name()))
	return gate, nil
}

// newHistory returns the MongoDB store when configured, the in-memory one otherwise.
// The returned func releases the store.
func newHistory(ctx context.Context, cfg config.HistoryConfig, logger *zap.Logger) (repositories.MoodHistoryRepository, func(context.Context), error) {
	if cfg.MongoURI == "" {
		logger.Info("Keeping mood history in memory")
		return adapters.NewMemoryMoodHistory(), func(context.Context) {}, nil
	}

	client, err := mongo.NewClient(ctx, mongo.ClientOptions{URI: cfg.MongoURI, Database: cfg.MongoDatabase}, logger)
	if err != nil {
		return nil, nil, err
	}
	repo := mongo.NewMoodRepository(client.Database, logger)
	if err := repo.EnsureIndexes(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, nil, fmt.Errorf("failed to create mood history indexes: %w", err)
	}
	return repo, func(ctx context.Context) { _ = client.Close(ctx) }, nil
}

// newNarrator returns nil when ElevenLabs is not configured
func newNarrator(cfg config.ElevenLabsConfig, logger *zap.Logger) (*usecase.TipNarrator, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	speech, err := tts.NewElevenLabsTTS(tts.ElevenLabsConfig{
		APIKey:       cfg.APIKey,
		APIBaseURL:   cfg.APIBaseURL,
		VoiceID:      cfg.VoiceID,
		ModelID:      cfg.ModelID,
		OutputFormat: cfg.OutputFormat,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create text to speech: %w", err)
	}
	return usecase.NewTipNarrator(speech, logger), nil
}

func mirrorConfig(cfg config.MirrorConfig) mirror.Config {
	mc := mirror.DefaultConfig()
	mc.LiveInterval = cfg.LiveInterval
	mc.DemoInterval = cfg.DemoInterval
	mc.DetectTimeout = cfg.DetectTimeout
	mc.AcquireTimeout = cfg.AcquireTimeout
	return mc
}
