// Package config loads the mirror settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Detector providers
const (
	DetectorMock   = "mock"
	DetectorGemini = "gemini"
	DetectorOpenAI = "openai"
)

type Config struct {
	Server     ServerConfig
	Auth       AuthConfig
	Log        LogConfig
	Detector   DetectorConfig
	Mirror     MirrorConfig
	History    HistoryConfig
	ElevenLabs ElevenLabsConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// Addr returns host:port for the listener
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

type DetectorConfig struct {
	Provider     string // mock, gemini or openai
	GeminiAPIKey string
	GeminiModel  string
	OpenAIToken  string
	OpenAIModel  string
	InitTimeout  time.Duration
	MockSeed     uint64
}

type MirrorConfig struct {
	LiveInterval   time.Duration
	DemoInterval   time.Duration
	DetectTimeout  time.Duration
	AcquireTimeout time.Duration
}

type HistoryConfig struct {
	MongoURI        string // empty keeps history in memory
	MongoDatabase   string
	Retention       time.Duration
	CleanupInterval time.Duration
}

type ElevenLabsConfig struct {
	APIKey       string // empty disables narration
	APIBaseURL   string
	VoiceID      string
	ModelID      string
	OutputFormat string
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func envUint(key string, defaultVal uint64) uint64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n
	}
	return defaultVal
}

// envDuration accepts Go duration strings such as "1s" or "500ms"
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envString("HOST", "0.0.0.0"),
			Port: envInt("PORT", 8080),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			TokenTTL:  envDuration("SESSION_TTL", 12*time.Hour),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
		Detector: DetectorConfig{
			Provider:     strings.ToLower(envString("DETECTOR", DetectorMock)),
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
			GeminiModel:  os.Getenv("GEMINI_MODEL"),
			OpenAIToken:  os.Getenv("OPENAI_TOKEN"),
			OpenAIModel:  os.Getenv("OPENAI_MODEL"),
			InitTimeout:  envDuration("MODEL_INIT_TIMEOUT", 30*time.Second),
			MockSeed:     envUint("MOCK_SEED", 0),
		},
		Mirror: MirrorConfig{
			LiveInterval:   envDuration("LIVE_INTERVAL", time.Second),
			DemoInterval:   envDuration("DEMO_INTERVAL", 3*time.Second),
			DetectTimeout:  envDuration("DETECT_TIMEOUT", 5*time.Second),
			AcquireTimeout: envDuration("CAMERA_TIMEOUT", 15*time.Second),
		},
		History: HistoryConfig{
			MongoURI:        os.Getenv("MONGODB_URI"),
			MongoDatabase:   envString("MONGODB_DATABASE", "mirror_of_truth"),
			Retention:       envDuration("HISTORY_RETENTION", 30*24*time.Hour),
			CleanupInterval: envDuration("HISTORY_CLEANUP_INTERVAL", 30*time.Minute),
		},
		ElevenLabs: ElevenLabsConfig{
			APIKey:       os.Getenv("ELEVEN_LABS_API_KEY"),
			APIBaseURL:   os.Getenv("ELEVEN_LABS_API_BASE_URL"),
			VoiceID:      os.Getenv("ELEVEN_LABS_VOICE_ID"),
			ModelID:      os.Getenv("ELEVEN_LABS_MODEL_ID"),
			OutputFormat: os.Getenv("ELEVEN_LABS_OUTPUT_FORMAT"),
		},
	}
}

// Validate checks that the selected providers have their credentials
func (c *Config) Validate() error {
	var errs []error
	switch c.Detector.Provider {
	case DetectorMock:
	case DetectorGemini:
		if c.Detector.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini detector"))
		}
	case DetectorOpenAI:
		if c.Detector.OpenAIToken == "" {
			errs = append(errs, errors.New("OPENAI_TOKEN is required for the openai detector"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown detector %q (want mock, gemini or openai)", c.Detector.Provider))
	}

	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// NarrationEnabled reports whether tip narration is configured
func (c *Config) NarrationEnabled() bool {
	return c.ElevenLabs.APIKey != ""
}
