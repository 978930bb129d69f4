package detector

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"
	maxParseRetries    = 3
)

// GeminiDetector implements ExpressionDetector using Google's Gemini API
type GeminiDetector struct {
	client *genai.Client
	logger *zap.Logger
	model  string
}

// NewGeminiDetector creates a new Gemini expression detector
func NewGeminiDetector(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiDetector, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiDetector{
		client: client,
		logger: logger,
		model:  model,
	}, nil
}

func (d *GeminiDetector) Name() string {
	return d.model
}

// Initialize verifies the configured model is reachable
func (d *GeminiDetector) Initialize(ctx context.Context) error {
	m, err := d.client.Models.Get(ctx, d.model, nil)
	if err != nil {
		return fmt.Errorf("failed to load gemini model %s: %w", d.model, err)
	}
	d.logger.Info("Gemini model available", zap.String("model", m.Name), zap.String("displayName", m.DisplayName))
	return nil
}

// Detect sends the downsized frame to Gemini and parses the reported faces
func (d *GeminiDetector) Detect(ctx context.Context, frame entities.Frame) ([]entities.FaceResult, error) {
	data, scale, err := resizeFrame(frame.Data, maxImageSize)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: detectPrompt},
				{InlineData: &genai.Blob{Data: data, MIMEType: "image/jpeg"}},
			},
		},
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	var lastErr error
	for range maxParseRetries {
		result, err := d.client.Models.GenerateContent(ctx, d.model, contents, config)
		if err != nil {
			return nil, fmt.Errorf("gemini API error: %w", err)
		}

		content := result.Text()
		if content == "" {
			return nil, errors.New("no response from Gemini")
		}

		faces, err := parseFaces(content, scale)
		if err != nil {
			lastErr = err
			d.logger.Debug("Retrying malformed Gemini response", zap.Uint64("seq", frame.Seq), zap.Error(err))
			contents = append(contents,
				&genai.Content{Role: "model", Parts: []*genai.Part{{Text: content}}},
				&genai.Content{Role: "user", Parts: []*genai.Part{{Text: fmt.Sprintf("JSON parse error: %v. Reply with the corrected JSON only.", err)}}},
			)
			continue
		}
		return faces, nil
	}

	return nil, fmt.Errorf("gemini returned invalid JSON after %d attempts: %w", maxParseRetries, lastErr)
}
