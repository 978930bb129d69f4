package detector

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
)

const defaultOpenAIModel = openai.ChatModelGPT4oMini

// OpenAIDetector implements ExpressionDetector using OpenAI chat completions
type OpenAIDetector struct {
	client *openai.Client
	logger *zap.Logger
	model  string
}

// NewOpenAIDetector creates a new OpenAI expression detector
func NewOpenAIDetector(apiKey, model string, logger *zap.Logger) (*OpenAIDetector, error) {
	if apiKey == "" {
		return nil, errors.New("openai API key is required")
	}
	if model == "" {
		model = string(defaultOpenAIModel)
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIDetector{
		client: &client,
		logger: logger,
		model:  model,
	}, nil
}

func (d *OpenAIDetector) Name() string {
	return d.model
}

// Initialize verifies the configured model is reachable
func (d *OpenAIDetector) Initialize(ctx context.Context) error {
	m, err := d.client.Models.Get(ctx, d.model)
	if err != nil {
		return fmt.Errorf("failed to load openai model %s: %w", d.model, err)
	}
	d.logger.Info("OpenAI model available", zap.String("model", m.ID), zap.String("ownedBy", m.OwnedBy))
	return nil
}

// Detect sends the downsized frame as a data URL and parses the reported faces
func (d *OpenAIDetector) Detect(ctx context.Context, frame entities.Frame) ([]entities.FaceResult, error) {
	data, scale, err := resizeFrame(frame.Data, maxImageSize)
	if err != nil {
		return nil, err
	}
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)

	messages := []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(detectPrompt),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
						openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
							URL:    imageURL,
							Detail: "low",
						}),
					},
				},
			},
		},
	}

	var lastErr error
	for range maxParseRetries {
		resp, err := d.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    d.model,
			Messages: messages,
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			},
			MaxTokens: openai.Int(400),
		})
		if err != nil {
			return nil, fmt.Errorf("OpenAI API error: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("no response from OpenAI")
		}

		content := resp.Choices[0].Message.Content
		faces, err := parseFaces(content, scale)
		if err != nil {
			lastErr = err
			d.logger.Debug("Retrying malformed OpenAI response", zap.Uint64("seq", frame.Seq), zap.Error(err))
			messages = append(messages,
				openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{
						Content: openai.ChatCompletionAssistantMessageParamContentUnion{
							OfString: openai.String(content),
						},
					},
				},
				openai.ChatCompletionMessageParamUnion{
					OfUser: &openai.ChatCompletionUserMessageParam{
						Content: openai.ChatCompletionUserMessageParamContentUnion{
							OfString: openai.String(fmt.Sprintf("JSON parse error: %v. Reply with the corrected JSON only.", err)),
						},
					},
				},
			)
			continue
		}
		return faces, nil
	}

	return nil, fmt.Errorf("openai returned invalid JSON after %d attempts: %w", maxParseRetries, lastErr)
}
