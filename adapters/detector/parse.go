package detector

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
)

//go:embed prompts/detect_expressions.txt
var detectPrompt string

// maxImageSize is the longest edge sent to a hosted model
const maxImageSize = 512

type faceResponse struct {
	Faces []struct {
		Expressions map[string]float64 `json:"expressions"`
		Landmarks   []entities.Point   `json:"landmarks"`
		Box         *entities.Box      `json:"box"`
	} `json:"faces"`
}

// parseFaces decodes a model response into face results. Labels are
// lower-cased, NaN scores dropped and the rest clamped to [0, 1]. Boxes and
// landmarks are scaled by scale to map them back onto the original frame.
func parseFaces(content string, scale float64) ([]entities.FaceResult, error) {
	content = stripCodeFence(content)

	var resp faceResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse faces JSON: %w", err)
	}

	faces := make([]entities.FaceResult, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		face := entities.FaceResult{
			Expressions: make(map[string]float64, len(f.Expressions)),
		}
		if len(f.Landmarks) > 0 {
			face.Landmarks = make([]entities.Point, len(f.Landmarks))
			for i, p := range f.Landmarks {
				face.Landmarks[i] = entities.Point{X: p.X * scale, Y: p.Y * scale}
			}
		}
		for label, score := range f.Expressions {
			if math.IsNaN(score) {
				continue
			}
			face.Expressions[strings.ToLower(strings.TrimSpace(label))] = math.Max(0, math.Min(1, score))
		}
		if f.Box != nil {
			face.Box = &entities.Box{
				X:      f.Box.X * scale,
				Y:      f.Box.Y * scale,
				Width:  f.Box.Width * scale,
				Height: f.Box.Height * scale,
			}
		}
		faces = append(faces, face)
	}
	return faces, nil
}

// stripCodeFence removes a markdown fence some models wrap JSON in
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
