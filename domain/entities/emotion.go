package entities

import (
	"fmt"
	"math"
	"strings"
)

// EmotionLabel is one of the fixed mood categories the mirror recognizes
type EmotionLabel string

const (
	EmotionHappy     EmotionLabel = "happy"
	EmotionSad       EmotionLabel = "sad"
	EmotionAngry     EmotionLabel = "angry"
	EmotionSurprised EmotionLabel = "surprised"
	EmotionFearful   EmotionLabel = "fearful"
	EmotionDisgusted EmotionLabel = "disgusted"
	EmotionNeutral   EmotionLabel = "neutral"
)

var allEmotions = [...]EmotionLabel{
	EmotionHappy,
	EmotionSad,
	EmotionAngry,
	EmotionSurprised,
	EmotionFearful,
	EmotionDisgusted,
	EmotionNeutral,
}

// AllEmotions returns the closed label set in display order
func AllEmotions() []EmotionLabel {
	labels := make([]EmotionLabel, len(allEmotions))
	copy(labels, allEmotions[:])
	return labels
}

// Valid reports whether the label belongs to the closed set
func (l EmotionLabel) Valid() bool {
	for _, known := range allEmotions {
		if l == known {
			return true
		}
	}
	return false
}

// ParseEmotion maps a raw model label to an EmotionLabel
func ParseEmotion(raw string) (EmotionLabel, error) {
	label := EmotionLabel(strings.ToLower(strings.TrimSpace(raw)))
	if !label.Valid() {
		return "", fmt.Errorf("unknown emotion label %q", raw)
	}
	return label, nil
}

// DetectionResult is the argmax of a single face's expression scores
type DetectionResult struct {
	Label      EmotionLabel `json:"label"`
	Confidence float64      `json:"confidence"`
}

// Point is a facial landmark in frame pixel coordinates
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is a face bounding box in frame pixel coordinates
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FaceResult is one face reported by an expression detector
type FaceResult struct {
	Expressions map[string]float64 `json:"expressions"`
	Landmarks   []Point            `json:"landmarks,omitempty"`
	Box         *Box               `json:"box,omitempty"`
}

// Argmax returns the highest scoring known label of the face.
// Unknown labels and NaN scores are ignored; ties resolve to the label
// that comes first in AllEmotions.
func (f FaceResult) Argmax() (DetectionResult, bool) {
	best := DetectionResult{Confidence: -1}
	for _, label := range allEmotions {
		score, ok := f.Expressions[string(label)]
		if !ok || math.IsNaN(score) {
			continue
		}
		if score > best.Confidence {
			best = DetectionResult{Label: label, Confidence: score}
		}
	}
	if best.Label == "" {
		return DetectionResult{}, false
	}
	return best, true
}
