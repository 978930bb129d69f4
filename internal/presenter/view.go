// Package presenter turns a mirror state into what the user sees.
// Rendering is a pure function of the state and the catalog.
package presenter

import (
	"fmt"
	"math"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
	"github.com/satriahrh/mirror-of-truth/internal/catalog"
)

const gridSize = 6

const (
	StatusIdle      = "Start your mirror to begin emotion detection"
	StatusPreparing = "Preparing AI models..."
	StatusScanning  = "Looking for your face..."
	StatusNoFace    = "No face in view"
	StatusDemo      = "Demo mode: moods are simulated"
)

var noticeByKind = map[entities.CameraErrorKind]string{
	entities.CameraErrorPermission: "Camera access was denied. Showing demo mode instead.",
	entities.CameraErrorDevice:     "No camera is available or it is in use. Showing demo mode instead.",
	entities.CameraErrorUnknown:    "The camera could not be started. Showing demo mode instead.",
}

// title capitalises a label. A Caser must not be shared between goroutines.
func title(s string) string {
	return cases.Title(language.English).String(s)
}

// View is the rendered mirror
type View struct {
	Mode        entities.Mode `json:"mode"`
	ShowReading bool          `json:"show_reading"`
	CameraOn    bool          `json:"camera_on"`

	Emoji       string `json:"emoji"`
	Label       string `json:"label"`
	BadgeClass  string `json:"badge_class"`
	BadgeColor  string `json:"badge_color"`
	AccentColor string `json:"accent_color"`
	Description string `json:"description"`

	ConfidencePercent int    `json:"confidence_percent"`
	BarWidth          string `json:"bar_width"`

	Tip    *TipCard   `json:"tip,omitempty"`
	Grid   []GridCell `json:"grid"`
	Status string     `json:"status,omitempty"`
	Notice string     `json:"notice,omitempty"`
}

// TipCard is shown only while a tip is set
type TipCard struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// GridCell is one tile of the emotion grid
type GridCell struct {
	Label  entities.EmotionLabel `json:"label"`
	Title  string                `json:"title"`
	Emoji  string                `json:"emoji"`
	Active bool                  `json:"active"`
}

// Render builds the view for state
func Render(state entities.MirrorState, c *catalog.Catalog) View {
	entry, ok := c.Entry(state.Emotion)
	if !ok {
		entry, _ = c.Entry(entities.EmotionNeutral)
	}

	percent := int(math.Round(clamp01(state.Confidence) * 100))
	v := View{
		Mode:        state.Mode,
		ShowReading: state.Mode == entities.ModeLive || state.Mode == entities.ModeDemo,
		CameraOn:    state.CameraActive,

		Emoji:       entry.Emoji,
		Label:       title(string(entry.Label)),
		BadgeClass:  entry.Badge,
		BadgeColor:  c.TextColor(entry.Label),
		AccentColor: c.AccentColor(entry.Label),
		Description: entry.Description,

		ConfidencePercent: percent,
		BarWidth:          fmt.Sprintf("%d%%", percent),

		Grid:   grid(state.Emotion, c),
		Status: status(state),
	}

	if state.HasTip() {
		v.Tip = &TipCard{Title: "Mood Tip", Text: state.Tip}
	}
	if state.LastError != "" {
		v.Notice = noticeByKind[entities.ParseCameraErrorKind(state.LastError)]
	}
	return v
}

func grid(active entities.EmotionLabel, c *catalog.Catalog) []GridCell {
	labels := entities.AllEmotions()[:gridSize]
	cells := make([]GridCell, 0, len(labels))
	for _, label := range labels {
		cells = append(cells, GridCell{
			Label:  label,
			Title:  title(string(label)),
			Emoji:  c.Emoji(label),
			Active: label == active,
		})
	}
	return cells
}

func status(state entities.MirrorState) string {
	switch state.Mode {
	case entities.ModeOff:
		return StatusIdle
	case entities.ModeAwaitingModels:
		return StatusPreparing
	case entities.ModeLive:
		if !state.Scanned {
			return StatusScanning
		}
		if !state.FacePresent {
			return StatusNoFace
		}
	case entities.ModeDemo:
		return StatusDemo
	}
	return ""
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
