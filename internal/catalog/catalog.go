// Package catalog holds the static tip catalog shown by the mirror.
//
// The catalog is embedded at build time, parsed once and never mutated.
// Every label of the closed emotion set must be present; a missing or
// incomplete entry is a load error.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
)

//go:embed tips.yaml
var tipsYAML []byte

// Entry is the catalog data for one emotion
type Entry struct {
	Label       entities.EmotionLabel `json:"label" yaml:"-"`
	Emoji       string                `json:"emoji" yaml:"emoji"`
	Color       string                `json:"color" yaml:"color"`
	Badge       string                `json:"badge" yaml:"badge"`
	Description string                `json:"description" yaml:"description"`
	Tips        []string              `json:"tips" yaml:"tips"`

	background colorful.Color
}

type document struct {
	Emotions map[string]Entry `yaml:"emotions"`
}

// Catalog is an immutable, exhaustive emotion -> entry mapping
type Catalog struct {
	entries map[entities.EmotionLabel]*Entry
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog, parsed on first use
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Load(tipsYAML)
	})
	return defaultCatalog, defaultErr
}

// MustDefault returns the embedded catalog and panics if it is malformed
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic("failed to load embedded tip catalog: " + err.Error())
	}
	return c
}

// Load parses and validates catalog YAML
func Load(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}

	c := &Catalog{entries: make(map[entities.EmotionLabel]*Entry, len(doc.Emotions))}
	for key, entry := range doc.Emotions {
		label, err := entities.ParseEmotion(key)
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		if err := validateEntry(label, &entry); err != nil {
			return nil, err
		}
		entry.Label = label
		e := entry
		c.entries[label] = &e
	}

	var missing []error
	for _, label := range entities.AllEmotions() {
		if _, ok := c.entries[label]; !ok {
			missing = append(missing, fmt.Errorf("catalog: missing entry for %q", label))
		}
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}

	return c, nil
}

func validateEntry(label entities.EmotionLabel, entry *Entry) error {
	if len(entry.Tips) == 0 {
		return fmt.Errorf("catalog: %q has no tips", label)
	}
	for i, tip := range entry.Tips {
		if tip == "" {
			return fmt.Errorf("catalog: %q tip %d is empty", label, i)
		}
	}
	if entry.Emoji == "" {
		return fmt.Errorf("catalog: %q has no emoji", label)
	}
	bg, err := colorful.Hex(entry.Color)
	if err != nil {
		return fmt.Errorf("catalog: %q has invalid color %q: %w", label, entry.Color, err)
	}
	entry.background = bg
	return nil
}

// Entry returns the entry for label. Every valid label has one.
func (c *Catalog) Entry(label entities.EmotionLabel) (Entry, bool) {
	e, ok := c.entries[label]
	if !ok {
		return Entry{}, false
	}
	out := *e
	out.Tips = append([]string(nil), e.Tips...)
	return out, true
}

// Entries returns all entries in display order
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, label := range entities.AllEmotions() {
		e, _ := c.Entry(label)
		out = append(out, e)
	}
	return out
}

// Labels returns the catalogued labels in display order
func (c *Catalog) Labels() []entities.EmotionLabel {
	out := make([]entities.EmotionLabel, 0, len(c.entries))
	for _, label := range entities.AllEmotions() {
		if _, ok := c.entries[label]; ok {
			out = append(out, label)
		}
	}
	return out
}

// Tips returns the tip list of label
func (c *Catalog) Tips(label entities.EmotionLabel) []string {
	e, ok := c.entries[label]
	if !ok {
		return nil
	}
	return append([]string(nil), e.Tips...)
}

// PickTip draws a tip for label uniformly at random
func (c *Catalog) PickTip(label entities.EmotionLabel, rng *rand.Rand) string {
	e, ok := c.entries[label]
	if !ok || len(e.Tips) == 0 {
		return ""
	}
	return e.Tips[rng.IntN(len(e.Tips))]
}

// Contains reports whether tip belongs to label's list
func (c *Catalog) Contains(label entities.EmotionLabel, tip string) bool {
	e, ok := c.entries[label]
	if !ok {
		return false
	}
	for _, t := range e.Tips {
		if t == tip {
			return true
		}
	}
	return false
}

// Emoji returns the icon for label, falling back to the neutral icon
func (c *Catalog) Emoji(label entities.EmotionLabel) string {
	if e, ok := c.entries[label]; ok {
		return e.Emoji
	}
	return c.entries[entities.EmotionNeutral].Emoji
}

// TextColor derives a readable foreground for the label's background color
func (c *Catalog) TextColor(label entities.EmotionLabel) string {
	e, ok := c.entries[label]
	if !ok {
		e = c.entries[entities.EmotionNeutral]
	}
	h, _, _ := e.background.Hcl()
	return colorful.Hcl(h, 0.35, 0.3).Clamped().Hex()
}

// AccentColor is a saturated variant of the background used for bars and borders
func (c *Catalog) AccentColor(label entities.EmotionLabel) string {
	e, ok := c.entries[label]
	if !ok {
		e = c.entries[entities.EmotionNeutral]
	}
	h, _, _ := e.background.Hcl()
	return colorful.Hcl(h, 0.5, 0.6).Clamped().Hex()
}
