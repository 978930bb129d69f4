package catalog

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
)

func TestDefaultCatalogIsComplete(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Failed to load embedded catalog: %v", err)
	}

	for _, label := range entities.AllEmotions() {
		entry, ok := c.Entry(label)
		if !ok {
			t.Errorf("Missing entry for %s", label)
			continue
		}
		if len(entry.Tips) != 5 {
			t.Errorf("Expected 5 tips for %s, got %d", label, len(entry.Tips))
		}
		if entry.Emoji == "" || entry.Description == "" || entry.Badge == "" {
			t.Errorf("Incomplete entry for %s: %+v", label, entry)
		}
		if entry.Label != label {
			t.Errorf("Expected entry label %s, got %s", label, entry.Label)
		}
	}

	if got := len(c.Entries()); got != 7 {
		t.Errorf("Expected 7 entries, got %d", got)
	}
}

func TestPickTipIsMemberOfList(t *testing.T) {
	c := MustDefault()
	rng := rand.New(rand.NewPCG(1, 2))

	for _, label := range entities.AllEmotions() {
		for i := 0; i < 50; i++ {
			tip := c.PickTip(label, rng)
			if !c.Contains(label, tip) {
				t.Fatalf("Tip %q is not in the list for %s", tip, label)
			}
		}
	}
}

func TestPickTipCoversAllTips(t *testing.T) {
	c := MustDefault()
	rng := rand.New(rand.NewPCG(7, 7))

	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		seen[c.PickTip(entities.EmotionSad, rng)] = true
	}
	if len(seen) != len(c.Tips(entities.EmotionSad)) {
		t.Errorf("Expected all %d sad tips to be drawn, got %d", len(c.Tips(entities.EmotionSad)), len(seen))
	}
}

func TestLoadRejectsIncompleteCatalog(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing labels",
			yaml:    "emotions:\n  happy:\n    emoji: x\n    color: \"#FFFFFF\"\n    tips: [\"a\"]\n",
			wantErr: "missing entry",
		},
		{
			name:    "unknown label",
			yaml:    "emotions:\n  bored:\n    emoji: x\n    color: \"#FFFFFF\"\n    tips: [\"a\"]\n",
			wantErr: "unknown emotion label",
		},
		{
			name:    "empty tips",
			yaml:    "emotions:\n  happy:\n    emoji: x\n    color: \"#FFFFFF\"\n    tips: []\n",
			wantErr: "has no tips",
		},
		{
			name:    "bad color",
			yaml:    "emotions:\n  happy:\n    emoji: x\n    color: yellow\n    tips: [\"a\"]\n",
			wantErr: "invalid color",
		},
		{
			name:    "malformed yaml",
			yaml:    "emotions: [",
			wantErr: "failed to unmarshal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLabelsFollowDisplayOrder(t *testing.T) {
	got := MustDefault().Labels()
	want := entities.AllEmotions()
	if len(got) != len(want) {
		t.Fatalf("Expected %d labels, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Label %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestEntryReturnsCopy(t *testing.T) {
	c := MustDefault()
	entry, _ := c.Entry(entities.EmotionHappy)
	entry.Tips[0] = "mutated"

	if c.Contains(entities.EmotionHappy, "mutated") {
		t.Error("Catalog should not be mutated through a returned entry")
	}
}

func TestColors(t *testing.T) {
	c := MustDefault()
	for _, label := range entities.AllEmotions() {
		if fg := c.TextColor(label); !strings.HasPrefix(fg, "#") || len(fg) != 7 {
			t.Errorf("Unexpected text color %q for %s", fg, label)
		}
		if accent := c.AccentColor(label); !strings.HasPrefix(accent, "#") || len(accent) != 7 {
			t.Errorf("Unexpected accent color %q for %s", accent, label)
		}
	}
	if c.Emoji("bogus") != c.Emoji(entities.EmotionNeutral) {
		t.Error("Unknown labels should fall back to the neutral emoji")
	}
}
