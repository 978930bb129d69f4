package presenter

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
	"github.com/satriahrh/mirror-of-truth/internal/catalog"
)

// Terminal prints views as text, one block per change
type Terminal struct {
	mu      sync.Mutex
	w       io.Writer
	catalog *catalog.Catalog
	last    *View
}

// NewTerminal creates a renderer writing to w
func NewTerminal(w io.Writer, c *catalog.Catalog) *Terminal {
	return &Terminal{w: w, catalog: c}
}

// Show renders state. Nothing is printed when the view did not change.
func (t *Terminal) Show(state entities.MirrorState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := Render(state, t.catalog)
	if t.last != nil && sameView(*t.last, v) {
		return nil
	}
	t.last = &v

	var b strings.Builder
	if v.Notice != "" {
		fmt.Fprintf(&b, "! %s\n", v.Notice)
	}

	if !v.ShowReading {
		fmt.Fprintf(&b, "[%s] %s\n", v.Mode, v.Status)
		_, err := io.WriteString(t.w, b.String())
		return err
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(&b),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(fmt.Sprintf("[%s] %s %-9s", v.Mode, v.Emoji, v.Label)),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetRenderBlankState(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
	)
	if err := bar.Set(v.ConfidencePercent); err != nil {
		return fmt.Errorf("failed to render confidence bar: %w", err)
	}
	b.WriteString("\n")

	if v.Status != "" {
		fmt.Fprintf(&b, "  %s\n", v.Status)
	}
	if v.Tip != nil {
		fmt.Fprintf(&b, "  %s: %s\n", v.Tip.Title, v.Tip.Text)
	}

	_, err := io.WriteString(t.w, b.String())
	return err
}

func sameView(a, b View) bool {
	if a.Mode != b.Mode || a.Label != b.Label || a.ConfidencePercent != b.ConfidencePercent ||
		a.Status != b.Status || a.Notice != b.Notice {
		return false
	}
	if (a.Tip == nil) != (b.Tip == nil) {
		return false
	}
	return a.Tip == nil || a.Tip.Text == b.Tip.Text
}
