package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
	"github.com/satriahrh/mirror-of-truth/internal/catalog"
	"github.com/satriahrh/mirror-of-truth/internal/config"
)

func runRoot(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("%v returned error: %v", args, err)
	}
	return out.String()
}

func TestCatalogCommand(t *testing.T) {
	out := runRoot(t, "catalog", "--json=false")
	for _, label := range []string{"happy", "disgusted", "neutral"} {
		if !strings.Contains(out, label) {
			t.Errorf("Expected %s in catalog output", label)
		}
	}
	if !strings.Contains(out, "😊") {
		t.Error("Expected emoji in catalog output")
	}
}

func TestCatalogCommandJSON(t *testing.T) {
	out := runRoot(t, "catalog", "--json")

	var entries []catalog.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("Output is not JSON: %v", err)
	}
	if len(entries) != len(entities.AllEmotions()) {
		t.Errorf("Expected %d entries, got %d", len(entities.AllEmotions()), len(entries))
	}
}

func TestMirrorConfig(t *testing.T) {
	mc := mirrorConfig(config.MirrorConfig{
		LiveInterval:   2 * time.Second,
		DemoInterval:   4 * time.Second,
		DetectTimeout:  time.Second,
		AcquireTimeout: 3 * time.Second,
	})
	if mc.LiveInterval != 2*time.Second || mc.DemoInterval != 4*time.Second {
		t.Errorf("Intervals not applied: %+v", mc)
	}
	if mc.DetectTimeout != time.Second || mc.AcquireTimeout != 3*time.Second {
		t.Errorf("Timeouts not applied: %+v", mc)
	}
}
