package entities

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestSessionCreation(t *testing.T) {
	session := NewMirrorSession(time.Hour)

	if session.ID == "" {
		t.Error("Expected session ID to be generated")
	}

	if session.IsExpired() {
		t.Error("Session should not be expired initially")
	}

	if got := session.ExpiresAt.Sub(session.CreatedAt); got != time.Hour {
		t.Errorf("Expected TTL of 1h, got %s", got)
	}

	session = NewMirrorSession(0)
	if got := session.ExpiresAt.Sub(session.CreatedAt); got != DefaultSessionTTL {
		t.Errorf("Expected default TTL %s, got %s", DefaultSessionTTL, got)
	}
}

func TestSessionExpiration(t *testing.T) {
	session := NewMirrorSession(time.Hour)
	session.ExpiresAt = time.Now().Add(-1 * time.Minute)
	if !session.IsExpired() {
		t.Error("Session should be expired when ExpiresAt is in the past")
	}
}

func TestMoodEntryValidation(t *testing.T) {
	state := MirrorState{
		Mode:       ModeLive,
		Emotion:    EmotionHappy,
		Confidence: 0.9,
		Tip:        "smile",
		UpdatedAt:  time.Now(),
	}

	entry := NewMoodEntry("session-1", state)
	if err := entry.Validate(); err != nil {
		t.Errorf("Valid entry should not have validation errors, got: %v", err)
	}
	if entry.ID == "" {
		t.Error("Expected entry ID to be generated")
	}

	entry.SessionID = ""
	if err := entry.Validate(); err == nil {
		t.Error("Entry with empty session ID should have validation error")
	}

	entry = NewMoodEntry("session-1", state)
	entry.Confidence = 1.5
	if err := entry.Validate(); err == nil {
		t.Error("Entry with confidence above 1 should have validation error")
	}

	entry = NewMoodEntry("session-1", NewMirrorState())
	if err := entry.Validate(); err == nil {
		t.Error("Entry recorded while off should have validation error")
	}
}

func TestSummarize(t *testing.T) {
	entries := []*MoodEntry{
		{SessionID: "s", Emotion: EmotionSad, Confidence: 0.5},
		{SessionID: "s", Emotion: EmotionHappy, Confidence: 0.7},
		{SessionID: "s", Emotion: EmotionHappy, Confidence: 0.9},
	}

	summary := Summarize("s", entries)
	if summary.Total != 3 {
		t.Errorf("Expected total 3, got %d", summary.Total)
	}
	if summary.Dominant != EmotionHappy {
		t.Errorf("Expected dominant happy, got %s", summary.Dominant)
	}
	if summary.Counts[EmotionHappy] != 2 || summary.Counts[EmotionSad] != 1 {
		t.Errorf("Unexpected counts: %v", summary.Counts)
	}
	if diff := summary.AvgConfidence - 0.7; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected average confidence 0.7, got %f", summary.AvgConfidence)
	}

	empty := Summarize("s", nil)
	if empty.Total != 0 || empty.Dominant != "" {
		t.Errorf("Expected empty summary, got %+v", empty)
	}
}

func TestArgmax(t *testing.T) {
	face := FaceResult{Expressions: map[string]float64{
		"happy":   0.9,
		"sad":     0.05,
		"neutral": 0.05,
		"smirk":   0.99,
	}}

	result, ok := face.Argmax()
	if !ok {
		t.Fatal("Expected a result")
	}
	if result.Label != EmotionHappy || result.Confidence != 0.9 {
		t.Errorf("Expected happy/0.9, got %s/%f", result.Label, result.Confidence)
	}

	tie := FaceResult{Expressions: map[string]float64{"neutral": 0.5, "sad": 0.5}}
	result, _ = tie.Argmax()
	if result.Label != EmotionSad {
		t.Errorf("Expected tie to resolve to sad, got %s", result.Label)
	}

	if _, ok := (FaceResult{}).Argmax(); ok {
		t.Error("Face without expressions should have no argmax")
	}
}

func TestParseEmotion(t *testing.T) {
	label, err := ParseEmotion(" Happy ")
	if err != nil || label != EmotionHappy {
		t.Errorf("Expected happy, got %s (%v)", label, err)
	}
	if _, err := ParseEmotion("bored"); err == nil {
		t.Error("Expected error for unknown label")
	}
	if len(AllEmotions()) != 7 {
		t.Errorf("Expected seven labels, got %d", len(AllEmotions()))
	}
}

func TestClassifyCameraError(t *testing.T) {
	tests := []struct {
		err  error
		kind CameraErrorKind
	}{
		{NewCameraError(CameraErrorDevice, nil), CameraErrorDevice},
		{fmt.Errorf("open: %w", os.ErrPermission), CameraErrorPermission},
		{fmt.Errorf("open: %w", os.ErrNotExist), CameraErrorDevice},
		{errors.New("boom"), CameraErrorUnknown},
	}

	for _, tt := range tests {
		if got := ClassifyCameraError(tt.err).Kind; got != tt.kind {
			t.Errorf("ClassifyCameraError(%v) = %s, want %s", tt.err, got, tt.kind)
		}
	}

	if ClassifyCameraError(nil) != nil {
		t.Error("Expected nil for nil error")
	}
	if ParseCameraErrorKind("busy") != CameraErrorUnknown {
		t.Error("Unknown reasons should map to unknown")
	}
}
