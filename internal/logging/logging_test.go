package logging

import (
	"testing"

	"go.uber.org/zap"
)

func TestNew_Levels(t *testing.T) {
	l, err := New("production", "warn")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.Core().Enabled(zap.InfoLevel) {
		t.Fatalf("info should be disabled at warn level")
	}
	if !l.Core().Enabled(zap.ErrorLevel) {
		t.Fatalf("error should be enabled")
	}

	dev, err := New("development", "")
	if err != nil {
		t.Fatalf("New dev: %v", err)
	}
	if !dev.Core().Enabled(zap.DebugLevel) {
		t.Fatalf("development logger should log debug")
	}
}

func TestNew_BadLevel(t *testing.T) {
	if _, err := New("development", "loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
