package main

import (
	"errors"
	"testing"

	"ambisync/internal/config"
)

func stubScreenSize(t *testing.T, w, h int, err error) *[2]string {
	t.Helper()
	var asked [2]string
	orig := screenSize
	screenSize = func(backend, display string) (int, int, error) {
		asked = [2]string{backend, display}
		return w, h, err
	}
	t.Cleanup(func() { screenSize = orig })
	return &asked
}

func TestResolveSize_AsksConfiguredBackend(t *testing.T) {
	asked := stubScreenSize(t, 2560, 1440, nil)
	cfg := config.Default()
	cfg.Capture.Backend = "x11"
	cfg.Capture.Display = ":1"

	if err := resolveSize(cfg); err != nil {
		t.Fatalf("resolveSize: %v", err)
	}
	if *asked != [2]string{"x11", ":1"} {
		t.Errorf("expected size of x11 display :1, got %v", *asked)
	}
	if cfg.Capture.Width != 2560 || cfg.Capture.Height != 1440 {
		t.Errorf("expected 2560x1440, got %dx%d", cfg.Capture.Width, cfg.Capture.Height)
	}
}

func TestResolveSize_KeepsConfiguredDimension(t *testing.T) {
	stubScreenSize(t, 2560, 1440, nil)
	cfg := config.Default()
	cfg.Capture.Width = 800

	if err := resolveSize(cfg); err != nil {
		t.Fatalf("resolveSize: %v", err)
	}
	if cfg.Capture.Width != 800 || cfg.Capture.Height != 1440 {
		t.Errorf("expected 800x1440, got %dx%d", cfg.Capture.Width, cfg.Capture.Height)
	}
}

func TestResolveSize_SetSizeSkipsLookup(t *testing.T) {
	asked := stubScreenSize(t, 0, 0, errors.New("no display"))
	cfg := config.Default()
	cfg.Capture.Width, cfg.Capture.Height = 640, 480

	if err := resolveSize(cfg); err != nil {
		t.Fatalf("resolveSize: %v", err)
	}
	if *asked != [2]string{} {
		t.Errorf("expected no lookup, got %v", *asked)
	}
}

func TestResolveSize_LookupError(t *testing.T) {
	stubScreenSize(t, 0, 0, errors.New("no display"))
	if err := resolveSize(config.Default()); err == nil {
		t.Error("expected error when the screen size is unknown")
	}
}
