package config

import (
	"bytes"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg != Default() {
		t.Error("Validate changed a valid default config")
	}
	if cfg.Detection.MinAreaFraction != 0.25 {
		t.Errorf("MinAreaFraction: got %v, want 0.25", cfg.Detection.MinAreaFraction)
	}
	if cfg.Preview.Mode != ModeMarker {
		t.Errorf("Mode: got %q, want %q", cfg.Preview.Mode, ModeMarker)
	}
}

func TestValidate_FillsAndClamps(t *testing.T) {
	cfg := Config{
		Detection: Detection{
			CannyLow:        -5,
			CannyHigh:       -10,
			MinAreaFraction: 3,
		},
		Calibration: Calibration{InsetFraction: 0.9},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Detection.Backend != BackendNative {
		t.Errorf("Backend: got %q", cfg.Detection.Backend)
	}
	if cfg.Detection.CannyLow != 0 || cfg.Detection.CannyHigh != 0 {
		t.Errorf("Canny thresholds: got %v/%v, want 0/0", cfg.Detection.CannyLow, cfg.Detection.CannyHigh)
	}
	if cfg.Detection.MinAreaFraction != 1 {
		t.Errorf("MinAreaFraction: got %v, want 1", cfg.Detection.MinAreaFraction)
	}
	if cfg.Calibration.InsetFraction != maxInsetFraction {
		t.Errorf("InsetFraction: got %v, want %v", cfg.Calibration.InsetFraction, maxInsetFraction)
	}
	if cfg.Preview.Mode != ModeMarker || cfg.Preview.TextColor != "#FF0000" {
		t.Errorf("preview defaults not filled: %+v", cfg.Preview)
	}
	if cfg.OCR.Language != "eng" || cfg.LogLevel != "info" {
		t.Errorf("defaults not filled: %q %q", cfg.OCR.Language, cfg.LogLevel)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"backend", func(c *Config) { c.Detection.Backend = "cuda" }, "backend"},
		{"mode", func(c *Config) { c.Preview.Mode = "fancy" }, "preview mode"},
		{"color", func(c *Config) { c.Preview.LineColor = "white" }, "invalid color"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filmreader.yaml")
	data := `
detection:
  canny_low: 50
  adaptive: true
calibration:
  enabled: true
preview:
  mode: thresholded
  rect_color: "#00FF00"
log_level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Detection.CannyLow != 50 || !cfg.Detection.Adaptive {
		t.Errorf("detection not loaded: %+v", cfg.Detection)
	}
	if cfg.Detection.CannyHigh != 300 || cfg.Detection.MinAreaFraction != 0.25 {
		t.Errorf("missing fields should keep defaults: %+v", cfg.Detection)
	}
	if !cfg.Calibration.Enabled || cfg.Calibration.InsetFraction != 0.05 {
		t.Errorf("calibration: %+v", cfg.Calibration)
	}
	if cfg.Preview.Mode != ModeThresholded || cfg.Preview.RectColor != "#00FF00" {
		t.Errorf("preview: %+v", cfg.Preview)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel: got %q", cfg.LogLevel)
	}
}

func TestLoad_MissingAndEmpty(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "absent.yaml")} {
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q) failed: %v", path, err)
		}
		if cfg != Default() {
			t.Errorf("Load(%q) should return defaults", path)
		}
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("detection: [unclosed"), 0o644)
	if _, err := Load(bad); err == nil {
		t.Error("Load should fail on malformed YAML")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	os.WriteFile(invalid, []byte("preview:\n  mode: sepia\n"), 0o644)
	if _, err := Load(invalid); err == nil {
		t.Error("Load should fail on an unknown preview mode")
	}
}

func TestPreviewColors(t *testing.T) {
	line, rect, text, err := Default().Preview.Colors()
	if err != nil {
		t.Fatalf("Colors failed: %v", err)
	}
	white := color.RGBA{255, 255, 255, 255}
	if line != white || rect != white {
		t.Errorf("line/rect: got %v %v, want white", line, rect)
	}
	if text != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("text: got %v, want red", text)
	}

	p := Default().Preview
	p.TextColor = "nope"
	if _, _, _, err := p.Colors(); err == nil {
		t.Error("Colors should fail on a malformed colour")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"trace", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error: got %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewLogger_EnvOverride(t *testing.T) {
	t.Setenv(LogLevelEnv, "error")

	var buf bytes.Buffer
	cfg := Default()
	cfg.LogLevel = "debug"
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Error("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message logged despite error level from environment")
	}
	if !strings.Contains(out, "shown") {
		t.Error("error message missing")
	}
}

func TestNewLogger_ConfigLevel(t *testing.T) {
	t.Setenv(LogLevelEnv, "")

	var buf bytes.Buffer
	cfg := Default()
	cfg.LogLevel = "debug"
	cfg.NewLogger(&buf).Debug("details", "frame", 3)

	if !strings.Contains(buf.String(), "frame=3") {
		t.Errorf("debug message missing: %q", buf.String())
	}
}
