// Package config holds the settings of the frame detection pipeline and
// loads them from YAML files.
//
// Example file:
//
//	detection:
//	  backend: native
//	  canny_low: 100
//	  canny_high: 300
//	  min_area_fraction: 0.25
//	calibration:
//	  enabled: true
//	  inset_fraction: 0.05
//	preview:
//	  mode: marker
//	  show_status: true
//	log_level: debug
//
// Fields missing from the file keep their defaults.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/filmreader/internal/imaging"
)

// Detection backends.
const (
	BackendNative = "native"
	BackendOpenCV = "opencv"
)

// Preview modes.
const (
	// ModeRaw returns the input frame without detection markings.
	ModeRaw = "raw"

	// ModeThresholded shows the edge map with the ROI outline.
	ModeThresholded = "thresholded"

	// ModeMarker shows the input frame with the detected quad and the ROI
	// outline.
	ModeMarker = "marker"
)

// maxInsetFraction keeps the inset calibrator from shrinking the ROI to
// nothing.
const maxInsetFraction = 0.45

// Config is the full pipeline configuration.
type Config struct {
	Detection   Detection   `yaml:"detection" json:"detection"`
	Calibration Calibration `yaml:"calibration" json:"calibration"`
	Preview     Preview     `yaml:"preview" json:"preview"`
	OCR         OCR         `yaml:"ocr" json:"ocr"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// Detection configures edge extraction and quad reduction.
type Detection struct {
	// Backend is "native" or "opencv".
	Backend string `yaml:"backend" json:"backend"`

	// CannyLow and CannyHigh are the hysteresis thresholds.
	CannyLow  float64 `yaml:"canny_low" json:"canny_low"`
	CannyHigh float64 `yaml:"canny_high" json:"canny_high"`

	// MinAreaFraction is the smallest share of the ROI a border must
	// enclose.
	MinAreaFraction float64 `yaml:"min_area_fraction" json:"min_area_fraction"`

	// Adaptive enables the local-mean threshold pass before edge detection.
	Adaptive bool `yaml:"adaptive" json:"adaptive"`
}

// Calibration configures ROI narrowing.
type Calibration struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// InsetFraction is the margin, per side, treated as distorted.
	InsetFraction float64 `yaml:"inset_fraction" json:"inset_fraction"`
}

// Preview configures what the output frame shows.
type Preview struct {
	Mode string `yaml:"mode" json:"mode"`

	// ShowStatus adds a one-line status text to the output.
	ShowStatus bool `yaml:"show_status" json:"show_status"`

	// Colours as "#RRGGBB" hex strings.
	LineColor string `yaml:"line_color" json:"line_color"`
	RectColor string `yaml:"rect_color" json:"rect_color"`
	TextColor string `yaml:"text_color" json:"text_color"`
}

// OCR configures the label reader stage.
type OCR struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Language is a Tesseract language code such as "eng".
	Language string `yaml:"language" json:"language"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Detection: Detection{
			Backend:         BackendNative,
			CannyLow:        imaging.DefaultCannyLow,
			CannyHigh:       imaging.DefaultCannyHigh,
			MinAreaFraction: 0.25,
		},
		Calibration: Calibration{
			InsetFraction: 0.05,
		},
		Preview: Preview{
			Mode:      ModeMarker,
			LineColor: "#FFFFFF",
			RectColor: "#FFFFFF",
			TextColor: "#FF0000",
		},
		OCR: OCR{
			Language: "eng",
		},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path on top of the defaults. An empty path or
// a missing file yields the defaults. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate fills empty fields with defaults, clamps numeric fields to their
// usable range and rejects unknown names and malformed colours.
func (c *Config) Validate() error {
	def := Default()

	switch c.Detection.Backend {
	case "":
		c.Detection.Backend = def.Detection.Backend
	case BackendNative, BackendOpenCV:
	default:
		return fmt.Errorf("unknown detection backend %q", c.Detection.Backend)
	}

	c.Detection.CannyLow = max(c.Detection.CannyLow, 0)
	c.Detection.CannyHigh = max(c.Detection.CannyHigh, c.Detection.CannyLow)
	c.Detection.MinAreaFraction = min(max(c.Detection.MinAreaFraction, 0), 1)
	c.Calibration.InsetFraction = min(max(c.Calibration.InsetFraction, 0), maxInsetFraction)

	switch c.Preview.Mode {
	case "":
		c.Preview.Mode = def.Preview.Mode
	case ModeRaw, ModeThresholded, ModeMarker:
	default:
		return fmt.Errorf("unknown preview mode %q", c.Preview.Mode)
	}

	for _, f := range []struct {
		value *string
		def   string
	}{
		{&c.Preview.LineColor, def.Preview.LineColor},
		{&c.Preview.RectColor, def.Preview.RectColor},
		{&c.Preview.TextColor, def.Preview.TextColor},
	} {
		if *f.value == "" {
			*f.value = f.def
		}
		if _, err := imaging.ParseColor(*f.value); err != nil {
			return err
		}
	}

	if c.OCR.Language == "" {
		c.OCR.Language = def.OCR.Language
	}

	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Colors returns the parsed preview colours for lines, rectangles and
// text.
func (p Preview) Colors() (line, rect, text color.RGBA, err error) {
	if line, err = imaging.ParseColor(p.LineColor); err != nil {
		return
	}
	if rect, err = imaging.ParseColor(p.RectColor); err != nil {
		return
	}
	text, err = imaging.ParseColor(p.TextColor)
	return
}
