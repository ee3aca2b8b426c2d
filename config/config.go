// Package config - Application configuration loaded from YAML.
package config

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/yolodrop/controller"
	"github.com/nvr-ai/yolodrop/images"
	"github.com/nvr-ai/yolodrop/inference/detectors"
)

// Config represents the application configuration.
type Config struct {
	// ResultDir receives the annotated images and CSV files.
	ResultDir string `json:"result_dir" yaml:"result_dir"`

	// Confidence is the minimum detection score reported.
	Confidence float32 `json:"confidence" yaml:"confidence"`

	// AspectRatio overrides the detector input ratio when > 0; negative disables padding.
	AspectRatio float64 `json:"aspect_ratio" yaml:"aspect_ratio"`

	// JPEGQuality is used when saving JPEG results.
	JPEGQuality int `json:"jpeg_quality" yaml:"jpeg_quality"`

	// MaxCanvasPixels caps the letterbox canvas area; 0 uses the built-in limit.
	MaxCanvasPixels int `json:"max_canvas_pixels" yaml:"max_canvas_pixels"`

	// WatchDir, when set, is watched for dropped files after the arguments are processed.
	WatchDir string `json:"watch_dir" yaml:"watch_dir"`

	// Settle is the quiet period before a dropped file is processed.
	Settle time.Duration `json:"settle" yaml:"settle"`

	// Detector configures the detection backend.
	Detector detectors.Config `json:"detector" yaml:"detector"`
}

// Default returns the configuration used when no file is given.
//
// Returns:
//   - Config: result/ output, confidence 0.5, the detector's own aspect ratio.
func Default() Config {
	return Config{
		ResultDir:   "result",
		Confidence:  controller.DefaultConfidence,
		JPEGQuality: images.DefaultJPEGQuality,
		Settle:      controller.DefaultSettle,
		Detector:    detectors.DefaultConfig(),
	}
}

// Load reads a YAML file over Default. An empty path returns Default.
//
// Arguments:
//   - path: The YAML file, or "".
//
// Returns:
//   - Config: The merged configuration.
//   - error: An error if the file cannot be read, has unknown keys or fails Validate.
//
// @example
//
//	cfg, err := config.Load("yolodrop.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse %s", path)
	}
	return cfg, cfg.Validate()
}

// Parse decodes YAML into cfg, keeping the values of keys that are absent.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ResultDir == "" {
		return errors.New("result_dir is required")
	}
	if c.Confidence <= 0 || c.Confidence > 1 {
		return errors.Errorf("confidence must be in (0, 1], got %v", c.Confidence)
	}
	if math.IsNaN(c.AspectRatio) || math.IsInf(c.AspectRatio, 0) {
		return errors.Errorf("aspect_ratio must be finite, got %v", c.AspectRatio)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return errors.Errorf("jpeg_quality must be in [1, 100], got %d", c.JPEGQuality)
	}
	if c.MaxCanvasPixels < 0 {
		return errors.Errorf("max_canvas_pixels must not be negative, got %d", c.MaxCanvasPixels)
	}
	if c.WatchDir != "" && samePath(c.WatchDir, c.ResultDir) {
		return errors.Errorf("watch_dir must differ from result_dir %s: saved results would be processed again", c.ResultDir)
	}
	if c.Settle < 0 {
		return errors.Errorf("settle must not be negative, got %s", c.Settle)
	}
	return errors.Wrap(c.Detector.Validate(), "detector")
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
