// Package detectors - Object detector backends behind a single capability interface.
package detectors

import (
	"image"

	"github.com/pkg/errors"

	"github.com/nvr-ai/yolodrop/inference/providers"
)

// Backend selects the detector implementation.
type Backend string

const (
	// BackendAuto picks darknet or ONNX from the files in the model directory.
	BackendAuto Backend = "auto"
	// BackendDarknet loads a .cfg/.weights/.names set through OpenCV DNN.
	BackendDarknet Backend = "darknet"
	// BackendONNX loads a YOLOv8-layout .onnx graph through onnxruntime.
	BackendONNX Backend = "onnx"
	// BackendNone never detects anything; images are still normalized, padded and saved.
	BackendNone Backend = "none"
)

// Config represents the detector configuration.
type Config struct {
	// Backend selects the implementation.
	Backend Backend `json:"backend" yaml:"backend"`

	// ModelDir holds the model files.
	ModelDir string `json:"model_dir" yaml:"model_dir"`

	// InputShape is the ONNX network input (width, height). Darknet reads it from the .cfg.
	InputShape image.Point `json:"input_shape" yaml:"input_shape"`

	// NMSThreshold controls Non-Maximum Suppression IoU threshold
	NMSThreshold float32 `json:"nms_threshold" yaml:"nms_threshold"`

	// SharedLibraryPath is the onnxruntime shared library (ONNX only).
	SharedLibraryPath string `json:"shared_library_path" yaml:"shared_library_path"`

	// Threads sizes the onnxruntime intra-op pool; 0 uses the default.
	Threads int `json:"threads" yaml:"threads"`

	// Provider selects the onnxruntime execution provider (ONNX only).
	Provider providers.Config `json:"provider" yaml:"provider"`
}

// DefaultConfig returns the configuration used when nothing is specified.
//
// Returns:
//   - Config: Darknet/ONNX auto-detection in ./model with a 640x640 ONNX input.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendAuto,
		ModelDir:     "model",
		InputShape:   image.Point{X: 640, Y: 640},
		NMSThreshold: 0.4,
	}
}

// Validate checks the configuration for values no backend can use.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendDarknet, BackendONNX, BackendNone:
	default:
		return errors.Errorf("unknown detector backend %q", c.Backend)
	}
	if c.NMSThreshold < 0 || c.NMSThreshold > 1 {
		return errors.Errorf("nms_threshold must be in [0, 1], got %v", c.NMSThreshold)
	}
	if c.Backend != BackendNone && c.ModelDir == "" {
		return errors.New("model_dir is required")
	}
	if c.InputShape.X < 32 || c.InputShape.Y < 32 || c.InputShape.X%32 != 0 || c.InputShape.Y%32 != 0 {
		return errors.Errorf("input_shape must be positive multiples of 32, got %dx%d", c.InputShape.X, c.InputShape.Y)
	}
	return c.Provider.Validate()
}
