package detectors

import (
	"context"
	"log"

	"github.com/pkg/errors"

	"github.com/nvr-ai/yolodrop/common"
	"github.com/nvr-ai/yolodrop/images"
	"github.com/nvr-ai/yolodrop/models"
)

// Detector is the object detection capability the pipeline depends on.
type Detector interface {
	// Detect reports the objects in img scoring at least confidence, in img pixel
	// coordinates. img is only read.
	Detect(ctx context.Context, img *images.Buffer, confidence float32) ([]common.Detection, error)
	// ClassNames returns the labels the detector can report, in class index order.
	ClassNames() []string
	// AspectRatio is the width / height the network input expects; 0 when any ratio works.
	AspectRatio() float64
	// Close releases the model.
	Close() error
}

// ErrModelNotFound is returned by New when the model directory holds no usable model.
var ErrModelNotFound = errors.New("model files not found")

// New creates the detector selected by cfg.
//
// Arguments:
//   - cfg: The detector configuration.
//
// Returns:
//   - Detector: The loaded detector.
//   - error: ErrModelNotFound (wrapped) when no model files match, or a load error.
//
// @example
//
//	det, err := detectors.New(detectors.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer det.Close()
func New(cfg Config) (Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend == BackendNone {
		return Nop{}, nil
	}

	mp, err := models.FindModel(cfg.ModelDir)
	if err != nil {
		return nil, err
	}
	if !mp.Found {
		return nil, errors.Wrapf(ErrModelNotFound,
			"place one .cfg, .weights and .names file (or one .onnx file) in %s", cfg.ModelDir)
	}

	switch {
	case mp.Family == models.ModelFamilyDarknet && cfg.Backend != BackendONNX:
		log.Printf("📦 loading darknet model %s, %s, %s", mp.ConfigPath, mp.WeightsPath, mp.NamesPath)
		det, err := NewDarknet(mp, cfg)
		if err != nil {
			return nil, err
		}
		log.Printf("✅ darknet model loaded: %v", det.GetModelInfo())
		return det, nil
	case mp.Family == models.ModelFamilyONNX && cfg.Backend != BackendDarknet:
		log.Printf("📦 loading onnx model %s", mp.WeightsPath)
		det, err := NewONNX(mp, cfg)
		if err != nil {
			return nil, err
		}
		if err := det.WarmUp(1); err != nil {
			det.Close()
			return nil, errors.Wrap(err, "warm up onnx model")
		}
		log.Printf("✅ onnx model loaded: %v", det.GetModelInfo())
		return det, nil
	default:
		return nil, errors.Wrapf(ErrModelNotFound, "no %s model in %s", cfg.Backend, cfg.ModelDir)
	}
}

// Nop is a Detector that never reports anything.
type Nop struct{}

// Detect returns no detections, honoring cancellation.
func (Nop) Detect(ctx context.Context, _ *images.Buffer, _ float32) ([]common.Detection, error) {
	return nil, ctx.Err()
}

// ClassNames returns no labels.
func (Nop) ClassNames() []string { return nil }

// AspectRatio returns 0: no letterboxing is required.
func (Nop) AspectRatio() float64 { return 0 }

// Close does nothing.
func (Nop) Close() error { return nil }

func loadNames(mp models.ModelPath) ([]string, error) {
	if mp.NamesPath == "" {
		return models.COCOClasses, nil
	}
	return models.LoadClassNames(mp.NamesPath)
}
