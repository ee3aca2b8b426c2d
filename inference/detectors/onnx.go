package detectors

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/yolodrop/common"
	"github.com/nvr-ai/yolodrop/images"
	"github.com/nvr-ai/yolodrop/inference"
	"github.com/nvr-ai/yolodrop/models"
)

// ONNXDetector handles YOLOv8-layout ONNX model inference through onnxruntime.
type ONNXDetector struct {
	session      *inference.Session
	modelPath    string
	inputShape   image.Point
	anchors      int
	nmsThreshold float32
	names        []string
	mu           sync.Mutex
}

// NewONNX creates a new ONNX detector.
//
// Arguments:
//   - mp: The located model files; WeightsPath is the .onnx graph.
//   - cfg: The detector configuration.
//
// Returns:
//   - *ONNXDetector: The ONNX detector.
//   - error: An error if the names or the session cannot be loaded.
func NewONNX(mp models.ModelPath, cfg Config) (*ONNXDetector, error) {
	names, err := loadNames(mp)
	if err != nil {
		return nil, err
	}

	w, h := cfg.InputShape.X, cfg.InputShape.Y
	anchors := inference.AnchorCount(w, h)
	session, err := inference.NewSession(inference.SessionArgs{
		ModelPath:         mp.WeightsPath,
		SharedLibraryPath: cfg.SharedLibraryPath,
		InputName:         "images",
		OutputName:        "output0",
		InputShape:        ort.NewShape(1, 3, int64(h), int64(w)),
		OutputShape:       ort.NewShape(1, int64(4+len(names)), int64(anchors)),
		IntraOpThreads:    cfg.Threads,
		Provider:          cfg.Provider,
	})
	if err != nil {
		return nil, err
	}

	return &ONNXDetector{
		session:      session,
		modelPath:    mp.WeightsPath,
		inputShape:   cfg.InputShape,
		anchors:      anchors,
		nmsThreshold: cfg.NMSThreshold,
		names:        names,
	}, nil
}

// Detect runs inference on the input image.
//
// Arguments:
//   - ctx: Cancels the detection before inference starts.
//   - img: The image to detect objects in, ideally already letterboxed to AspectRatio.
//   - confidence: The minimum class score reported.
//
// Returns:
//   - []common.Detection: The detected objects in img coordinates.
//   - error: An error if the detection fails.
func (oe *ONNXDetector) Detect(ctx context.Context, img *images.Buffer, confidence float32) ([]common.Detection, error) {
	oe.mu.Lock()
	defer oe.mu.Unlock()

	if oe.session == nil {
		return nil, fmt.Errorf("model not loaded")
	}
	if img.Released() {
		return nil, fmt.Errorf("image buffer has been released")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := inference.PrepareInput(img.NRGBA, oe.session.Input.GetData(), oe.inputShape.X, oe.inputShape.Y); err != nil {
		return nil, fmt.Errorf("failed to prepare input: %w", err)
	}
	if err := oe.session.Run(); err != nil {
		return nil, fmt.Errorf("failed to run inference: %w", err)
	}

	detections := inference.DecodeYOLOv8(oe.session.Output.GetData(), len(oe.names), oe.anchors, inference.DecodeArgs{
		Names:       oe.names,
		Confidence:  confidence,
		ScaleX:      float32(img.Width()) / float32(oe.inputShape.X),
		ScaleY:      float32(img.Height()) / float32(oe.inputShape.Y),
		ImageWidth:  img.Width(),
		ImageHeight: img.Height(),
	})

	return common.ApplyNMS(detections, common.NMSConfig{IoUThreshold: oe.nmsThreshold}), nil
}

// ClassNames returns the model labels.
func (oe *ONNXDetector) ClassNames() []string {
	return oe.names
}

// AspectRatio returns the width / height of the network input.
func (oe *ONNXDetector) AspectRatio() float64 {
	return float64(oe.inputShape.X) / float64(oe.inputShape.Y)
}

// GetModelInfo returns information about the loaded model
func (oe *ONNXDetector) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"model_path":    oe.modelPath,
		"input_shape":   oe.inputShape,
		"nms_threshold": oe.nmsThreshold,
		"classes":       len(oe.names),
		"anchors":       oe.anchors,
	}
}

// WarmUp runs inference on a blank input to warm up the runtime.
//
// Arguments:
//   - runs: The number of times to run inference.
//
// Returns:
//   - error: An error if the warmup fails.
func (oe *ONNXDetector) WarmUp(runs int) error {
	blank := images.NewBuffer(oe.inputShape.X, oe.inputShape.Y)
	for i := 0; i < runs; i++ {
		if _, err := oe.Detect(context.Background(), blank, 1); err != nil {
			return err
		}
	}
	return nil
}

// Close releases resources
func (oe *ONNXDetector) Close() error {
	oe.mu.Lock()
	defer oe.mu.Unlock()

	if oe.session != nil {
		oe.session.Close()
		oe.session = nil
		log.Printf("🔒 ONNX detector closed")
	}
	return nil
}
