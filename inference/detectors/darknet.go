package detectors

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/yolodrop/common"
	"github.com/nvr-ai/yolodrop/images"
	"github.com/nvr-ai/yolodrop/inference"
	"github.com/nvr-ai/yolodrop/models"
)

// DefaultDarknetInput is used when the .cfg does not declare the network size.
var DefaultDarknetInput = image.Point{X: 416, Y: 416}

// DarknetDetector runs darknet YOLO models through the OpenCV DNN module.
type DarknetDetector struct {
	net          gocv.Net
	outputNames  []string
	inputShape   image.Point
	nmsThreshold float32
	names        []string
	paths        models.ModelPath
	loaded       bool
	mu           sync.Mutex
}

// NewDarknet loads a .cfg/.weights/.names set.
//
// Arguments:
//   - mp: The located model files.
//   - cfg: The detector configuration.
//
// Returns:
//   - *DarknetDetector: The loaded detector.
//   - error: An error if the names or the network cannot be loaded.
func NewDarknet(mp models.ModelPath, cfg Config) (*DarknetDetector, error) {
	names, err := loadNames(mp)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNet(mp.WeightsPath, mp.ConfigPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to read darknet model %s, %s", mp.ConfigPath, mp.WeightsPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set target: %w", err)
	}

	var outputNames []string
	for _, id := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(id)
		outputNames = append(outputNames, layer.GetName())
		layer.Close()
	}

	input := image.Point{X: mp.InputWidth, Y: mp.InputHeight}
	if input.X <= 0 || input.Y <= 0 {
		input = DefaultDarknetInput
	}

	return &DarknetDetector{
		net:          net,
		outputNames:  outputNames,
		inputShape:   input,
		nmsThreshold: cfg.NMSThreshold,
		names:        names,
		paths:        mp,
		loaded:       true,
	}, nil
}

// Detect runs the network on img and returns NMS-filtered detections.
//
// Arguments:
//   - ctx: Cancels the detection before the forward pass starts.
//   - img: The image to detect objects in.
//   - confidence: The minimum class score reported.
//
// Returns:
//   - []common.Detection: The detected objects in img coordinates.
//   - error: An error if the detection fails.
func (d *DarknetDetector) Detect(ctx context.Context, img *images.Buffer, confidence float32) ([]common.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		return nil, fmt.Errorf("detector not initialized")
	}
	if img.Released() {
		return nil, fmt.Errorf("image buffer has been released")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img.NRGBA)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, d.inputShape, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	outputs := d.net.ForwardLayers(d.outputNames)
	defer func() {
		for i := range outputs {
			outputs[i].Close()
		}
	}()

	args := inference.DecodeArgs{
		Names:       d.names,
		Confidence:  confidence,
		ScaleX:      float32(img.Width()),
		ScaleY:      float32(img.Height()),
		ImageWidth:  img.Width(),
		ImageHeight: img.Height(),
	}

	var detections []common.Detection
	for _, out := range outputs {
		data, err := out.DataPtrFloat32()
		if err != nil {
			return nil, fmt.Errorf("failed to read output: %w", err)
		}
		detections = append(detections, inference.DecodeDarknet(data, out.Cols(), args)...)
	}

	return common.ApplyNMS(detections, common.NMSConfig{IoUThreshold: d.nmsThreshold}), nil
}

// ClassNames returns the labels from the .names file.
func (d *DarknetDetector) ClassNames() []string {
	return d.names
}

// AspectRatio returns the width / height declared in the .cfg.
func (d *DarknetDetector) AspectRatio() float64 {
	return float64(d.inputShape.X) / float64(d.inputShape.Y)
}

// GetModelInfo returns information about the loaded model
func (d *DarknetDetector) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"config_path":   d.paths.ConfigPath,
		"weights_path":  d.paths.WeightsPath,
		"names_path":    d.paths.NamesPath,
		"input_shape":   d.inputShape,
		"nms_threshold": d.nmsThreshold,
		"output_layers": d.outputNames,
		"classes":       len(d.names),
	}
}

// Close releases the network.
func (d *DarknetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		return nil
	}
	d.loaded = false
	log.Printf("🔒 darknet detector closed")
	return d.net.Close()
}
