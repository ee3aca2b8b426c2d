// Package controller - Runs dropped images through normalization, letterboxing, detection and saving.
package controller

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"time"

	"github.com/nvr-ai/yolodrop/annotate"
	"github.com/nvr-ai/yolodrop/common"
	"github.com/nvr-ai/yolodrop/images"
	"github.com/nvr-ai/yolodrop/inference/detectors"
	"github.com/nvr-ai/yolodrop/profiler"
	"github.com/nvr-ai/yolodrop/results"
)

// DefaultConfidence is the minimum score reported when none is configured.
const DefaultConfidence float32 = 0.5

// Saver persists an annotated image and its detections.
type Saver interface {
	Save(buf *images.Buffer, sourcePath string, detections []common.Detection) (results.Saved, error)
}

// FileResult is the outcome for one input file.
type FileResult struct {
	Path       string             `json:"path"`
	Detections []common.Detection `json:"detections"`
	Saved      results.Saved      `json:"saved"`
	Elapsed    time.Duration      `json:"elapsed"`
	Err        error              `json:"-"`
}

// Report summarizes a batch.
type Report struct {
	Processed int          `json:"processed"`
	Failed    int          `json:"failed"`
	Files     []FileResult `json:"files"`
}

// Controller processes image files one at a time.
type Controller struct {
	// Detector finds objects in the letterboxed image.
	Detector detectors.Detector
	// Saver writes the annotated results; nil skips saving.
	Saver Saver
	// Logger receives the per-file messages; nil logs to stderr.
	Logger *log.Logger
	// Confidence is the minimum detection score; <= 0 uses DefaultConfidence.
	Confidence float32
	// AspectRatio overrides the detector's input ratio when > 0. A negative value
	// disables letterboxing.
	AspectRatio float64
	// MaxCanvasPixels caps the letterbox canvas area; <= 0 uses images.MaxCanvasPixels.
	MaxCanvasPixels int
	// Profiler, when set, times each stage.
	Profiler *profiler.RuntimeProfiler
}

// New creates a controller.
//
// Arguments:
//   - detector: The detector to run.
//   - saver: The result writer, or nil.
//   - logger: The message sink, or nil for stderr.
//
// Returns:
//   - *Controller: The controller using DefaultConfidence and the detector's aspect ratio.
func New(detector detectors.Detector, saver Saver, logger *log.Logger) *Controller {
	return &Controller{
		Detector:   detector,
		Saver:      saver,
		Logger:     logger,
		Confidence: DefaultConfidence,
	}
}

func (c *Controller) logger() *log.Logger {
	if c.Logger == nil {
		c.Logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return c.Logger
}

// TargetRatio is the aspect ratio images are padded to before detection.
func (c *Controller) TargetRatio() float64 {
	if c.AspectRatio != 0 {
		return c.AspectRatio
	}
	return c.Detector.AspectRatio()
}

func (c *Controller) confidence() float32 {
	if c.Confidence <= 0 {
		return DefaultConfidence
	}
	return c.Confidence
}

// Process runs every path through ProcessFile in order. A failing file is logged and
// counted; the batch continues with the next one.
//
// Arguments:
//   - ctx: Stops the batch before the next file or stage when cancelled.
//   - paths: The image files.
//
// Returns:
//   - Report: The outcome of every file that was started.
//   - error: ctx.Err() when the batch was cancelled, nil otherwise.
func (c *Controller) Process(ctx context.Context, paths []string) (Report, error) {
	var report Report
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res := c.ProcessFile(ctx, path)
		report.Files = append(report.Files, res)
		if res.Err != nil {
			if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
				return report, res.Err
			}
			report.Failed++
			continue
		}
		report.Processed++
	}

	if len(report.Files) > 1 {
		c.logger().Print(Summarize(report.Files))
	}
	return report, nil
}

// ProcessFile loads, orients, pads, detects, annotates and saves one file.
//
// Arguments:
//   - ctx: Cancels between stages.
//   - path: The image file.
//
// Returns:
//   - FileResult: The detections and written paths, or Err describing the failed stage.
func (c *Controller) ProcessFile(ctx context.Context, path string) FileResult {
	lg := c.logger()
	lg.Print(path)

	res := FileResult{Path: path}
	fail := func(err error) FileResult {
		lg.Print(err.Error())
		res.Err = err
		return res
	}

	stop := c.Profiler.StartOperation("load")
	src, err := images.Load(path)
	stop()
	if err != nil {
		return fail(err)
	}
	defer src.Release()

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	stop = c.Profiler.StartOperation("pad")
	lb, err := images.PadWithOptions(src, images.PadOptions{Ratio: c.TargetRatio(), MaxPixels: c.MaxCanvasPixels})
	stop()
	if err != nil {
		return fail(err)
	}
	padded := lb.Buffer
	defer padded.Release()
	src.Release()

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	stop = c.Profiler.StartOperation("detect")
	start := time.Now()
	detections, err := c.Detector.Detect(ctx, padded, c.confidence())
	res.Elapsed = time.Since(start)
	stop()
	if err != nil {
		return fail(err)
	}
	res.Detections = detections

	stop = c.Profiler.StartOperation("draw")
	annotate.Draw(padded, detections, len(c.Detector.ClassNames()))
	stop()

	lg.Printf("%d object(s), %d ms", len(detections), res.Elapsed.Milliseconds())
	for _, d := range detections {
		lg.Print(d.String())
	}

	if c.Saver != nil {
		stop = c.Profiler.StartOperation("save")
		saved, err := c.Saver.Save(padded, path, detections)
		stop()
		if err != nil {
			return fail(err)
		}
		res.Saved = saved
	}
	return res
}

// Discard is a logger that drops every message.
var Discard = log.New(io.Discard, "", 0)
