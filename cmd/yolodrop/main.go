// Command yolodrop runs YOLO object detection on dropped image files and saves annotated
// copies with a CSV of the detections.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvr-ai/yolodrop/config"
	"github.com/nvr-ai/yolodrop/controller"
	"github.com/nvr-ai/yolodrop/inference/detectors"
	"github.com/nvr-ai/yolodrop/profiler"
	"github.com/nvr-ai/yolodrop/results"
	"github.com/nvr-ai/yolodrop/util"
)

func main() {
	var (
		configPath  string
		modelDir    string
		resultDir   string
		confidence  float64
		aspectRatio float64
		backend     string
		watchDir    string
		profile     bool
		quiet       bool
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML configuration file")
	flag.StringVar(&modelDir, "model-dir", "", "Directory holding the .cfg/.weights/.names or .onnx model")
	flag.StringVar(&resultDir, "result-dir", "", "Output directory for annotated images and CSV files")
	flag.Float64Var(&confidence, "confidence", 0, "Object detection confidence threshold")
	flag.Float64Var(&aspectRatio, "aspect-ratio", 0, "Pad images to this width/height ratio (default: the model input ratio, <0 disables)")
	flag.StringVar(&backend, "detector", "", "Detector backend: auto, darknet, onnx or none")
	flag.StringVar(&watchDir, "watch", "", "Watch this directory for dropped images after processing the arguments")
	flag.BoolVar(&profile, "profile", false, "Print per-stage timings on exit")
	flag.BoolVar(&quiet, "quiet", false, "Suppress per-file log output")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] files-or-directories...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model-dir":
			cfg.Detector.ModelDir = modelDir
		case "result-dir":
			cfg.ResultDir = resultDir
		case "confidence":
			cfg.Confidence = float32(confidence)
		case "aspect-ratio":
			cfg.AspectRatio = aspectRatio
		case "detector":
			cfg.Detector.Backend = detectors.Backend(backend)
		case "watch":
			cfg.WatchDir = watchDir
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	if flag.NArg() == 0 && cfg.WatchDir == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(cfg, flag.Args(), profile, quiet); err != nil {
		log.Fatal(err)
	}
}

func run(cfg config.Config, args []string, profile, quiet bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	det, err := detectors.New(cfg.Detector)
	if err != nil {
		return err
	}
	defer det.Close()

	logger := log.Default()
	if quiet {
		logger = controller.Discard
	}
	c := controller.New(det, results.NewWriter(cfg.ResultDir, cfg.JPEGQuality), logger)
	c.Confidence = cfg.Confidence
	c.AspectRatio = cfg.AspectRatio
	c.MaxCanvasPixels = cfg.MaxCanvasPixels
	if profile {
		c.Profiler = profiler.NewRuntimeProfiler(profiler.ProfilingOptions{})
		defer c.Profiler.WriteReport(os.Stderr)
	}

	log.Printf("🚀 %d classes, aspect ratio %.4f, confidence %.2f, results in %s",
		len(det.ClassNames()), c.TargetRatio(), c.Confidence, cfg.ResultDir)

	paths, err := util.ExpandInputs(args)
	if err != nil {
		return err
	}
	report, err := c.Process(ctx, paths)
	if err != nil {
		return err
	}
	if len(paths) > 0 {
		log.Printf("✅ %d processed, %d failed", report.Processed, report.Failed)
	}

	if cfg.WatchDir == "" {
		return nil
	}
	if err := os.MkdirAll(cfg.WatchDir, 0o755); err != nil {
		return err
	}
	w, err := controller.NewWatcher(cfg.WatchDir, c)
	if err != nil {
		return err
	}
	defer w.Close()
	w.Settle = cfg.Settle

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
