// Package models - discovery of detection model files and their fixed input geometry.
package models

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ModelFamily identifies the backend a model directory is loaded with.
type ModelFamily string

const (
	// ModelFamilyDarknet is a darknet .cfg + .weights pair loaded through OpenCV DNN.
	ModelFamilyDarknet ModelFamily = "darknet"
	// ModelFamilyONNX is a single .onnx graph loaded through onnxruntime.
	ModelFamilyONNX ModelFamily = "onnx"
)

// ModelPath describes the model files found in a directory.
type ModelPath struct {
	// Dir is the directory that was searched.
	Dir string `json:"dir" yaml:"dir"`
	// Family is the backend the files belong to.
	Family ModelFamily `json:"family" yaml:"family"`
	// ConfigPath is the darknet network definition (.cfg).
	ConfigPath string `json:"config_path" yaml:"config_path"`
	// WeightsPath is the darknet .weights file or the .onnx graph.
	WeightsPath string `json:"weights_path" yaml:"weights_path"`
	// NamesPath is the class name list (.names); optional for ONNX.
	NamesPath string `json:"names_path" yaml:"names_path"`
	// InputWidth and InputHeight are the network input size, when known.
	InputWidth  int `json:"input_width" yaml:"input_width"`
	InputHeight int `json:"input_height" yaml:"input_height"`
	// Found reports whether a complete set of files was located.
	Found bool `json:"found" yaml:"found"`
}

// FixedAspectRatio is the width / height the network expects, or 0 when the input
// size is unknown (no padding is applied then).
func (m ModelPath) FixedAspectRatio() float64 {
	if m.InputWidth <= 0 || m.InputHeight <= 0 {
		return 0
	}
	return float64(m.InputWidth) / float64(m.InputHeight)
}

// FindModel looks in dir for exactly one .cfg, .weights and .names file (darknet),
// or failing that exactly one .onnx file with an optional .names file.
//
// Arguments:
//   - dir: The model directory.
//
// Returns:
//   - ModelPath: The located files. Found is false when the set is incomplete or ambiguous.
//   - error: An error when the directory cannot be read or the .cfg cannot be parsed.
//
// @example
//
//	mp, err := models.FindModel("model")
//	if err != nil || !mp.Found {
//	    log.Printf("place one .cfg, .weights and .names file in %s", "model")
//	}
func FindModel(dir string) (ModelPath, error) {
	mp := ModelPath{Dir: dir}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return mp, errors.Wrapf(err, "read model directory %s", dir)
	}

	byExt := map[string][]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		byExt[ext] = append(byExt[ext], filepath.Join(dir, e.Name()))
	}
	for _, files := range byExt {
		sort.Strings(files)
	}

	single := func(ext string) string {
		if len(byExt[ext]) == 1 {
			return byExt[ext][0]
		}
		return ""
	}

	mp.NamesPath = single(".names")

	if cfg, weights := single(".cfg"), single(".weights"); cfg != "" && weights != "" {
		mp.Family = ModelFamilyDarknet
		mp.ConfigPath = cfg
		mp.WeightsPath = weights
		mp.InputWidth, mp.InputHeight, err = ReadDarknetInputSize(cfg)
		if err != nil {
			return mp, err
		}
		mp.Found = mp.NamesPath != ""
		return mp, nil
	}

	if onnx := single(".onnx"); onnx != "" {
		mp.Family = ModelFamilyONNX
		mp.WeightsPath = onnx
		mp.Found = true
	}
	return mp, nil
}

// ReadDarknetInputSize returns the width and height keys of the [net] section of a
// darknet .cfg file. Missing keys are returned as 0.
//
// Arguments:
//   - path: The .cfg file.
//
// Returns:
//   - int, int: The network input width and height.
//   - error: An error if the file cannot be read or a value is not an integer.
func ReadDarknetInputSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, errors.Wrap(err, "open darknet cfg")
	}
	defer f.Close()

	var width, height int
	inNet := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if i := strings.IndexAny(line, "#;"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") {
			section := strings.ToLower(strings.Trim(line, "[] "))
			if inNet {
				break
			}
			inNet = section == "net" || section == "network"
			continue
		}
		if !inNet {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key != "width" && key != "height" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, 0, errors.Wrapf(err, "parse %s in %s", key, path)
		}
		if key == "width" {
			width = n
		} else {
			height = n
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, errors.Wrapf(err, "read darknet cfg %s", path)
	}
	return width, height, nil
}
