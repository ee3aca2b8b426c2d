// Package providers - onnxruntime execution provider selection.
package providers

import (
	"fmt"
	"log"
	"strconv"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend represents different ONNX Runtime execution providers.
type ProviderBackend string

const (
	// CPUProviderBackend is the default onnxruntime CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"

	// CUDAProviderBackend uses NVIDIA CUDA for GPU acceleration.
	CUDAProviderBackend ProviderBackend = "cuda"

	// CoreMLProviderBackend uses Apple CoreML for macOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"

	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// Config selects the execution provider appended to a session.
type Config struct {
	// Backend specifies the provider; empty means CPU.
	Backend ProviderBackend `json:"backend" yaml:"backend"`

	// DeviceID selects the device for CUDA and OpenVINO.
	DeviceID int `json:"device_id" yaml:"device_id"`

	// Options are passed through to the provider. See:
	// https://onnxruntime.ai/docs/execution-providers/
	Options map[string]string `json:"options" yaml:"options"`

	// Fallback continues on CPU when the provider cannot be enabled.
	Fallback bool `json:"fallback" yaml:"fallback"`
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch c.Backend {
	case "", CPUProviderBackend, CUDAProviderBackend, CoreMLProviderBackend, OpenVINOProviderBackend:
		return nil
	default:
		return errors.Errorf("unsupported execution provider: %s", c.Backend)
	}
}

// Apply appends the configured execution provider to the session options.
//
// Arguments:
//   - options: The session options to configure.
//
// Returns:
//   - error: An error if the provider could not be enabled and Fallback is false.
//
// @example
//
//	options, _ := ort.NewSessionOptions()
//	defer options.Destroy()
//	if err := providers.Config{Backend: providers.CoreMLProviderBackend}.Apply(options); err != nil {
//	    return err
//	}
func (c Config) Apply(options *ort.SessionOptions) error {
	if err := c.Validate(); err != nil {
		return err
	}

	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return errors.Wrap(err, "set graph optimization level")
	}

	var err error
	switch c.Backend {
	case "", CPUProviderBackend:
		return nil
	case CoreMLProviderBackend:
		err = options.AppendExecutionProviderCoreML(0)
	case OpenVINOProviderBackend:
		err = options.AppendExecutionProviderOpenVINO(c.openVINOOptions())
	case CUDAProviderBackend:
		err = c.appendCUDA(options)
	}
	if err == nil {
		return nil
	}
	if c.Fallback {
		log.Printf("⚠️ %s provider unavailable, falling back to cpu: %v", c.Backend, err)
		return nil
	}
	return errors.Wrapf(err, "error enabling %s", c.Backend)
}

func (c Config) openVINOOptions() map[string]string {
	opts := map[string]string{"device_id": strconv.Itoa(c.DeviceID)}
	for k, v := range c.Options {
		opts[k] = v
	}
	return opts
}

func (c Config) appendCUDA(options *ort.SessionOptions) error {
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return err
	}
	defer cuda.Destroy()

	opts := map[string]string{"device_id": fmt.Sprintf("%d", c.DeviceID)}
	for k, v := range c.Options {
		opts[k] = v
	}
	if err := cuda.Update(opts); err != nil {
		return err
	}
	return options.AppendExecutionProviderCUDA(cuda)
}
