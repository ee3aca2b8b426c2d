// Package inference - onnxruntime sessions and tensor plumbing for YOLO graphs.
package inference

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/yolodrop/inference/providers"
)

// SharedLibraryEnv overrides the onnxruntime shared library location.
const SharedLibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// Session represents a model session from the onnxruntime.
type Session struct {
	Session *ort.AdvancedSession
	Input   *ort.Tensor[float32]
	Output  *ort.Tensor[float32]
}

// SessionArgs are the arguments to NewSession.
type SessionArgs struct {
	// ModelPath is the .onnx graph.
	ModelPath string
	// SharedLibraryPath is the onnxruntime library; empty selects SharedLibPath("").
	SharedLibraryPath string
	// InputName and OutputName are the graph tensor names ("images" / "output0" for YOLOv8).
	InputName  string
	OutputName string
	// InputShape is [1, 3, H, W]; OutputShape is [1, 4+classes, anchors].
	InputShape  ort.Shape
	OutputShape ort.Shape
	// IntraOpThreads and InterOpThreads size the runtime thread pools; 0 uses the default.
	IntraOpThreads int
	InterOpThreads int
	// Provider selects the execution provider; the zero value runs on CPU.
	Provider providers.Config
}

var envMu sync.Mutex

// SharedLibPath returns the path to the shared library for the current platform.
//
// Arguments:
//   - override: A configured path; used when not empty.
//
// Returns:
//   - string: The path to the shared library.
func SharedLibPath(override string) string {
	if override != "" {
		return override
	}
	if p := os.Getenv(SharedLibraryEnv); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "windows":
		return "third_party/onnxruntime.dll"
	case "darwin":
		return "third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.so"
		}
		return "third_party/onnxruntime.so"
	}
}

// initEnvironment loads the shared library once per process.
func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if _, err := os.Stat(libPath); err != nil {
		return fmt.Errorf("ONNX Runtime library not found at %s: %w", libPath, err)
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("error initializing ORT environment: %w", err)
	}
	return nil
}

// NewSession creates an onnxruntime session with pre-allocated input and output tensors.
//
// Arguments:
//   - args: The session arguments.
//
// Returns:
//   - *Session: The session.
//   - error: An error if the library, the tensors or the session cannot be created.
func NewSession(args SessionArgs) (*Session, error) {
	if _, err := os.Stat(args.ModelPath); err != nil {
		return nil, errors.Wrap(err, "model file not found")
	}
	if err := initEnvironment(SharedLibPath(args.SharedLibraryPath)); err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](args.InputShape)
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](args.OutputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("error creating ORT session options: %w", err)
	}
	defer options.Destroy()

	if args.IntraOpThreads > 0 {
		options.SetIntraOpNumThreads(args.IntraOpThreads)
	}
	if args.InterOpThreads > 0 {
		options.SetInterOpNumThreads(args.InterOpThreads)
	}
	if err := args.Provider.Apply(options); err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, err
	}

	session, err := ort.NewAdvancedSession(
		args.ModelPath,
		[]string{args.InputName},
		[]string{args.OutputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("error creating ORT session: %w", err)
	}

	return &Session{
		Session: session,
		Input:   inputTensor,
		Output:  outputTensor,
	}, nil
}

// Run executes the graph on the current input tensor contents.
func (s *Session) Run() error {
	if s.Session == nil {
		return errors.New("session is closed")
	}
	return errors.Wrap(s.Session.Run(), "run onnx session")
}

// Close releases the resources associated with the Session.
//
// Returns:
//   - No return values.
func (s *Session) Close() {
	if s.Input != nil {
		s.Input.Destroy()
		s.Input = nil
	}
	if s.Output != nil {
		s.Output.Destroy()
		s.Output = nil
	}
	if s.Session != nil {
		s.Session.Destroy()
		s.Session = nil
	}
}
