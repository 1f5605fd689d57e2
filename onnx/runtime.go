// Package onnx runs YOLOv8 models exported to the ONNX format with ONNX
// Runtime.
package onnx

import (
	"errors"
	"fmt"
	"github.com/swdee/go-yolocam"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"sync"
)

// Options configure the ONNX Runtime
type Options struct {
	// SharedLibraryPath is the location of the onnxruntime shared library,
	// when empty the platform default name is used
	SharedLibraryPath string
	// UseCUDA tries the CUDA execution provider first, falling back to the
	// CPU when it is not available
	UseCUDA bool
	// DeviceID is the CUDA device to run on
	DeviceID int
	// IntraOpThreads sets the number of threads used within an operator,
	// zero leaves the ONNX Runtime default
	IntraOpThreads int
	// Logger receives provider selection messages, may be nil
	Logger *zap.SugaredLogger
}

var (
	envOnce sync.Once
	envErr  error
)

// initEnvironment loads the shared library and creates the global ONNX
// Runtime environment once for the process
func initEnvironment(libPath string) error {

	envOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}

		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}

		envErr = ort.InitializeEnvironment()
	})

	return envErr
}

// Runtime is a yolocam.Runtime backed by an ONNX Runtime session
type Runtime struct {
	session    *ort.DynamicAdvancedSession
	modelFile  string
	inputName  string
	outputName string
	inputShape yolocam.Shape
	outputType ort.TensorElementDataType
	provider   string
}

// NewRuntime loads the model file into a new session.  Failures are returned
// as a *yolocam.ModelLoadError.
func NewRuntime(modelFile string, opts Options) (*Runtime, error) {

	log := opts.Logger

	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if err := initEnvironment(opts.SharedLibraryPath); err != nil {
		return nil, &yolocam.ModelLoadError{
			Path: modelFile,
			Err:  fmt.Errorf("error initializing onnxruntime: %w", err),
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelFile)

	if err != nil {
		return nil, &yolocam.ModelLoadError{Path: modelFile, Err: err}
	}

	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, &yolocam.ModelLoadError{
			Path: modelFile,
			Err: fmt.Errorf("model has %d inputs and %d outputs, expected one of each",
				len(inputs), len(outputs)),
		}
	}

	r := &Runtime{
		modelFile:  modelFile,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
		inputShape: yolocam.Shape(inputs[0].Dimensions).Clone(),
		outputType: outputs[0].DataType,
	}

	switch r.outputType {
	case ort.TensorElementDataTypeFloat, ort.TensorElementDataTypeFloat16:
	default:
		return nil, &yolocam.ModelLoadError{
			Path: modelFile,
			Err:  fmt.Errorf("unsupported output data type %v", r.outputType),
		}
	}

	r.session, r.provider, err = newSession(modelFile, r.inputName, r.outputName, opts, log)

	if err != nil {
		return nil, &yolocam.ModelLoadError{Path: modelFile, Err: err}
	}

	log.Infow("loaded model", "file", modelFile, "provider", r.provider,
		"input", r.inputName, "shape", r.inputShape.String(), "output", r.outputName)

	return r, nil
}

// newSession creates the session, on the CUDA provider when asked for and
// available, otherwise on the CPU
func newSession(modelFile, input, output string, opts Options,
	log *zap.SugaredLogger) (*ort.DynamicAdvancedSession, string, error) {

	if opts.UseCUDA {
		session, err := createSession(modelFile, input, output, opts, true)

		if err == nil {
			return session, "cuda", nil
		}

		log.Warnw("CUDA provider unavailable, using CPU", "error", err)
	}

	session, err := createSession(modelFile, input, output, opts, false)

	if err != nil {
		return nil, "", err
	}

	return session, "cpu", nil
}

func createSession(modelFile, input, output string, opts Options,
	cuda bool) (*ort.DynamicAdvancedSession, error) {

	options, err := ort.NewSessionOptions()

	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}

	defer options.Destroy()

	if opts.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("error setting intra op threads: %w", err)
		}
	}

	if cuda {
		cudaOpts, err := ort.NewCUDAProviderOptions()

		if err != nil {
			return nil, fmt.Errorf("error creating CUDA options: %w", err)
		}

		defer cudaOpts.Destroy()

		err = cudaOpts.Update(map[string]string{
			"device_id": fmt.Sprintf("%d", opts.DeviceID),
		})

		if err != nil {
			return nil, fmt.Errorf("error setting CUDA options: %w", err)
		}

		if err := options.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			return nil, fmt.Errorf("error appending CUDA provider: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelFile,
		[]string{input}, []string{output}, options)

	if err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return session, nil
}

// InputShape returns the model input shape, dynamic dimensions are -1
func (r *Runtime) InputShape() yolocam.Shape {
	return r.inputShape.Clone()
}

// Provider returns the name of the execution provider in use
func (r *Runtime) Provider() string {
	return r.provider
}

// Inference runs the model on the input tensor
func (r *Runtime) Inference(input *yolocam.Tensor) (*yolocam.Tensor, error) {

	if r.session == nil {
		return nil, errors.New("runtime is closed")
	}

	in, err := ort.NewTensor(ort.Shape(input.Shape.Clone()), input.Data)

	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	defer in.Destroy()

	// the session allocates the output
	outputs := []ort.Value{nil}

	if err := r.session.Run([]ort.Value{in}, outputs); err != nil {
		return nil, fmt.Errorf("error running session: %w", err)
	}

	defer outputs[0].Destroy()

	return toTensor(outputs[0])
}

// toTensor copies an ONNX Runtime output value into a float32 tensor
func toTensor(v ort.Value) (*yolocam.Tensor, error) {

	shape := yolocam.Shape(v.GetShape()).Clone()

	switch t := v.(type) {
	case *ort.Tensor[float32]:
		data := make([]float32, len(t.GetData()))
		copy(data, t.GetData())
		return yolocam.NewTensor(shape, data)

	case *ort.CustomDataTensor:
		data, err := yolocam.Float16ToFloat32(t.GetData())

		if err != nil {
			return nil, err
		}

		return yolocam.NewTensor(shape, data)

	default:
		return nil, fmt.Errorf("unsupported output value %T", v)
	}
}

// Close destroys the session
func (r *Runtime) Close() error {

	if r.session == nil {
		return nil
	}

	err := r.session.Destroy()
	r.session = nil

	return err
}
