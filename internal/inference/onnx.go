package inference

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/ironsheep/label-ocr-mcp/internal/errs"
	"github.com/ironsheep/label-ocr-mcp/internal/logging"
	"github.com/ironsheep/label-ocr-mcp/internal/tensor"
)

var (
	ortOnce sync.Once
	ortErr  error
)

// ONNXOptions configures the ONNX Runtime backend.
type ONNXOptions struct {
	// SharedLibraryPath locates the onnxruntime shared library. Empty uses
	// the runtime's platform default.
	SharedLibraryPath string

	// ModelDir holds "<name>.onnx" files.
	ModelDir string

	IntraOpThreads int
	InterOpThreads int
}

// ONNXLoader loads models from ModelDir with ONNX Runtime.
type ONNXLoader struct {
	opts ONNXOptions
}

// NewONNXLoader initializes the ONNX Runtime environment (once per
// process) and returns a loader.
func NewONNXLoader(opts ONNXOptions) (*ONNXLoader, error) {
	ortOnce.Do(func() {
		if opts.SharedLibraryPath != "" {
			ort.SetSharedLibraryPath(opts.SharedLibraryPath)
		}
		ortErr = ort.InitializeEnvironment()
	})
	if ortErr != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", ortErr)
	}
	return &ONNXLoader{opts: opts}, nil
}

// ModelPath returns the file a model name resolves to.
func (l *ONNXLoader) ModelPath(name string) string {
	return filepath.Join(l.opts.ModelDir, name+".onnx")
}

// Load implements Loader.
func (l *ONNXLoader) Load(name string, in, out Shape) (Engine, error) {
	path := l.ModelPath(name)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to find model %s: %w", name, err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model info for %s: %w", name, err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, fmt.Errorf("model %s has %d inputs and %d outputs: %w", name, len(inputs), len(outputs), errs.ErrModelShapeMismatch)
	}

	inShape, err := Resolve(Shape(inputs[0].Dimensions), in)
	if err != nil {
		return nil, fmt.Errorf("model %s input: %w", name, err)
	}
	outShape, err := Resolve(Shape(outputs[0].Dimensions), out)
	if err != nil {
		return nil, fmt.Errorf("model %s output: %w", name, err)
	}
	if !inShape.IsStatic() {
		return nil, fmt.Errorf("model %s input %v is not fully specified: %w", name, inShape, errs.ErrModelShapeMismatch)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	if err := l.applyThreads(options); err != nil {
		options.Destroy()
		return nil, fmt.Errorf("failed to configure session for %s: %w", name, err)
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, options)
	if err != nil {
		options.Destroy()
		return nil, fmt.Errorf("failed to create session for %s: %w", name, err)
	}

	logging.Named("inference").Infow("model loaded",
		"model", name, "input", inShape.String(), "output", outShape.String())

	return &onnxEngine{
		name:    name,
		in:      inShape,
		out:     outShape,
		session: session,
		options: options,
	}, nil
}

// threadSetter is the part of the session options that takes thread counts.
type threadSetter interface {
	SetIntraOpNumThreads(n int) error
	SetInterOpNumThreads(n int) error
}

// applyThreads sets the configured thread counts. Zero keeps the runtime
// default.
func (l *ONNXLoader) applyThreads(options threadSetter) error {
	if l.opts.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(l.opts.IntraOpThreads); err != nil {
			return fmt.Errorf("intra-op threads %d: %w", l.opts.IntraOpThreads, err)
		}
	}
	if l.opts.InterOpThreads > 0 {
		if err := options.SetInterOpNumThreads(l.opts.InterOpThreads); err != nil {
			return fmt.Errorf("inter-op threads %d: %w", l.opts.InterOpThreads, err)
		}
	}
	return nil
}

type onnxEngine struct {
	name    string
	in, out Shape
	session *ort.DynamicAdvancedSession
	options *ort.SessionOptions
}

func (e *onnxEngine) InputShape() Shape  { return e.in }
func (e *onnxEngine) OutputShape() Shape { return e.out }

func (e *onnxEngine) Run(ctx context.Context, input []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CheckInput(e.in, input); err != nil {
		return nil, err
	}
	values, err := tensor.DecodeFloat32s(input)
	if err != nil {
		return nil, err
	}

	inTensor, err := ort.NewTensor(ort.NewShape(e.in...), values)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{inTensor}, outputs); err != nil {
		return nil, fmt.Errorf("model %s: %v: %w", e.name, err, errs.ErrInferenceFailed)
	}
	if outputs[0] == nil {
		return nil, fmt.Errorf("model %s produced no output: %w", e.name, errs.ErrInferenceFailed)
	}
	defer outputs[0].Destroy()

	outTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("model %s output is not float32: %w", e.name, errs.ErrModelShapeMismatch)
	}
	data := outTensor.GetData()
	if n := e.out.Elements(); n >= 0 && len(data) != n {
		return nil, fmt.Errorf("model %s produced %d values, expected %v: %w", e.name, len(data), e.out, errs.ErrModelShapeMismatch)
	}
	return tensor.EncodeFloat32s(data), nil
}

func (e *onnxEngine) Close() error {
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	if e.options != nil {
		e.options.Destroy()
		e.options = nil
	}
	return nil
}
