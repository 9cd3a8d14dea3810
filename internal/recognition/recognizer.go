package recognition

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"go.uber.org/zap"

	"github.com/ironsheep/label-ocr-mcp/internal/errs"
	"github.com/ironsheep/label-ocr-mcp/internal/imaging"
	"github.com/ironsheep/label-ocr-mcp/internal/inference"
	"github.com/ironsheep/label-ocr-mcp/internal/logging"
	"github.com/ironsheep/label-ocr-mcp/internal/tensor"
)

// Recognizer reads the text of a single cropped line or word.
//
// Like the detector it must be initialized before use, and Recognize calls
// are serialized around the engine.
type Recognizer struct {
	cfg     Config
	charset Charset
	pad     color.NRGBA
	log     *zap.SugaredLogger

	mu     sync.Mutex
	engine inference.Engine
}

// New returns an uninitialized recognizer.
func New(cfg Config) (*Recognizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Recognizer{
		cfg:     cfg,
		charset: NewCharset(cfg.Charset),
		pad:     imaging.MustParseHexColor(cfg.PadColor, color.NRGBA{255, 255, 255, 255}),
		log:     logging.Named("recognizer"),
	}, nil
}

// Charset returns the class-to-rune mapping in use.
func (r *Recognizer) Charset() Charset { return r.charset }

// InputShape is the [1, 1, H, W] grayscale tensor shape.
func (r *Recognizer) InputShape() inference.Shape {
	return inference.Shape{1, 1, int64(r.cfg.InputHeight), int64(r.cfg.InputWidth)}
}

// OutputShape is [1, T, classes] with a model-defined sequence length T.
func (r *Recognizer) OutputShape() inference.Shape {
	return inference.Shape{1, inference.Dynamic, int64(r.charset.NumClasses())}
}

// Init loads the recognizer model and validates its shapes.
func (r *Recognizer) Init(loader inference.Loader) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine != nil {
		return nil
	}

	engine, err := loader.Load(ModelName, r.InputShape(), r.OutputShape())
	if err != nil {
		return fmt.Errorf("failed to load recognizer model: %w", err)
	}
	if _, err := inference.Resolve(engine.InputShape(), r.InputShape()); err != nil {
		engine.Close()
		return fmt.Errorf("recognizer input: %w", err)
	}
	if _, err := inference.Resolve(engine.OutputShape(), r.OutputShape()); err != nil {
		engine.Close()
		return fmt.Errorf("recognizer output: %w", err)
	}

	r.engine = engine
	r.log.Infow("recognizer ready", "input", r.InputShape().String(), "classes", r.charset.NumClasses())
	return nil
}

// Ready reports whether Init has completed successfully.
func (r *Recognizer) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine != nil
}

// Recognize returns the decoded text of img. The image is fitted into the
// model input with its aspect ratio kept and padded on the right and bottom.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine == nil {
		return "", fmt.Errorf("recognizer: %w", errs.ErrNotInitialized)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	resized, _, err := imaging.ResizeWithAspectPad(img, r.cfg.InputWidth, r.cfg.InputHeight, r.pad)
	if err != nil {
		return "", fmt.Errorf("failed to resize recognizer input: %w", err)
	}
	input, err := tensor.GrayscaleToTensor(resized, r.cfg.InputHeight, r.cfg.InputWidth)
	if err != nil {
		return "", fmt.Errorf("failed to encode recognizer input: %w", err)
	}

	output, err := r.engine.Run(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run recognizer: %w", errs.WrapInference(err))
	}

	classes := r.charset.NumClasses()
	values := len(output) / tensor.BytesPerElement
	if values == 0 || values%classes != 0 {
		return "", fmt.Errorf("recognizer output of %d values is not a multiple of %d classes: %w",
			values, classes, errs.ErrModelShapeMismatch)
	}
	dists, err := tensor.ClassDistributions(output, values/classes, classes)
	if err != nil {
		return "", fmt.Errorf("failed to decode recognizer output: %w", err)
	}

	text := Decode(dists, r.charset, r.cfg.EmissionThreshold, r.cfg.Temperature)
	r.log.Debugw("recognized", "timesteps", len(dists), "chars", len([]rune(text)))
	return text, nil
}

// Close releases the engine and returns the recognizer to uninitialized.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine == nil {
		return nil
	}
	err := r.engine.Close()
	r.engine = nil
	return err
}
