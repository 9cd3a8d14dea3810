package detection

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

// Detector finds text regions with a CRAFT-style score-map model.
//
// A Detector starts uninitialized; Init loads and validates the model and
// moves it to ready. Detect before that returns errs.ErrNotInitialized.
// Detect calls are serialized because engines are not reentrant.
type Detector struct {
	cfg Config
	pad color.NRGBA
	log *zap.SugaredLogger

	mu     sync.Mutex
	engine inference.Engine
	gridW  int
	gridH  int
}

// New returns an uninitialized detector.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		cfg: cfg,
		pad: imaging.MustParseHexColor(cfg.PadColor, color.NRGBA{255, 255, 255, 255}),
		log: logging.Named("detector"),
	}, nil
}

// Config returns the detector's configuration.
func (d *Detector) Config() Config { return d.cfg }

// InputShape is the [1, 3, H, W] tensor shape fed to the model.
func (d *Detector) InputShape() inference.Shape {
	return inference.Shape{1, 3, int64(d.cfg.InputHeight), int64(d.cfg.InputWidth)}
}

// OutputShape is the [1, h, w, 2] score-map shape expected from the model.
func (d *Detector) OutputShape() inference.Shape {
	gw, gh := d.cfg.GridSize()
	return inference.Shape{1, int64(gh), int64(gw), 2}
}

// Init loads the detector model through loader and validates its shapes.
// Calling Init on a ready detector is a no-op.
func (d *Detector) Init(loader inference.Loader) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.engine != nil {
		return nil
	}

	engine, err := loader.Load(ModelName, d.InputShape(), d.OutputShape())
	if err != nil {
		return fmt.Errorf("failed to load detector model: %w", err)
	}

	if _, err := inference.Resolve(engine.InputShape(), d.InputShape()); err != nil {
		engine.Close()
		return fmt.Errorf("detector input: %w", err)
	}
	out, err := inference.Resolve(engine.OutputShape(), d.OutputShape())
	if err != nil {
		engine.Close()
		return fmt.Errorf("detector output: %w", err)
	}

	d.engine = engine
	d.gridH = int(out[1])
	d.gridW = int(out[2])
	d.log.Infow("detector ready", "input", d.InputShape().String(), "grid_w", d.gridW, "grid_h", d.gridH)
	return nil
}

// Ready reports whether Init has completed successfully.
func (d *Detector) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine != nil
}

// Detect returns the text regions of img in img's pixel coordinates,
// relative to img.Bounds().Min.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]Region, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.engine == nil {
		return nil, fmt.Errorf("detector: %w", errs.ErrNotInitialized)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resized, tf, err := d.prepare(img)
	if err != nil {
		return nil, fmt.Errorf("failed to resize detector input: %w", err)
	}

	input, err := tensor.ImageToTensor(resized, 3, d.cfg.InputHeight, d.cfg.InputWidth, d.cfg.Mean[:], d.cfg.Std[:])
	if err != nil {
		return nil, fmt.Errorf("failed to encode detector input: %w", err)
	}

	output, err := d.engine.Run(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run detector: %w", errs.WrapInference(err))
	}

	maps, err := tensor.ScoreMapsFromTensor(output, d.gridH, d.gridW)
	if err != nil {
		return nil, fmt.Errorf("failed to decode detector output: %w", err)
	}

	regions := PostProcess(maps, tf, d.cfg)
	d.log.Debugw("detection complete", "regions", len(regions), "scale_x", tf.ScaleX, "scale_y", tf.ScaleY)
	return regions, nil
}

func (d *Detector) prepare(img image.Image) (*image.NRGBA, imaging.Transform, error) {
	if d.cfg.Resize == ResizeStretch {
		return imaging.ResizeStretch(img, d.cfg.InputWidth, d.cfg.InputHeight)
	}
	return imaging.ResizeWithAspectPad(img, d.cfg.InputWidth, d.cfg.InputHeight, d.pad)
}

// Close releases the engine and returns the detector to uninitialized.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.engine == nil {
		return nil
	}
	err := d.engine.Close()
	d.engine = nil
	return err
}
