// Package pipeline runs the two-stage label scan: enhance and grayscale the
// photo, detect text regions, recognize and clean each region, and join the
// lines into the final text.
//
// A Pipeline owns one detector and one recognizer. Neither engine is assumed
// reentrant, so scans on the same Pipeline run one at a time. Model loading
// and queued scans share a single background worker; a scan submitted right
// after Start therefore runs only once loading has finished.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ironsheep/label-ocr-mcp/internal/cleanup"
	"github.com/ironsheep/label-ocr-mcp/internal/detection"
	"github.com/ironsheep/label-ocr-mcp/internal/errs"
	"github.com/ironsheep/label-ocr-mcp/internal/imaging"
	"github.com/ironsheep/label-ocr-mcp/internal/inference"
	"github.com/ironsheep/label-ocr-mcp/internal/logging"
)

const instrumentationName = "github.com/ironsheep/label-ocr-mcp/internal/pipeline"

// defaultCloseWait bounds how long Close waits for model loading in flight.
const defaultCloseWait = 30 * time.Second

var errClosed = errors.New("pipeline closed")

// Scan modes reported on the labelscan.scans counter.
const (
	ModeRegions  = "regions"
	ModeFallback = "fallback"
	ModeError    = "error"
)

// RegionDetector finds text regions in a grayscale label image.
type RegionDetector interface {
	Init(loader inference.Loader) error
	Ready() bool
	Detect(ctx context.Context, img image.Image) ([]detection.Region, error)
	Close() error
}

// TextRecognizer reads the text in a cropped image.
type TextRecognizer interface {
	Init(loader inference.Loader) error
	Ready() bool
	Recognize(ctx context.Context, img image.Image) (string, error)
	Close() error
}

// Config holds orchestration settings.
type Config struct {
	// FallbackPrefix marks text read from the whole image because no
	// region was detected.
	FallbackPrefix string `yaml:"fallback_prefix"`

	// OverlayThickness is the outline width of the debug region overlay.
	OverlayThickness int `yaml:"overlay_thickness"`

	// MaxQueued bounds scans waiting for the worker. Submit fails once it
	// is reached. Zero means unbounded.
	MaxQueued int `yaml:"max_queued"`
}

// DefaultConfig returns the standard orchestration settings.
func DefaultConfig() Config {
	return Config{
		FallbackPrefix:   "Full image: ",
		OverlayThickness: 2,
		MaxQueued:        16,
	}
}

// Validate checks c.
func (c Config) Validate() error {
	if strings.TrimSpace(c.FallbackPrefix) == "" {
		return errors.New("fallback prefix must not be empty")
	}
	if c.OverlayThickness <= 0 {
		return fmt.Errorf("overlay thickness must be positive, got %d", c.OverlayThickness)
	}
	if c.MaxQueued < 0 {
		return fmt.Errorf("max queued must not be negative, got %d", c.MaxQueued)
	}
	return nil
}

// Result is the outcome of one scan.
type Result struct {
	RequestID string             `json:"requestId"`
	Text      string             `json:"text"`
	Lines     []string           `json:"lines,omitempty"`
	Regions   []detection.Region `json:"regions"`
	Skipped   int                `json:"skippedRegions,omitempty"`
	Fallback  bool               `json:"fallback"`
	Duration  time.Duration      `json:"durationNs"`
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithDebugSink sends intermediate images to sink.
func WithDebugSink(sink imaging.DebugSink) Option {
	return func(p *Pipeline) {
		if sink != nil {
			p.debug = sink
		}
	}
}

// WithMeterProvider records scan metrics through mp instead of the global
// provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(p *Pipeline) { p.meterProvider = mp }
}

// WithTracerProvider records stage spans through tp instead of the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pipeline) { p.tracerProvider = tp }
}

// WithLogger replaces the pipeline logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(p *Pipeline) { p.log = log }
}

// Pipeline orchestrates a detector and a recognizer.
type Pipeline struct {
	cfg        Config
	detector   RegionDetector
	recognizer TextRecognizer
	debug      imaging.DebugSink
	log        *zap.SugaredLogger

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	scans          metric.Int64Counter
	regionCount    metric.Int64Histogram

	pool      *ants.Pool
	started   atomic.Bool
	initDone  chan struct{}
	initErr   error
	closeWait time.Duration

	lifeMu sync.Mutex
	closed bool

	mu sync.Mutex
}

// New builds a pipeline around detector and recognizer. The stages are not
// loaded until Start.
func New(detector RegionDetector, recognizer TextRecognizer, cfg Config, opts ...Option) (*Pipeline, error) {
	if detector == nil || recognizer == nil {
		return nil, errors.New("pipeline needs both a detector and a recognizer")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:        cfg,
		detector:   detector,
		recognizer: recognizer,
		debug:      imaging.NopSink{},
		log:        logging.Named("pipeline"),
		initDone:   make(chan struct{}),
		closeWait:  defaultCloseWait,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.meterProvider == nil {
		p.meterProvider = otel.GetMeterProvider()
	}
	if p.tracerProvider == nil {
		p.tracerProvider = otel.GetTracerProvider()
	}
	p.tracer = p.tracerProvider.Tracer(instrumentationName)

	meter := p.meterProvider.Meter(instrumentationName)
	var err error
	p.scans, err = meter.Int64Counter("labelscan.scans",
		metric.WithDescription("Label scans by outcome"),
		metric.WithUnit("{scan}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create scan counter: %w", err)
	}
	p.regionCount, err = meter.Int64Histogram("labelscan.regions",
		metric.WithDescription("Text regions detected per scan"),
		metric.WithUnit("{region}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create region histogram: %w", err)
	}

	poolOpts := []ants.Option{
		ants.WithPanicHandler(func(v any) {
			p.log.Errorw("background task panicked", "panic", v)
		}),
	}
	if cfg.MaxQueued > 0 {
		poolOpts = append(poolOpts, ants.WithMaxBlockingTasks(cfg.MaxQueued))
	}
	p.pool, err = ants.NewPool(1, poolOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return p, nil
}

// Start loads both models on the background worker and returns
// immediately. Only the first call has any effect.
func (p *Pipeline) Start(loader inference.Loader) error {
	if p.isClosed() {
		return errClosed
	}
	if !p.started.CompareAndSwap(false, true) {
		return nil
	}

	task := func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("model loading panicked: %v", r)
			}
			p.finishInit(err)
		}()

		start := time.Now()
		if err = p.detector.Init(loader); err != nil {
			p.log.Errorw("detector init failed", "error", err)
			return
		}
		if p.isClosed() {
			err = errClosed
			return
		}
		if err = p.recognizer.Init(loader); err != nil {
			p.log.Errorw("recognizer init failed", "error", err)
			return
		}
		p.log.Infow("models loaded", "elapsed", time.Since(start))
	}

	if err := p.pool.Submit(task); err != nil {
		p.initErr = fmt.Errorf("failed to schedule model loading: %w", err)
		close(p.initDone)
		return p.initErr
	}
	return nil
}

// finishInit records the loading outcome. Stages loaded after Close gave up
// waiting are released here.
func (p *Pipeline) finishInit(err error) {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	if p.closed {
		if cerr := errors.Join(p.detector.Close(), p.recognizer.Close()); cerr != nil {
			p.log.Warnw("failed to release stages after close", "error", cerr)
		}
		if err == nil {
			err = errClosed
		}
	}
	p.initErr = err
	close(p.initDone)
}

func (p *Pipeline) isClosed() bool {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	return p.closed
}

// Wait blocks until model loading started by Start has finished and returns
// its error.
func (p *Pipeline) Wait(ctx context.Context) error {
	if !p.started.Load() {
		return fmt.Errorf("pipeline not started: %w", errs.ErrNotInitialized)
	}
	select {
	case <-p.initDone:
		return p.initErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether both stages are loaded.
func (p *Pipeline) Ready() bool {
	return p.detector.Ready() && p.recognizer.Ready()
}

// ProcessImage returns the cleaned text of the label in img, one line per
// detected region. When nothing is detected the whole image is read and the
// text carries the fallback prefix.
func (p *Pipeline) ProcessImage(ctx context.Context, img image.Image) (string, error) {
	res, err := p.Scan(ctx, img)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Submit queues a scan of img on the background worker and calls done with
// its outcome. It blocks while the worker is busy and fails with
// ants.ErrPoolOverload once MaxQueued callers are already waiting.
func (p *Pipeline) Submit(ctx context.Context, img image.Image, done func(*Result, error)) error {
	err := p.pool.Submit(func() {
		res, err := p.Scan(ctx, img)
		if done != nil {
			done(res, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to queue scan: %w", err)
	}
	return nil
}

// ScanQueued runs Scan on the background worker and waits for it. A scan
// that is still queued when ctx ends is abandoned; it fails fast once it
// reaches the worker.
func (p *Pipeline) ScanQueued(ctx context.Context, img image.Image) (*Result, error) {
	type outcome struct {
		res *Result
		err error
	}
	// Exactly one send happens: the Submit error or the scan outcome.
	ch := make(chan outcome, 1)
	go func() {
		err := p.Submit(ctx, img, func(res *Result, err error) {
			ch <- outcome{res, err}
		})
		if err != nil {
			ch <- outcome{nil, err}
		}
	}()
	select {
	case o := <-ch:
		return o.res, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("scan did not finish: %w", ctx.Err())
	}
}

// Scan is ProcessImage with the detected regions and scan metadata. Every
// failure is returned as an *errs.ScanError and no partial result is kept.
func (p *Pipeline) Scan(ctx context.Context, img image.Image) (*Result, error) {
	requestID := uuid.NewString()
	ctx, span := p.tracer.Start(ctx, "labelscan.scan",
		trace.WithAttributes(attribute.String("labelscan.request_id", requestID)))
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	log := p.log.With("request_id", requestID)

	res, err := p.scan(ctx, requestID, img)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.scans.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", ModeError)))

		scanErr := errs.NewScanError(requestID, "failed to scan label", err)
		log.Warnw("scan failed", "code", scanErr.Code, "error", err)
		return nil, scanErr
	}

	res.Duration = time.Since(start)
	mode := ModeRegions
	if res.Fallback {
		mode = ModeFallback
	}
	p.scans.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
	p.regionCount.Record(ctx, int64(len(res.Regions)))
	span.SetAttributes(
		attribute.String("labelscan.mode", mode),
		attribute.Int("labelscan.regions", len(res.Regions)),
	)
	log.Infow("scan complete", "mode", mode, "regions", len(res.Regions),
		"lines", len(res.Lines), "elapsed", res.Duration)
	return res, nil
}

// Regions runs preprocessing and detection only and returns the text
// regions of img in its own pixel coordinates.
func (p *Pipeline) Regions(ctx context.Context, img image.Image) ([]detection.Region, error) {
	requestID := uuid.NewString()
	ctx, span := p.tracer.Start(ctx, "labelscan.regions",
		trace.WithAttributes(attribute.String("labelscan.request_id", requestID)))
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	regions, err := p.regions(ctx, img)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errs.NewScanError(requestID, "failed to detect text regions", err)
	}
	return regions, nil
}

func (p *Pipeline) regions(ctx context.Context, img image.Image) ([]detection.Region, error) {
	if !p.detector.Ready() {
		return nil, errs.ErrNotInitialized
	}
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("image is empty")
	}
	gray := imaging.ToGrayscale(imaging.EnhanceVisibility(img))
	return p.detect(ctx, gray)
}

func (p *Pipeline) scan(ctx context.Context, requestID string, img image.Image) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.Ready() {
		return nil, errs.ErrNotInitialized
	}
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("image is empty")
	}

	enhanced := imaging.EnhanceVisibility(img)
	p.debug.Dump("enhanced", enhanced)
	gray := imaging.ToGrayscale(enhanced)
	p.debug.Dump("grayscale", gray)

	regions, err := p.detect(ctx, gray)
	if err != nil {
		return nil, err
	}
	res := &Result{RequestID: requestID, Regions: regions}

	if len(regions) == 0 {
		text, err := p.recognize(ctx, gray, -1)
		if err != nil {
			return nil, err
		}
		res.Fallback = true
		res.Text = p.cfg.FallbackPrefix + text
		return res, nil
	}

	origin := gray.Bounds().Min
	for i, region := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		crop, err := imaging.CropRegion(gray, region.Rect().Add(origin))
		if errors.Is(err, errs.ErrInvalidRegion) {
			p.log.Warnw("skipping region", "index", i, "region", region, "error", err)
			res.Skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to crop region %d: %w", i, err)
		}
		p.debug.Dump(fmt.Sprintf("region_%03d", i), crop)

		raw, err := p.recognize(ctx, crop, i)
		if err != nil {
			return nil, fmt.Errorf("region %d: %w", i, err)
		}
		cleaned := cleanup.Clean(raw)
		p.log.Debugw("region recognized", "index", i, "raw", raw, "cleaned", cleaned)
		if cleaned != "" {
			res.Lines = append(res.Lines, cleaned)
		}
	}
	res.Text = strings.Join(res.Lines, "\n")
	return res, nil
}

func (p *Pipeline) detect(ctx context.Context, gray image.Image) ([]detection.Region, error) {
	ctx, span := p.tracer.Start(ctx, "labelscan.detect")
	defer span.End()

	regions, err := p.detector.Detect(ctx, gray)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to detect text regions: %w", err)
	}
	span.SetAttributes(attribute.Int("labelscan.regions", len(regions)))

	if _, nop := p.debug.(imaging.NopSink); !nop && len(regions) > 0 {
		rects := make([]image.Rectangle, len(regions))
		for i, r := range regions {
			rects[i] = r.Rect().Add(gray.Bounds().Min)
		}
		p.debug.Dump("regions", imaging.DrawRegions(gray, rects, p.cfg.OverlayThickness))
	}
	return regions, nil
}

// recognize reads one crop. index is -1 for the whole-image fallback.
func (p *Pipeline) recognize(ctx context.Context, img image.Image, index int) (string, error) {
	ctx, span := p.tracer.Start(ctx, "labelscan.recognize",
		trace.WithAttributes(attribute.Int("labelscan.region_index", index)))
	defer span.End()

	text, err := p.recognizer.Recognize(ctx, img)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to recognize text: %w", err)
	}
	return text, nil
}

// Close stops the worker and releases both stages. Model loading in
// flight is given closeWait to finish first.
func (p *Pipeline) Close() error {
	p.lifeMu.Lock()
	p.closed = true
	p.lifeMu.Unlock()

	if p.started.Load() {
		select {
		case <-p.initDone:
		case <-time.After(p.closeWait):
			p.log.Warnw("closing while models are still loading", "waited", p.closeWait)
		}
	}
	p.pool.Release()

	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.detector.Close(), p.recognizer.Close())
}
