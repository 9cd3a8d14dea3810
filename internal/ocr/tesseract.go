package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/ironsheep/label-ocr-mcp/internal/errs"
	"github.com/ironsheep/label-ocr-mcp/internal/inference"
	"github.com/ironsheep/label-ocr-mcp/internal/logging"
)

// ErrUnavailable is returned when Tesseract cannot be used in this build or
// on this host.
var ErrUnavailable = errors.New("tesseract unavailable")

// Config selects the Tesseract language data and segmentation mode.
type Config struct {
	// Language is one or more Tesseract language codes joined with "+".
	Language string `yaml:"language"`

	// TessdataPrefix overrides the directory holding *.traineddata.
	TessdataPrefix string `yaml:"tessdata_prefix"`

	// PageSegMode is the Tesseract PSM value.
	PageSegMode int `yaml:"page_seg_mode"`

	// Whitelist restricts recognized characters when set.
	Whitelist string `yaml:"whitelist"`
}

// DefaultConfig returns English with block segmentation.
func DefaultConfig() Config {
	return Config{
		Language:    "eng",
		PageSegMode: 6,
	}
}

// Validate checks c.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Language) == "" {
		return fmt.Errorf("tesseract language is empty")
	}
	if c.PageSegMode < 0 || c.PageSegMode > 13 {
		return fmt.Errorf("tesseract page segmentation mode %d out of range [0,13]", c.PageSegMode)
	}
	return nil
}

// Languages splits Language into individual codes.
func (c Config) Languages() []string {
	var out []string
	for _, l := range strings.Split(c.Language, "+") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// client is the subset of a Tesseract session the recognizer drives.
type client interface {
	Text(png []byte) (string, error)
	Version() string
	Close() error
}

// Info describes the OCR backend.
type Info struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Language  string `json:"language"`
	Backend   string `json:"backend"`
	Error     string `json:"error,omitempty"`
}

// Recognizer reads cropped label regions with Tesseract. It satisfies the
// same contract as the neural recognizer: Init before use, then Recognize
// serially.
type Recognizer struct {
	cfg       Config
	log       *zap.SugaredLogger
	newClient func(Config) (client, error)

	mu     sync.Mutex
	client client
}

// New returns an uninitialized Tesseract recognizer.
func New(cfg Config) (*Recognizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Recognizer{
		cfg:       cfg,
		log:       logging.Named("tesseract"),
		newClient: newClient,
	}, nil
}

// Init opens the Tesseract session. The model loader is not used; it is
// accepted so the recognizer can stand in for the neural one.
func (r *Recognizer) Init(inference.Loader) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		return nil
	}
	c, err := r.newClient(r.cfg)
	if err != nil {
		return fmt.Errorf("failed to start tesseract: %w", err)
	}
	r.client = c
	r.log.Infow("tesseract ready", "version", c.Version(), "language", r.cfg.Language)
	return nil
}

// Ready reports whether Init has succeeded.
func (r *Recognizer) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client != nil
}

// Recognize returns the text Tesseract reads in img, with line breaks
// folded into spaces.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return "", fmt.Errorf("tesseract: %w", errs.ErrNotInitialized)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode image for tesseract: %w", err)
	}

	text, err := r.client.Text(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("tesseract failed: %w", errs.WrapInference(err))
	}
	return strings.Join(strings.Fields(text), " "), nil
}

// Info reports the backend state.
func (r *Recognizer) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := Info{Language: r.cfg.Language, Backend: backendName}
	if r.client != nil {
		info.Available = true
		info.Version = r.client.Version()
		return info
	}

	c, err := r.newClient(r.cfg)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	defer c.Close()
	info.Available = true
	info.Version = c.Version()
	return info
}

// Close ends the Tesseract session.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}
