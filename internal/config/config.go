// Package config loads runtime settings for the label scanner.
//
// Settings come from three layers, later layers winning:
//
//  1. built-in defaults of each stage package
//  2. an optional YAML tuning file (LABEL_OCR_TUNING_FILE) with
//     detector, recognizer, pipeline and tesseract sections
//  3. LABEL_OCR_* environment variables, optionally seeded from a .env
//     file that never overrides variables already set
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/label-ocr-mcp/internal/detection"
	"github.com/ironsheep/label-ocr-mcp/internal/inference"
	"github.com/ironsheep/label-ocr-mcp/internal/ocr"
	"github.com/ironsheep/label-ocr-mcp/internal/pipeline"
	"github.com/ironsheep/label-ocr-mcp/internal/recognition"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "LABEL_OCR_"

// Recognizer backends.
const (
	BackendONNX      = "onnx"
	BackendTesseract = "tesseract"
)

// Config is the complete runtime configuration.
type Config struct {
	ModelDir          string
	SharedLibraryPath string
	IntraOpThreads    int
	InterOpThreads    int

	// Backend selects the recognizer: BackendONNX or BackendTesseract.
	Backend string

	DebugDir   string
	LogLevel   string
	TuningFile string

	InitTimeout time.Duration
	ScanTimeout time.Duration

	Detector   detection.Config
	Recognizer recognition.Config
	Pipeline   pipeline.Config
	Tesseract  ocr.Config
}

// tuning is the YAML tuning file layout.
type tuning struct {
	Detector   *detection.Config   `yaml:"detector"`
	Recognizer *recognition.Config `yaml:"recognizer"`
	Pipeline   *pipeline.Config    `yaml:"pipeline"`
	Tesseract  *ocr.Config         `yaml:"tesseract"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		ModelDir:    "models",
		Backend:     BackendONNX,
		LogLevel:    "info",
		InitTimeout: 2 * time.Minute,
		ScanTimeout: 30 * time.Second,
		Detector:    detection.DefaultConfig(),
		Recognizer:  recognition.DefaultConfig(),
		Pipeline:    pipeline.DefaultConfig(),
		Tesseract:   ocr.DefaultConfig(),
	}
}

// Load reads an optional .env file (LABEL_OCR_ENV_FILE, default ".env")
// and builds the configuration from the process environment.
func Load() (*Config, error) {
	envFile := os.Getenv(EnvPrefix + "ENV_FILE")
	explicit := envFile != ""
	if !explicit {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds the configuration from lookup, reading the tuning file it
// names before applying the remaining variables.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	env := envReader{lookup: lookup}

	cfg.TuningFile = env.str("TUNING_FILE", "")
	if cfg.TuningFile != "" {
		data, err := os.ReadFile(cfg.TuningFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read tuning file: %w", err)
		}
		if err := cfg.ApplyTuning(data); err != nil {
			return nil, err
		}
	}

	cfg.ModelDir = env.str("MODEL_DIR", cfg.ModelDir)
	cfg.SharedLibraryPath = env.str("ORT_LIB", cfg.SharedLibraryPath)
	cfg.IntraOpThreads = env.integer("INTRA_OP_THREADS", cfg.IntraOpThreads)
	cfg.InterOpThreads = env.integer("INTER_OP_THREADS", cfg.InterOpThreads)
	cfg.Backend = strings.ToLower(env.str("RECOGNIZER", cfg.Backend))
	cfg.DebugDir = env.str("DEBUG_DIR", cfg.DebugDir)
	cfg.LogLevel = strings.ToLower(env.str("LOG_LEVEL", cfg.LogLevel))
	cfg.InitTimeout = env.duration("INIT_TIMEOUT", cfg.InitTimeout)
	cfg.ScanTimeout = env.duration("SCAN_TIMEOUT", cfg.ScanTimeout)
	cfg.Detector.Resize = strings.ToLower(env.str("DETECTOR_RESIZE", cfg.Detector.Resize))
	cfg.Detector.SortRegions = env.boolean("SORT_REGIONS", cfg.Detector.SortRegions)
	cfg.Pipeline.MaxQueued = env.integer("MAX_QUEUED", cfg.Pipeline.MaxQueued)
	cfg.Tesseract.Language = env.str("TESSERACT_LANG", cfg.Tesseract.Language)
	cfg.Tesseract.TessdataPrefix = env.str("TESSDATA_PREFIX", cfg.Tesseract.TessdataPrefix)

	if err := env.err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// ApplyTuning overlays a YAML tuning document on c. Keys missing from the
// document keep their current values.
func (c *Config) ApplyTuning(data []byte) error {
	t := tuning{
		Detector:   &c.Detector,
		Recognizer: &c.Recognizer,
		Pipeline:   &c.Pipeline,
		Tesseract:  &c.Tesseract,
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return fmt.Errorf("failed to parse tuning file: %w", err)
	}
	return nil
}

// Validate checks the runtime settings and every stage section.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendONNX, BackendTesseract:
	default:
		return fmt.Errorf("%sRECOGNIZER must be %q or %q, got %q", EnvPrefix, BackendONNX, BackendTesseract, c.Backend)
	}
	if c.ModelDir == "" {
		return fmt.Errorf("%sMODEL_DIR is required", EnvPrefix)
	}
	if c.IntraOpThreads < 0 || c.InterOpThreads < 0 {
		return fmt.Errorf("thread counts must not be negative")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%sLOG_LEVEL must be debug, info, warn or error, got %q", EnvPrefix, c.LogLevel)
	}
	if c.InitTimeout <= 0 || c.ScanTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	if err := c.Detector.Validate(); err != nil {
		return err
	}
	if err := c.Recognizer.Validate(); err != nil {
		return err
	}
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	if c.Backend == BackendTesseract {
		if err := c.Tesseract.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ONNXOptions returns the inference backend options.
func (c *Config) ONNXOptions() inference.ONNXOptions {
	return inference.ONNXOptions{
		SharedLibraryPath: c.SharedLibraryPath,
		ModelDir:          c.ModelDir,
		IntraOpThreads:    c.IntraOpThreads,
		InterOpThreads:    c.InterOpThreads,
	}
}

// envReader reads prefixed variables and collects parse errors.
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *envReader) get(key string) (string, bool) {
	v, ok := r.lookup(EnvPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *envReader) str(key, def string) string {
	if v, ok := r.get(key); ok {
		return v
	}
	return def
}

func (r *envReader) integer(key string, def int) int {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		return def
	}
	return n
}

func (r *envReader) boolean(key string, def bool) bool {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		return def
	}
	return b
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		return def
	}
	return d
}

func (r *envReader) err() error {
	return errors.Join(r.errs...)
}
