package detection

import (
	"fmt"
)

// ModelName is the detector model file stem.
const ModelName = "easyocr_detector"

// Input resize strategies.
const (
	ResizePad     = "pad"
	ResizeStretch = "stretch"
)

// Config holds the detector's thresholds and input geometry. It is built
// once at startup and passed by value.
type Config struct {
	// TextThreshold seeds a component; LowText and LinkThreshold admit
	// neighbors into it.
	TextThreshold float32 `yaml:"text_threshold"`
	LinkThreshold float32 `yaml:"link_threshold"`
	LowText       float32 `yaml:"low_text"`

	// MinSize drops components whose mapped width or height is not larger
	// than this many source pixels.
	MinSize float64 `yaml:"min_size"`

	// AddMargin grows each surviving box by this fraction of its own size
	// on every side.
	AddMargin float64 `yaml:"add_margin"`

	InputWidth  int `yaml:"input_width"`
	InputHeight int `yaml:"input_height"`

	// OutputStride is the ratio of input size to score-map grid size.
	OutputStride int `yaml:"output_stride"`

	Mean [3]float32 `yaml:"mean,flow"`
	Std  [3]float32 `yaml:"std,flow"`

	// Resize is ResizePad (aspect preserving, top-left anchored) or
	// ResizeStretch.
	Resize   string `yaml:"resize"`
	PadColor string `yaml:"pad_color"`

	// SortRegions orders output in approximate reading order.
	SortRegions bool `yaml:"sort_regions"`
}

// DefaultConfig returns the tuning used with the EasyOCR CRAFT detector.
func DefaultConfig() Config {
	return Config{
		TextThreshold: 0.7,
		LinkThreshold: 0.4,
		LowText:       0.4,
		MinSize:       20,
		AddMargin:     0.1,
		InputWidth:    800,
		InputHeight:   608,
		OutputStride:  2,
		Mean:          [3]float32{0.485, 0.456, 0.406},
		Std:           [3]float32{0.229, 0.224, 0.225},
		Resize:        ResizePad,
		PadColor:      "#FFFFFF",
	}
}

// Validate checks that c describes a usable detector.
func (c Config) Validate() error {
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return fmt.Errorf("detector input size %dx%d must be positive", c.InputWidth, c.InputHeight)
	}
	if c.OutputStride <= 0 || c.InputWidth%c.OutputStride != 0 || c.InputHeight%c.OutputStride != 0 {
		return fmt.Errorf("detector output stride %d must divide input %dx%d", c.OutputStride, c.InputWidth, c.InputHeight)
	}
	for i, s := range c.Std {
		if s == 0 {
			return fmt.Errorf("detector std[%d] must be non-zero", i)
		}
	}
	if c.Resize != ResizePad && c.Resize != ResizeStretch {
		return fmt.Errorf("unknown detector resize mode %q", c.Resize)
	}
	if c.MinSize < 0 || c.AddMargin < 0 {
		return fmt.Errorf("detector min_size and add_margin must not be negative")
	}
	return nil
}

// GridSize returns the score-map width and height.
func (c Config) GridSize() (int, int) {
	return c.InputWidth / c.OutputStride, c.InputHeight / c.OutputStride
}
