package recognition

import "fmt"

// ModelName is the recognizer model file stem.
const ModelName = "easyocr_recognizer"

// Config holds recognizer input geometry and decoding parameters.
type Config struct {
	InputWidth  int    `yaml:"input_width"`
	InputHeight int    `yaml:"input_height"`
	PadColor    string `yaml:"pad_color"`

	// EmissionThreshold is the minimum softmax probability for a
	// non-blank class to be emitted.
	EmissionThreshold float64 `yaml:"emission_threshold"`
	Temperature       float64 `yaml:"temperature"`

	// Charset overrides DefaultCharset. The model's class count must be
	// one more than its rune count.
	Charset string `yaml:"charset"`
}

// DefaultConfig returns the settings for the EasyOCR English recognizer.
func DefaultConfig() Config {
	return Config{
		InputWidth:        1000,
		InputHeight:       64,
		PadColor:          "#FFFFFF",
		EmissionThreshold: 0.1,
		Temperature:       1.0,
		Charset:           DefaultCharset,
	}
}

// Validate checks that c describes a usable recognizer.
func (c Config) Validate() error {
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return fmt.Errorf("recognizer input size %dx%d must be positive", c.InputWidth, c.InputHeight)
	}
	if c.Temperature <= 0 {
		return fmt.Errorf("recognizer temperature must be positive, got %v", c.Temperature)
	}
	if c.EmissionThreshold < 0 || c.EmissionThreshold >= 1 {
		return fmt.Errorf("recognizer emission threshold must be in [0,1), got %v", c.EmissionThreshold)
	}
	if c.Charset == "" {
		return fmt.Errorf("recognizer charset is empty")
	}
	return nil
}
