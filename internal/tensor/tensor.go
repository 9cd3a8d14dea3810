// Package tensor converts between images and the flat float32 byte buffers
// exchanged with inference engines.
//
// All buffers use the platform's native byte order with four bytes per
// element. Image tensors are laid out NCHW with a batch of one: every value
// of channel 0 first, then channel 1, then channel 2.
package tensor

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/ironsheep/label-ocr-mcp/internal/errs"
)

// BytesPerElement is the size of one float32 element.
const BytesPerElement = 4

// Luma weights used when collapsing RGB to a single recognizer channel.
const (
	LumaR = 0.299
	LumaG = 0.587
	LumaB = 0.114
)

var byteOrder = binary.NativeEndian

// EncodeFloat32s packs values into a native-order byte buffer.
func EncodeFloat32s(values []float32) []byte {
	buf := make([]byte, len(values)*BytesPerElement)
	for i, v := range values {
		byteOrder.PutUint32(buf[i*BytesPerElement:], math.Float32bits(v))
	}
	return buf
}

// DecodeFloat32s unpacks a native-order byte buffer. The buffer length must
// be a multiple of four.
func DecodeFloat32s(buf []byte) ([]float32, error) {
	if len(buf)%BytesPerElement != 0 {
		return nil, fmt.Errorf("buffer of %d bytes is not float32 aligned: %w", len(buf), errs.ErrModelShapeMismatch)
	}
	values := make([]float32, len(buf)/BytesPerElement)
	for i := range values {
		values[i] = math.Float32frombits(byteOrder.Uint32(buf[i*BytesPerElement:]))
	}
	return values, nil
}

// ImageToTensor normalizes img into a [1, channels, height, width] tensor.
//
// Each value is (v/255 - mean[c]) / std[c] where v is the 8-bit channel
// value. img must already be height x width; resizing is the caller's job so
// the coordinate transform stays with the code that chose it.
func ImageToTensor(img image.Image, channels, height, width int, mean, std []float32) ([]byte, error) {
	if channels < 1 || channels > 3 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
	if len(mean) < channels || len(std) < channels {
		return nil, fmt.Errorf("normalization needs %d mean/std values, got %d/%d", channels, len(mean), len(std))
	}
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return nil, fmt.Errorf("image is %dx%d, tensor expects %dx%d", b.Dx(), b.Dy(), width, height)
	}

	plane := width * height
	values := make([]float32, channels*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			rgb := rgb8(img, b.Min.X+x, b.Min.Y+y)
			idx := y*width + x
			for c := 0; c < channels; c++ {
				values[c*plane+idx] = (rgb[c]/255 - mean[c]) / std[c]
			}
		}
	}
	return EncodeFloat32s(values), nil
}

// GrayscaleToTensor converts img into a [1, 1, height, width] tensor of
// luma values scaled to [-1, 1].
func GrayscaleToTensor(img image.Image, height, width int) ([]byte, error) {
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return nil, fmt.Errorf("image is %dx%d, tensor expects %dx%d", b.Dx(), b.Dy(), width, height)
	}

	values := make([]float32, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			rgb := rgb8(img, b.Min.X+x, b.Min.Y+y)
			g := (LumaR*rgb[0] + LumaG*rgb[1] + LumaB*rgb[2]) / 255
			values[y*width+x] = (g - 0.5) / 0.5
		}
	}
	return EncodeFloat32s(values), nil
}

// ScoreMaps holds the detector's per-cell text and link scores on its
// output grid, row-major.
type ScoreMaps struct {
	Width  int
	Height int
	Text   []float32
	Link   []float32
}

// At returns the text and link scores at grid cell (x, y).
func (m *ScoreMaps) At(x, y int) (text, link float32) {
	i := y*m.Width + x
	return m.Text[i], m.Link[i]
}

// ScoreMapsFromTensor reads two height x width planes from buf: the text
// plane in full, then the link plane.
func ScoreMapsFromTensor(buf []byte, height, width int) (*ScoreMaps, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("invalid score map size %dx%d", width, height)
	}
	plane := width * height
	if want := 2 * plane * BytesPerElement; len(buf) != want {
		return nil, fmt.Errorf("score map buffer is %d bytes, want %d: %w", len(buf), want, errs.ErrModelShapeMismatch)
	}
	values, err := DecodeFloat32s(buf)
	if err != nil {
		return nil, err
	}
	return &ScoreMaps{
		Width:  width,
		Height: height,
		Text:   values[:plane:plane],
		Link:   values[plane:],
	}, nil
}

// ClassDistributions reads a [sequenceLength][numClasses] array of raw
// class scores from buf, row-major.
func ClassDistributions(buf []byte, sequenceLength, numClasses int) ([][]float32, error) {
	if sequenceLength <= 0 || numClasses <= 0 {
		return nil, fmt.Errorf("invalid distribution shape [%d, %d]", sequenceLength, numClasses)
	}
	if want := sequenceLength * numClasses * BytesPerElement; len(buf) != want {
		return nil, fmt.Errorf("class buffer is %d bytes, want %d: %w", len(buf), want, errs.ErrModelShapeMismatch)
	}
	values, err := DecodeFloat32s(buf)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, sequenceLength)
	for t := range out {
		out[t] = values[t*numClasses : (t+1)*numClasses : (t+1)*numClasses]
	}
	return out, nil
}

// rgb8 returns the 8-bit RGB channels at (x, y) as floats. Alpha is ignored
// so that premultiplied and straight-alpha images agree on opaque pixels.
func rgb8(img image.Image, x, y int) [3]float32 {
	r, g, b, _ := img.At(x, y).RGBA()
	return [3]float32{float32(r >> 8), float32(g >> 8), float32(b >> 8)}
}
