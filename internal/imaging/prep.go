package imaging

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/adjust"
)

// Luminance weights used by the saturation matrix.
const (
	lumR = 0.213
	lumG = 0.715
	lumB = 0.072
)

// Enhancement constants applied before detection.
const (
	EnhanceSaturation = 1.3
	EnhanceScale      = 1.2
	EnhanceOffset     = -15.0
)

// ColorMatrix is a 4x5 row-major affine color transform over 0-255 RGBA
// channel values. Row i computes output channel i as
// m[i][0]*R + m[i][1]*G + m[i][2]*B + m[i][3]*A + m[i][4].
type ColorMatrix [4][5]float64

// IdentityMatrix leaves every channel unchanged.
func IdentityMatrix() ColorMatrix {
	return ColorMatrix{
		{1, 0, 0, 0, 0},
		{0, 1, 0, 0, 0},
		{0, 0, 1, 0, 0},
		{0, 0, 0, 1, 0},
	}
}

// SaturationMatrix scales color saturation by s. Zero yields grayscale,
// one is the identity.
func SaturationMatrix(s float64) ColorMatrix {
	inv := 1 - s
	r, g, b := lumR*inv, lumG*inv, lumB*inv
	return ColorMatrix{
		{r + s, g, b, 0, 0},
		{r, g + s, b, 0, 0},
		{r, g, b + s, 0, 0},
		{0, 0, 0, 1, 0},
	}
}

// ScaleOffsetMatrix computes v*scale + offset on the color channels.
func ScaleOffsetMatrix(scale, offset float64) ColorMatrix {
	m := IdentityMatrix()
	for i := 0; i < 3; i++ {
		m[i][i] = scale
		m[i][4] = offset
	}
	return m
}

// Then returns the matrix that applies m first and next second.
func (m ColorMatrix) Then(next ColorMatrix) ColorMatrix {
	var out ColorMatrix
	for i := 0; i < 4; i++ {
		for j := 0; j < 5; j++ {
			var v float64
			for k := 0; k < 4; k++ {
				v += next[i][k] * m[k][j]
			}
			if j == 4 {
				v += next[i][4]
			}
			out[i][j] = v
		}
	}
	return out
}

// Transform applies the matrix to a single color, clamping to [0,255].
func (m ColorMatrix) Transform(c color.RGBA) color.RGBA {
	in := [4]float64{float64(c.R), float64(c.G), float64(c.B), float64(c.A)}
	var out [4]uint8
	for i := 0; i < 4; i++ {
		row := m[i]
		v := row[0]*in[0] + row[1]*in[1] + row[2]*in[2] + row[3]*in[3] + row[4]
		out[i] = clampChannel(v)
	}
	return color.RGBA{R: out[0], G: out[1], B: out[2], A: out[3]}
}

// ApplyColorMatrix returns a new image with m applied to every pixel.
// The source is not modified.
func ApplyColorMatrix(img image.Image, m ColorMatrix) *image.RGBA {
	return adjust.Apply(img, m.Transform)
}

// EnhanceVisibility boosts saturation by 1.3, then scales channels by 1.2
// and shifts them by -15.
func EnhanceVisibility(img image.Image) *image.RGBA {
	m := SaturationMatrix(EnhanceSaturation).Then(ScaleOffsetMatrix(EnhanceScale, EnhanceOffset))
	return ApplyColorMatrix(img, m)
}

// ToGrayscale desaturates img completely. The result keeps four channels
// with R == G == B.
func ToGrayscale(img image.Image) *image.RGBA {
	return ApplyColorMatrix(img, SaturationMatrix(0))
}

func clampChannel(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
