package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Transform records how a source image was mapped onto a model input canvas.
//
// A point (x, y) in the source lands at (x*ScaleX + PadX, y*ScaleY + PadY)
// on the canvas. ToSource inverts that mapping, so every coordinate that
// comes back from a model can be expressed in source pixels without the
// caller needing to know which resize strategy produced the input.
type Transform struct {
	SrcWidth  int `json:"src_width"`
	SrcHeight int `json:"src_height"`
	DstWidth  int `json:"dst_width"`
	DstHeight int `json:"dst_height"`

	ScaleX float64 `json:"scale_x"`
	ScaleY float64 `json:"scale_y"`

	// PadX and PadY are the canvas offsets of the scaled image. Images are
	// anchored top-left, so these are zero for every resize in this package;
	// they are kept so a centered strategy maps through the same code.
	PadX float64 `json:"pad_x"`
	PadY float64 `json:"pad_y"`
}

// ToSource maps a canvas coordinate back to source pixels.
func (t Transform) ToSource(x, y float64) (float64, float64) {
	sx, sy := x, y
	if t.ScaleX != 0 {
		sx = (x - t.PadX) / t.ScaleX
	}
	if t.ScaleY != 0 {
		sy = (y - t.PadY) / t.ScaleY
	}
	return sx, sy
}

// ResizeWithAspectPad scales img to fit inside width x height while keeping
// its aspect ratio, then draws it at the top-left of a width x height canvas
// filled with pad.
//
// Returns:
//   - *image.NRGBA: exactly width x height pixels.
//   - Transform: the scale and offset used, for mapping coordinates back.
//   - error: non-nil for an empty source or non-positive target size.
func ResizeWithAspectPad(img image.Image, width, height int, pad color.Color) (*image.NRGBA, Transform, error) {
	srcW, srcH, err := checkResize(img, width, height)
	if err != nil {
		return nil, Transform{}, err
	}

	// Whichever side is the binding constraint fills the canvas exactly; the
	// other is derived with integer-exact arithmetic before truncation.
	var scaledW, scaledH int
	if float64(width)/float64(srcW) <= float64(height)/float64(srcH) {
		scaledW = width
		scaledH = clampDim(int(math.Floor(float64(srcH)*float64(width)/float64(srcW))), height)
	} else {
		scaledH = height
		scaledW = clampDim(int(math.Floor(float64(srcW)*float64(height)/float64(srcH))), width)
	}

	scaled := imaging.Resize(img, scaledW, scaledH, imaging.Linear)
	canvas := imaging.New(width, height, pad)
	canvas = imaging.Paste(canvas, scaled, image.Pt(0, 0))

	return canvas, Transform{
		SrcWidth:  srcW,
		SrcHeight: srcH,
		DstWidth:  width,
		DstHeight: height,
		ScaleX:    float64(scaledW) / float64(srcW),
		ScaleY:    float64(scaledH) / float64(srcH),
	}, nil
}

// ResizeStretch scales img to exactly width x height with independent
// horizontal and vertical factors.
func ResizeStretch(img image.Image, width, height int) (*image.NRGBA, Transform, error) {
	srcW, srcH, err := checkResize(img, width, height)
	if err != nil {
		return nil, Transform{}, err
	}

	out := imaging.Resize(img, width, height, imaging.Linear)
	return out, StretchTransform(srcW, srcH, width, height), nil
}

// StretchTransform describes a plain stretch from srcW x srcH to dstW x dstH.
func StretchTransform(srcW, srcH, dstW, dstH int) Transform {
	return Transform{
		SrcWidth:  srcW,
		SrcHeight: srcH,
		DstWidth:  dstW,
		DstHeight: dstH,
		ScaleX:    float64(dstW) / float64(srcW),
		ScaleY:    float64(dstH) / float64(srcH),
	}
}

func checkResize(img image.Image, width, height int) (int, int, error) {
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return 0, 0, fmt.Errorf("cannot resize empty image")
	}
	return b.Dx(), b.Dy(), nil
}

func clampDim(v, max int) int {
	if v < 1 {
		return 1
	}
	if v > max {
		return max
	}
	return v
}
