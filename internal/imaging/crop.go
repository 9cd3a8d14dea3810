package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/label-ocr-mcp/internal/errs"
)

// EncodedImage carries a PNG rendering of an image for JSON responses.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// CropRegion extracts rect from img after clamping it to the image bounds.
//
// Rectangles are in the image's own coordinate space (bounds.Min is honored).
// If nothing is left after clamping, the error wraps errs.ErrInvalidRegion
// so callers can skip the region instead of failing the whole scan.
func CropRegion(img image.Image, rect image.Rectangle) (*image.NRGBA, error) {
	clipped := rect.Canon().Intersect(img.Bounds())
	if clipped.Empty() {
		return nil, fmt.Errorf("crop %v outside image bounds %v: %w", rect, img.Bounds(), errs.ErrInvalidRegion)
	}
	return imaging.Crop(img, clipped), nil
}

// EncodePNG renders img as a base64 PNG, optionally scaled by scale.
func EncodePNG(img image.Image, scale float64) (*EncodedImage, error) {
	out := img
	if scale > 0 && scale != 1.0 {
		w := int(float64(img.Bounds().Dx()) * scale)
		h := int(float64(img.Bounds().Dy()) * scale)
		if w < 1 || h < 1 {
			return nil, fmt.Errorf("scale %.3f produces an empty image", scale)
		}
		out = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &EncodedImage{
		Width:       out.Bounds().Dx(),
		Height:      out.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
