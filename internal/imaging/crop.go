package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/image-annotator-mcp/internal/geom"
)

// ErrEmptyCrop is returned when a crop rectangle has no pixels inside the image.
var ErrEmptyCrop = errors.New("crop region is empty")

// CropResult contains the cropped image data
type CropResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// PixelRect converts an image-space bounding box to whole pixels, growing it
// by pad on each side and clipping it to bounds.
//
// Fractional edges round outward so the returned rectangle always covers box.
func PixelRect(box geom.BBox, pad int, bounds image.Rectangle) image.Rectangle {
	r := image.Rect(
		int(math.Floor(box.Left))-pad,
		int(math.Floor(box.Top))-pad,
		int(math.Ceil(box.Right))+pad,
		int(math.Ceil(box.Bottom))+pad,
	)
	return r.Intersect(bounds)
}

// CropRegion extracts the area of img covered by box.
//
// Parameters:
//   - img: Source image in natural pixel coordinates.
//   - box: Region bounds in image coordinates, typically Region.Bounds().
//   - pad: Extra pixels of context added around the box.
//   - scale: Resize factor applied after cropping. Values <= 0 or 1 keep the
//     cropped size.
//
// Returns:
//   - image.Image: The cropped (and optionally resized) image.
//   - error: ErrEmptyCrop if box lies outside the image.
//
// Boxes that extend past the image edge are clipped rather than rejected;
// regions may legitimately hang over the border after a drag.
func CropRegion(img image.Image, box geom.BBox, pad int, scale float64) (image.Image, error) {
	r := PixelRect(box, pad, img.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("crop (%.1f,%.1f)-(%.1f,%.1f): %w", box.Left, box.Top, box.Right, box.Bottom, ErrEmptyCrop)
	}

	var cropped image.Image = imaging.Crop(img, r)
	if scale != 1.0 && scale > 0 {
		w := max(1, int(float64(r.Dx())*scale))
		h := max(1, int(float64(r.Dy())*scale))
		cropped = imaging.Resize(cropped, w, h, imaging.Lanczos)
	}
	return cropped, nil
}

// Crop is CropRegion followed by EncodePNG.
func Crop(img image.Image, box geom.BBox, pad int, scale float64) (*CropResult, error) {
	cropped, err := CropRegion(img, box, pad, scale)
	if err != nil {
		return nil, err
	}
	return EncodePNG(cropped)
}

// EncodePNG encodes img as a base64 PNG.
func EncodePNG(img image.Image) (*CropResult, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	b := img.Bounds()
	return &CropResult{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
