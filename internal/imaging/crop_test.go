package imaging

import (
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/ironsheep/image-annotator-mcp/internal/geom"
)

// createInMemoryImage creates an in-memory test image
func createInMemoryImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createPatternImage creates an image with different colors in each quadrant
func createPatternImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.Color
			switch {
			case x < width/2 && y < height/2:
				c = color.RGBA{255, 0, 0, 255} // Red top-left
			case x >= width/2 && y < height/2:
				c = color.RGBA{0, 255, 0, 255} // Green top-right
			case x < width/2:
				c = color.RGBA{0, 0, 255, 255} // Blue bottom-left
			default:
				c = color.RGBA{255, 255, 255, 255} // White bottom-right
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPixelRect(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 80)
	tests := []struct {
		name string
		box  geom.BBox
		pad  int
		want image.Rectangle
	}{
		{"whole pixels", geom.RectXYWH(10, 10, 20, 20), 0, image.Rect(10, 10, 30, 30)},
		{"fractions round outward", geom.RectXYWH(10.6, 10.2, 5, 5), 0, image.Rect(10, 10, 16, 16)},
		{"padding", geom.RectXYWH(10, 10, 20, 20), 3, image.Rect(7, 7, 33, 33)},
		{"clipped", geom.RectXYWH(-10, 70, 30, 30), 0, image.Rect(0, 70, 20, 80)},
		{"outside", geom.RectXYWH(200, 200, 5, 5), 0, image.Rectangle{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PixelRect(tt.box, tt.pad, bounds)
			if got != tt.want && !(got.Empty() && tt.want.Empty()) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCrop(t *testing.T) {
	img := createPatternImage(100, 100)

	result, err := Crop(img, geom.RectXYWH(0, 0, 50, 50), 0, 1.0)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if result.Width != 50 || result.Height != 50 {
		t.Errorf("dimensions: got %dx%d, want 50x50", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}
	if _, err := base64.StdEncoding.DecodeString(result.ImageBase64); err != nil {
		t.Errorf("failed to decode base64: %v", err)
	}
}

func TestCrop_WithScale(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		name         string
		box          geom.BBox
		scale        float64
		wantW, wantH int
	}{
		{"up 2x", geom.RectXYWH(0, 0, 50, 50), 2.0, 100, 100},
		{"down 0.5x", geom.RectXYWH(0, 0, 100, 100), 0.5, 50, 50},
		{"zero keeps size", geom.RectXYWH(0, 0, 40, 30), 0, 40, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Crop(img, tt.box, 0, tt.scale)
			if err != nil {
				t.Fatalf("Crop failed: %v", err)
			}
			if result.Width != tt.wantW || result.Height != tt.wantH {
				t.Errorf("dimensions: got %dx%d, want %dx%d", result.Width, result.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestCrop_OutsideImage(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	_, err := Crop(img, geom.RectXYWH(150, 150, 10, 10), 0, 1.0)
	if !errors.Is(err, ErrEmptyCrop) {
		t.Errorf("got %v, want ErrEmptyCrop", err)
	}

	// A box hanging over the edge is clipped, not rejected.
	result, err := Crop(img, geom.RectXYWH(90, 90, 30, 30), 0, 1.0)
	if err != nil {
		t.Fatalf("Crop over edge failed: %v", err)
	}
	if result.Width != 10 || result.Height != 10 {
		t.Errorf("dimensions: got %dx%d, want 10x10", result.Width, result.Height)
	}
}

func TestCrop_VerifyContent(t *testing.T) {
	img := createPatternImage(100, 100)

	tests := []struct {
		name    string
		box     geom.BBox
		wantHex string
	}{
		{"top-left", geom.RectXYWH(0, 0, 50, 50), "#FF0000"},
		{"top-right", geom.RectXYWH(50, 0, 50, 50), "#00FF00"},
		{"bottom-left", geom.RectXYWH(0, 50, 50, 50), "#0000FF"},
		{"bottom-right", geom.RectXYWH(50, 50, 50, 50), "#FFFFFF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Crop(img, tt.box, 0, 1.0)
			if err != nil {
				t.Fatalf("Crop failed: %v", err)
			}
			decoded, _ := base64.StdEncoding.DecodeString(result.ImageBase64)
			croppedImg, err := png.Decode(strings.NewReader(string(decoded)))
			if err != nil {
				t.Fatalf("failed to decode PNG: %v", err)
			}
			r, g, b, _ := croppedImg.At(result.Width/2, result.Height/2).RGBA()
			gotHex := "#" + toHex(uint8(r>>8)) + toHex(uint8(g>>8)) + toHex(uint8(b>>8))
			if gotHex != tt.wantHex {
				t.Errorf("color in %s: got %s, want %s", tt.name, gotHex, tt.wantHex)
			}
		})
	}
}

func toHex(b uint8) string {
	const hex = "0123456789ABCDEF"
	return string([]byte{hex[b>>4], hex[b&0xf]})
}
