package viewport

import (
	"errors"

	"github.com/ironsheep/image-annotator-mcp/internal/geom"
)

var (
	// ErrZeroScale is returned by conversions when the effective scale is
	// zero, which happens before the image size or stage size is known.
	ErrZeroScale = errors.New("viewport scale is zero")
	// ErrNoNaturalSize is returned by percent conversions before the image
	// has loaded.
	ErrNoNaturalSize = errors.New("image natural size is unknown")
)

// Viewport is the transform from natural image pixels to the stage.
//
//	canvas = image * Scale * FitScale + Offset
//	screen = canvas + Origin
type Viewport struct {
	// Scale is the user zoom, 1 meaning "fit to stage".
	Scale float64 `json:"scale"`
	// FitScale maps natural image pixels to stage pixels at Scale 1.
	FitScale float64 `json:"fit_scale"`
	OffsetX  float64 `json:"offset_x"`
	OffsetY  float64 `json:"offset_y"`

	StageWidth  float64 `json:"stage_width"`
	StageHeight float64 `json:"stage_height"`

	NaturalWidth  float64 `json:"natural_width"`
	NaturalHeight float64 `json:"natural_height"`

	// OriginX and OriginY locate the canvas element on screen.
	OriginX float64 `json:"origin_x"`
	OriginY float64 `json:"origin_y"`
}

// EffectiveScale is the total image to canvas scale.
func (v Viewport) EffectiveScale() float64 { return v.Scale * v.FitScale }

// ContentBounds is the image rectangle in canvas coordinates.
func (v Viewport) ContentBounds() geom.BBox {
	s := v.EffectiveScale()
	return geom.RectXYWH(v.OffsetX, v.OffsetY, v.NaturalWidth*s, v.NaturalHeight*s)
}

// ScreenToCanvas converts a screen position to canvas pixels.
func ScreenToCanvas(p geom.Point, v Viewport) geom.Point {
	return geom.Pt(p.X-v.OriginX, p.Y-v.OriginY)
}

// CanvasToScreen is the inverse of ScreenToCanvas.
func CanvasToScreen(p geom.Point, v Viewport) geom.Point {
	return geom.Pt(p.X+v.OriginX, p.Y+v.OriginY)
}

// CanvasToImage converts canvas pixels to natural image pixels.
func CanvasToImage(p geom.Point, v Viewport) (geom.Point, error) {
	s := v.EffectiveScale()
	if s == 0 {
		return geom.Point{}, ErrZeroScale
	}
	return geom.Pt((p.X-v.OffsetX)/s, (p.Y-v.OffsetY)/s), nil
}

// ImageToCanvas converts natural image pixels to canvas pixels.
func ImageToCanvas(p geom.Point, v Viewport) (geom.Point, error) {
	s := v.EffectiveScale()
	if s == 0 {
		return geom.Point{}, ErrZeroScale
	}
	return geom.Pt(p.X*s+v.OffsetX, p.Y*s+v.OffsetY), nil
}

// ScreenToImage composes ScreenToCanvas and CanvasToImage.
func ScreenToImage(p geom.Point, v Viewport) (geom.Point, error) {
	return CanvasToImage(ScreenToCanvas(p, v), v)
}

// ImageToScreen composes ImageToCanvas and CanvasToScreen.
func ImageToScreen(p geom.Point, v Viewport) (geom.Point, error) {
	c, err := ImageToCanvas(p, v)
	if err != nil {
		return geom.Point{}, err
	}
	return CanvasToScreen(c, v), nil
}

// ImageToPercent expresses an image position as a percentage of the natural
// size, the unit used by serialized results.
func ImageToPercent(p geom.Point, v Viewport) (geom.Point, error) {
	if v.NaturalWidth <= 0 || v.NaturalHeight <= 0 {
		return geom.Point{}, ErrNoNaturalSize
	}
	return geom.Pt(p.X/v.NaturalWidth*100, p.Y/v.NaturalHeight*100), nil
}

// PercentToImage is the inverse of ImageToPercent.
func PercentToImage(p geom.Point, v Viewport) (geom.Point, error) {
	if v.NaturalWidth <= 0 || v.NaturalHeight <= 0 {
		return geom.Point{}, ErrNoNaturalSize
	}
	return geom.Pt(p.X*v.NaturalWidth/100, p.Y*v.NaturalHeight/100), nil
}
