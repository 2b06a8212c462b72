package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultGridColor is the semi-transparent red used when no grid color is set.
var DefaultGridColor = color.NRGBA{R: 255, A: 128}

// GridOverlay copies img and draws a grid of lines every spacing pixels.
//
// When showCoordinates is set each intersection is labelled "x,y" in image
// pixels, which makes the snapshot usable for reading coordinates back.
// A non-positive spacing returns an unmodified copy.
func GridOverlay(img image.Image, spacing int, showCoordinates bool, gridColor color.Color) *image.RGBA {
	bounds := img.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)
	DrawGrid(result, spacing, showCoordinates, gridColor)
	return result
}

// DrawGrid draws the grid directly onto dst.
func DrawGrid(dst draw.Image, spacing int, showCoordinates bool, gridColor color.Color) {
	if spacing <= 0 {
		return
	}
	if gridColor == nil {
		gridColor = DefaultGridColor
	}
	bounds := dst.Bounds()
	line := image.NewUniform(gridColor)

	for x := bounds.Min.X + spacing; x < bounds.Max.X; x += spacing {
		draw.Draw(dst, image.Rect(x, bounds.Min.Y, x+1, bounds.Max.Y), line, image.Point{}, draw.Over)
	}
	for y := bounds.Min.Y + spacing; y < bounds.Max.Y; y += spacing {
		draw.Draw(dst, image.Rect(bounds.Min.X, y, bounds.Max.X, y+1), line, image.Point{}, draw.Over)
	}

	if !showCoordinates {
		return
	}
	for y := bounds.Min.Y + spacing; y < bounds.Max.Y; y += spacing {
		for x := bounds.Min.X + spacing; x < bounds.Max.X; x += spacing {
			DrawLabel(dst, image.Pt(x+2, y+2), fmt.Sprintf("%d,%d", x, y), color.White, color.NRGBA{A: 180})
		}
	}
}

// DrawLabel writes text with its top-left corner at at, over a filled
// background box. A nil bg draws the text only.
func DrawLabel(dst draw.Image, at image.Point, text string, fg, bg color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fg),
		Face: face,
	}
	width := d.MeasureString(text).Ceil()
	box := image.Rect(at.X-1, at.Y-1, at.X+width+1, at.Y+face.Height+1)
	if bg != nil {
		draw.Draw(dst, box.Intersect(dst.Bounds()), image.NewUniform(bg), image.Point{}, draw.Over)
	}
	d.Dot = fixed.P(at.X, at.Y+face.Ascent)
	d.DrawString(text)
}
