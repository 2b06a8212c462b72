package annotation

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"

	"github.com/anthonynsimon/bild/effect"

	"github.com/ironsheep/image-annotator-mcp/internal/geom"
)

// Stroke is one continuous brush or eraser drag.
type Stroke struct {
	Points []geom.Point `json:"points"`
	Size   float64      `json:"size"`
	Erase  bool         `json:"erase,omitempty"`
}

// Brush is a painted area made of strokes. Mask caches the rasterized strokes
// in image pixel space; it is rebuilt by Rasterize and dropped by transforms
// that cannot be applied to pixels exactly.
type Brush struct {
	Strokes []Stroke     `json:"strokes"`
	Mask    *image.Alpha `json:"-"`
}

func (b Brush) Kind() Kind { return KindBrush }

func (b Brush) Bounds() geom.BBox {
	var boxes []geom.BBox
	for _, s := range b.Strokes {
		if s.Erase || len(s.Points) == 0 {
			continue
		}
		boxes = append(boxes, geom.FromPoints(s.Points).Expand(s.Size/2))
	}
	u, _ := geom.UnionAll(boxes)
	return u
}

func (b Brush) Contains(p geom.Point, tol float64) bool {
	if b.Mask != nil {
		x, y := int(math.Floor(p.X)), int(math.Floor(p.Y))
		if !image.Pt(x, y).In(b.Mask.Rect) {
			return false
		}
		return b.Mask.AlphaAt(x, y).A > 0
	}
	hit := false
	for _, s := range b.Strokes {
		if strokeNear(s, p, s.Size/2+tol) {
			hit = !s.Erase
		}
	}
	return hit
}

func strokeNear(s Stroke, p geom.Point, r float64) bool {
	if len(s.Points) == 1 {
		return geom.Distance(p, s.Points[0]) <= r
	}
	for i := 0; i+1 < len(s.Points); i++ {
		if geom.SegmentDistance(p, s.Points[i], s.Points[i+1]) <= r {
			return true
		}
	}
	return false
}

func (b Brush) Translate(dx, dy float64) Geometry {
	out := b.mapPoints(func(p geom.Point) geom.Point { return geom.Pt(p.X+dx, p.Y+dy) })
	if b.Mask != nil {
		return out.Rasterize()
	}
	return out
}

func (b Brush) Scale(origin geom.Point, sx, sy float64) Geometry {
	out := b.mapPoints(func(p geom.Point) geom.Point {
		return geom.Pt(origin.X+(p.X-origin.X)*sx, origin.Y+(p.Y-origin.Y)*sy)
	})
	k := math.Sqrt(math.Abs(sx * sy))
	for i := range out.Strokes {
		out.Strokes[i].Size *= k
	}
	if b.Mask != nil {
		return out.Rasterize()
	}
	return out
}

func (b Brush) mapPoints(f func(geom.Point) geom.Point) Brush {
	out := Brush{Strokes: make([]Stroke, len(b.Strokes))}
	for i, s := range b.Strokes {
		pts := make([]geom.Point, len(s.Points))
		for j, p := range s.Points {
			pts[j] = f(p)
		}
		out.Strokes[i] = Stroke{Points: pts, Size: s.Size, Erase: s.Erase}
	}
	return out
}

func (b Brush) Validate() error {
	painted := 0
	for _, s := range b.Strokes {
		if len(s.Points) == 0 || s.Size <= 0 {
			return fmt.Errorf("%w: empty brush stroke", ErrInvalidGeometry)
		}
		if !s.Erase {
			painted++
		}
	}
	if painted == 0 {
		return fmt.Errorf("%w: brush has no painted strokes", ErrInvalidGeometry)
	}
	return nil
}

func (b Brush) Clone() Geometry {
	out := b.mapPoints(func(p geom.Point) geom.Point { return p })
	if b.Mask != nil {
		m := *b.Mask
		m.Pix = slices.Clone(b.Mask.Pix)
		out.Mask = &m
	}
	return out
}

// WithStroke returns a copy of b with s appended and the mask rebuilt.
func (b Brush) WithStroke(s Stroke) Brush {
	out := b.Clone().(Brush)
	out.Strokes = append(out.Strokes, Stroke{Points: slices.Clone(s.Points), Size: s.Size, Erase: s.Erase})
	return out.Rasterize()
}

// Rasterize renders the strokes into Mask. Each stroke is drawn as a one
// pixel polyline and then dilated to its brush radius; eraser strokes clear
// the pixels they cover.
func (b Brush) Rasterize() Brush {
	bounds := b.Bounds()
	for _, s := range b.Strokes {
		if s.Erase && len(s.Points) > 0 {
			bounds = bounds.Union(geom.FromPoints(s.Points).Expand(s.Size / 2))
		}
	}
	rect := image.Rect(
		int(math.Floor(bounds.Left))-1, int(math.Floor(bounds.Top))-1,
		int(math.Ceil(bounds.Right))+1, int(math.Ceil(bounds.Bottom))+1,
	)
	mask := image.NewAlpha(rect)
	for _, s := range b.Strokes {
		if len(s.Points) == 0 {
			continue
		}
		local := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		prev := s.Points[0]
		plot(local, rect.Min, prev)
		for _, p := range s.Points[1:] {
			line(local, rect.Min, prev, p)
			prev = p
		}
		var stamped image.Image = local
		if r := s.Size / 2; r >= 1 {
			stamped = effect.Dilate(local, r)
		}
		sb := stamped.Bounds()
		for y := sb.Min.Y; y < sb.Max.Y; y++ {
			for x := sb.Min.X; x < sb.Max.X; x++ {
				_, _, _, a := stamped.At(x, y).RGBA()
				if a == 0 {
					continue
				}
				px, py := x+rect.Min.X, y+rect.Min.Y
				if s.Erase {
					mask.SetAlpha(px, py, color.Alpha{})
				} else {
					mask.SetAlpha(px, py, color.Alpha{A: 0xff})
				}
			}
		}
	}
	b.Mask = mask
	return b
}

// Area returns the number of painted mask pixels, rasterizing if needed.
func (b Brush) Area() int {
	if b.Mask == nil {
		b = b.Rasterize()
	}
	n := 0
	for _, a := range b.Mask.Pix {
		if a > 0 {
			n++
		}
	}
	return n
}

var opaque = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

func plot(img *image.RGBA, origin image.Point, p geom.Point) {
	img.SetRGBA(int(math.Floor(p.X))-origin.X, int(math.Floor(p.Y))-origin.Y, opaque)
}

func line(img *image.RGBA, origin image.Point, a, b geom.Point) {
	steps := int(math.Ceil(math.Max(math.Abs(b.X-a.X), math.Abs(b.Y-a.Y))))
	if steps == 0 {
		plot(img, origin, b)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		plot(img, origin, geom.Pt(a.X+(b.X-a.X)*t, a.Y+(b.Y-a.Y)*t))
	}
}
