package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point is a 2D position. Which space it lives in (screen, canvas or image)
// is decided by the caller.
type Point = r2.Vec

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Distance returns the euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return r2.Norm(r2.Sub(a, b))
}

// Rotate rotates p around origin by deg degrees (clockwise on a y-down canvas).
func Rotate(p, origin Point, deg float64) Point {
	if deg == 0 {
		return p
	}
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	d := r2.Sub(p, origin)
	return r2.Add(origin, Point{X: d.X*cos - d.Y*sin, Y: d.X*sin + d.Y*cos})
}

// BBox is an axis-aligned bounding box. Left <= Right and Top <= Bottom for
// every box produced by this package.
type BBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// RectXYWH builds a box from a corner and a (possibly negative) size.
func RectXYWH(x, y, w, h float64) BBox {
	return FromPoints([]Point{{X: x, Y: y}, {X: x + w, Y: y + h}})
}

// FromPoints returns the smallest box containing every point. An empty input
// yields the zero box.
func FromPoints(pts []Point) BBox {
	if len(pts) == 0 {
		return BBox{}
	}
	b := BBox{Left: pts[0].X, Top: pts[0].Y, Right: pts[0].X, Bottom: pts[0].Y}
	for _, p := range pts[1:] {
		b.Left = math.Min(b.Left, p.X)
		b.Top = math.Min(b.Top, p.Y)
		b.Right = math.Max(b.Right, p.X)
		b.Bottom = math.Max(b.Bottom, p.Y)
	}
	return b
}

// Width returns Right - Left.
func (b BBox) Width() float64 { return b.Right - b.Left }

// Height returns Bottom - Top.
func (b BBox) Height() float64 { return b.Bottom - b.Top }

// TopLeft returns the minimum corner.
func (b BBox) TopLeft() Point { return Point{X: b.Left, Y: b.Top} }

// Center returns the midpoint of the box.
func (b BBox) Center() Point {
	return Point{X: (b.Left + b.Right) / 2, Y: (b.Top + b.Bottom) / 2}
}

// Union returns the smallest box containing both b and o.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		Left:   math.Min(b.Left, o.Left),
		Top:    math.Min(b.Top, o.Top),
		Right:  math.Max(b.Right, o.Right),
		Bottom: math.Max(b.Bottom, o.Bottom),
	}
}

// Contains reports whether p lies inside b, edges included.
func (b BBox) Contains(p Point) bool {
	return p.X >= b.Left && p.X <= b.Right && p.Y >= b.Top && p.Y <= b.Bottom
}

// Intersects reports whether b and o overlap.
func (b BBox) Intersects(o BBox) bool {
	return b.Left <= o.Right && o.Left <= b.Right && b.Top <= o.Bottom && o.Top <= b.Bottom
}

// Translate moves the box by (dx, dy).
func (b BBox) Translate(dx, dy float64) BBox {
	return BBox{Left: b.Left + dx, Top: b.Top + dy, Right: b.Right + dx, Bottom: b.Bottom + dy}
}

// Expand grows the box by d on every side.
func (b BBox) Expand(d float64) BBox {
	return BBox{Left: b.Left - d, Top: b.Top - d, Right: b.Right + d, Bottom: b.Bottom + d}
}

// Rect returns the box as position and size.
func (b BBox) Rect() Rect {
	return Rect{X: b.Left, Y: b.Top, Width: b.Width(), Height: b.Height()}
}

// UnionAll folds Union over boxes. ok is false when boxes is empty.
func UnionAll(boxes []BBox) (u BBox, ok bool) {
	if len(boxes) == 0 {
		return BBox{}, false
	}
	u = boxes[0]
	for _, b := range boxes[1:] {
		u = u.Union(b)
	}
	return u, true
}

// Rect is a box expressed as top-left corner plus size.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BBox converts r to edge form.
func (r Rect) BBox() BBox { return RectXYWH(r.X, r.Y, r.Width, r.Height) }

// FixRectToFit trims r so it does not extend past [0, width] x [0, height].
// A rect sticking out on the near edge is moved to 0 and shortened; one
// sticking out on the far edge is shortened.
func FixRectToFit(r Rect, width, height float64) Rect {
	if r.X < 0 {
		r.Width += r.X
		r.X = 0
	} else if r.X+r.Width > width {
		r.Width = width - r.X
	}
	if r.Y < 0 {
		r.Height += r.Y
		r.Y = 0
	} else if r.Y+r.Height > height {
		r.Height = height - r.Y
	}
	return r
}

// PolygonContains tests p against the closed polygon pts using ray casting.
func PolygonContains(pts []Point, p Point) bool {
	if len(pts) < 3 {
		return false
	}
	inside := false
	j := len(pts) - 1
	for i := range pts {
		a, b := pts[i], pts[j]
		if (a.Y > p.Y) != (b.Y > p.Y) &&
			p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
		j = i
	}
	return inside
}

// SegmentDistance returns the distance from p to the segment ab.
func SegmentDistance(p, a, b Point) float64 {
	ab := r2.Sub(b, a)
	l2 := r2.Dot(ab, ab)
	if l2 == 0 {
		return Distance(p, a)
	}
	t := r2.Dot(r2.Sub(p, a), ab) / l2
	t = math.Max(0, math.Min(1, t))
	return Distance(p, r2.Add(a, r2.Scale(t, ab)))
}
