package annotation

import (
	"fmt"
	"math"
	"slices"

	"github.com/ironsheep/image-annotator-mcp/internal/geom"
)

// Kind identifies a geometry variant.
type Kind string

const (
	KindBox       Kind = "rectangle"
	KindPolygon   Kind = "polygon"
	KindEllipse   Kind = "ellipse"
	KindKeyPoint  Kind = "keypoint"
	KindBrush     Kind = "brush"
	KindTextSpan  Kind = "textspan"
	KindAudioSpan Kind = "audiospan"
)

// Spatial reports whether the kind lives in image space. Spans index text or
// audio and never take part in hit testing or viewport math.
func (k Kind) Spatial() bool {
	switch k {
	case KindBox, KindPolygon, KindEllipse, KindKeyPoint, KindBrush:
		return true
	case KindTextSpan, KindAudioSpan:
		return false
	}
	return false
}

// SupportsTransform reports whether regions of this kind get transform
// handles (move and resize as a box).
func (k Kind) SupportsTransform() bool {
	switch k {
	case KindBox, KindPolygon, KindEllipse:
		return true
	case KindKeyPoint, KindBrush, KindTextSpan, KindAudioSpan:
		return false
	}
	return false
}

// CanRotate reports whether the transform handle offers rotation.
func (k Kind) CanRotate() bool {
	switch k {
	case KindBox, KindEllipse:
		return true
	case KindPolygon, KindKeyPoint, KindBrush, KindTextSpan, KindAudioSpan:
		return false
	}
	return false
}

// Geometry is the shape of a region. Implementations are values: every
// transform returns a new Geometry and leaves the receiver untouched.
type Geometry interface {
	Kind() Kind
	// Bounds is the axis-aligned box in image pixels. Non-spatial kinds
	// return the zero box.
	Bounds() geom.BBox
	// Contains is the hit test. tol widens thin shapes such as points and
	// open polylines.
	Contains(p geom.Point, tol float64) bool
	Translate(dx, dy float64) Geometry
	// Scale scales the shape about origin.
	Scale(origin geom.Point, sx, sy float64) Geometry
	Validate() error
	Clone() Geometry
}

// Box is a rectangle rotated by Rotation degrees about its top-left corner.
type Box struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
}

func (b Box) Kind() Kind { return KindBox }

// Corners returns the four corners clockwise from the anchor.
func (b Box) Corners() []geom.Point {
	o := geom.Pt(b.X, b.Y)
	return []geom.Point{
		o,
		geom.Rotate(geom.Pt(b.X+b.Width, b.Y), o, b.Rotation),
		geom.Rotate(geom.Pt(b.X+b.Width, b.Y+b.Height), o, b.Rotation),
		geom.Rotate(geom.Pt(b.X, b.Y+b.Height), o, b.Rotation),
	}
}

func (b Box) Bounds() geom.BBox { return geom.FromPoints(b.Corners()) }

func (b Box) Contains(p geom.Point, tol float64) bool {
	o := geom.Pt(b.X, b.Y)
	q := geom.Rotate(p, o, -b.Rotation)
	return q.X >= b.X-tol && q.X <= b.X+b.Width+tol && q.Y >= b.Y-tol && q.Y <= b.Y+b.Height+tol
}

func (b Box) Translate(dx, dy float64) Geometry {
	b.X += dx
	b.Y += dy
	return b
}

func (b Box) Scale(origin geom.Point, sx, sy float64) Geometry {
	b.X = origin.X + (b.X-origin.X)*sx
	b.Y = origin.Y + (b.Y-origin.Y)*sy
	b.Width *= math.Abs(sx)
	b.Height *= math.Abs(sy)
	return b
}

func (b Box) Validate() error {
	if !finite(b.X, b.Y, b.Width, b.Height, b.Rotation) {
		return fmt.Errorf("%w: box has non-finite coordinates", ErrInvalidGeometry)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: box size %gx%g", ErrInvalidGeometry, b.Width, b.Height)
	}
	return nil
}

func (b Box) Clone() Geometry { return b }

// Polygon is a list of vertices. A closed polygon needs at least three.
type Polygon struct {
	Points []geom.Point `json:"points"`
	Closed bool         `json:"closed"`
}

func (pg Polygon) Kind() Kind { return KindPolygon }

func (pg Polygon) Bounds() geom.BBox { return geom.FromPoints(pg.Points) }

func (pg Polygon) Contains(p geom.Point, tol float64) bool {
	if pg.Closed && geom.PolygonContains(pg.Points, p) {
		return true
	}
	n := len(pg.Points)
	for i := 0; i+1 < n; i++ {
		if geom.SegmentDistance(p, pg.Points[i], pg.Points[i+1]) <= tol {
			return true
		}
	}
	if pg.Closed && n > 2 {
		return geom.SegmentDistance(p, pg.Points[n-1], pg.Points[0]) <= tol
	}
	return n == 1 && geom.Distance(p, pg.Points[0]) <= tol
}

func (pg Polygon) Translate(dx, dy float64) Geometry {
	out := pg.clone()
	for i := range out.Points {
		out.Points[i].X += dx
		out.Points[i].Y += dy
	}
	return out
}

func (pg Polygon) Scale(origin geom.Point, sx, sy float64) Geometry {
	out := pg.clone()
	for i, p := range out.Points {
		out.Points[i] = geom.Pt(origin.X+(p.X-origin.X)*sx, origin.Y+(p.Y-origin.Y)*sy)
	}
	return out
}

func (pg Polygon) Validate() error {
	if len(pg.Points) < 3 {
		return fmt.Errorf("%w: polygon needs 3 points, got %d", ErrInvalidGeometry, len(pg.Points))
	}
	for _, p := range pg.Points {
		if !finite(p.X, p.Y) {
			return fmt.Errorf("%w: polygon has non-finite coordinates", ErrInvalidGeometry)
		}
	}
	return nil
}

func (pg Polygon) Clone() Geometry { return pg.clone() }

func (pg Polygon) clone() Polygon {
	pg.Points = slices.Clone(pg.Points)
	return pg
}

// Ellipse is centered at (X, Y) and rotated by Rotation degrees.
type Ellipse struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	RadiusX  float64 `json:"radiusX"`
	RadiusY  float64 `json:"radiusY"`
	Rotation float64 `json:"rotation"`
}

func (e Ellipse) Kind() Kind { return KindEllipse }

func (e Ellipse) Bounds() geom.BBox {
	sin, cos := math.Sincos(e.Rotation * math.Pi / 180)
	hw := math.Hypot(e.RadiusX*cos, e.RadiusY*sin)
	hh := math.Hypot(e.RadiusX*sin, e.RadiusY*cos)
	return geom.BBox{Left: e.X - hw, Top: e.Y - hh, Right: e.X + hw, Bottom: e.Y + hh}
}

func (e Ellipse) Contains(p geom.Point, tol float64) bool {
	c := geom.Pt(e.X, e.Y)
	q := geom.Rotate(p, c, -e.Rotation)
	rx, ry := e.RadiusX+tol, e.RadiusY+tol
	if rx <= 0 || ry <= 0 {
		return false
	}
	dx, dy := (q.X-e.X)/rx, (q.Y-e.Y)/ry
	return dx*dx+dy*dy <= 1
}

func (e Ellipse) Translate(dx, dy float64) Geometry {
	e.X += dx
	e.Y += dy
	return e
}

func (e Ellipse) Scale(origin geom.Point, sx, sy float64) Geometry {
	e.X = origin.X + (e.X-origin.X)*sx
	e.Y = origin.Y + (e.Y-origin.Y)*sy
	e.RadiusX *= math.Abs(sx)
	e.RadiusY *= math.Abs(sy)
	return e
}

func (e Ellipse) Validate() error {
	if !finite(e.X, e.Y, e.RadiusX, e.RadiusY, e.Rotation) {
		return fmt.Errorf("%w: ellipse has non-finite coordinates", ErrInvalidGeometry)
	}
	if e.RadiusX <= 0 || e.RadiusY <= 0 {
		return fmt.Errorf("%w: ellipse radii %gx%g", ErrInvalidGeometry, e.RadiusX, e.RadiusY)
	}
	return nil
}

func (e Ellipse) Clone() Geometry { return e }

// KeyPoint is a single marked position with a display width.
type KeyPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Width float64 `json:"width"`
}

func (k KeyPoint) Kind() Kind { return KindKeyPoint }

func (k KeyPoint) Bounds() geom.BBox {
	return geom.BBox{Left: k.X - k.Width, Top: k.Y - k.Width, Right: k.X + k.Width, Bottom: k.Y + k.Width}
}

func (k KeyPoint) Contains(p geom.Point, tol float64) bool {
	return geom.Distance(p, geom.Pt(k.X, k.Y)) <= k.Width+tol
}

func (k KeyPoint) Translate(dx, dy float64) Geometry {
	k.X += dx
	k.Y += dy
	return k
}

func (k KeyPoint) Scale(origin geom.Point, sx, sy float64) Geometry {
	k.X = origin.X + (k.X-origin.X)*sx
	k.Y = origin.Y + (k.Y-origin.Y)*sy
	return k
}

func (k KeyPoint) Validate() error {
	if !finite(k.X, k.Y, k.Width) || k.Width < 0 {
		return fmt.Errorf("%w: keypoint (%g,%g) width %g", ErrInvalidGeometry, k.X, k.Y, k.Width)
	}
	return nil
}

func (k KeyPoint) Clone() Geometry { return k }

// TextSpan selects the characters [Start, End) of a text object.
type TextSpan struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

func (t TextSpan) Kind() Kind                                  { return KindTextSpan }
func (t TextSpan) Bounds() geom.BBox                           { return geom.BBox{} }
func (t TextSpan) Contains(geom.Point, float64) bool           { return false }
func (t TextSpan) Translate(float64, float64) Geometry         { return t }
func (t TextSpan) Scale(geom.Point, float64, float64) Geometry { return t }
func (t TextSpan) Clone() Geometry                             { return t }

func (t TextSpan) Validate() error {
	if t.Start < 0 || t.End < t.Start {
		return fmt.Errorf("%w: text span [%d,%d)", ErrInvalidGeometry, t.Start, t.End)
	}
	return nil
}

// AudioSpan selects [Start, End] seconds of an audio object.
type AudioSpan struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (a AudioSpan) Kind() Kind                                  { return KindAudioSpan }
func (a AudioSpan) Bounds() geom.BBox                           { return geom.BBox{} }
func (a AudioSpan) Contains(geom.Point, float64) bool           { return false }
func (a AudioSpan) Translate(float64, float64) Geometry         { return a }
func (a AudioSpan) Scale(geom.Point, float64, float64) Geometry { return a }
func (a AudioSpan) Clone() Geometry                             { return a }

func (a AudioSpan) Validate() error {
	if !finite(a.Start, a.End) || a.Start < 0 || a.End < a.Start {
		return fmt.Errorf("%w: audio span [%g,%g]", ErrInvalidGeometry, a.Start, a.End)
	}
	return nil
}

// SameGeometry reports whether a and b describe the same shape. Brush
// strokes are never considered equal, so painting always creates a region.
func SameGeometry(a, b Geometry) bool {
	if a == nil || b == nil || a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Box:
		return x == b.(Box)
	case Ellipse:
		return x == b.(Ellipse)
	case KeyPoint:
		return x == b.(KeyPoint)
	case TextSpan:
		y := b.(TextSpan)
		return x.Start == y.Start && x.End == y.End
	case AudioSpan:
		return x == b.(AudioSpan)
	case Polygon:
		y := b.(Polygon)
		return x.Closed == y.Closed && slices.Equal(x.Points, y.Points)
	case Brush:
		return false
	}
	return false
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
