package tools

import (
	"math"
	"slices"

	"github.com/ironsheep/image-annotator-mcp/internal/annotation"
	"github.com/ironsheep/image-annotator-mcp/internal/geom"
	"github.com/ironsheep/image-annotator-mcp/internal/input"
)

// dragTool draws a shape by pressing, dragging and releasing.
type dragTool struct {
	name  Name
	opts  Options
	shape func(start, end geom.Point, square bool) annotation.Geometry

	down       bool
	start, cur geom.Point
	square     bool
}

func (t *dragTool) Name() Name { return t.name }

func (t *dragTool) Handle(ev Event) Outcome {
	switch ev.Kind {
	case Down:
		t.down = true
		t.start, t.cur = ev.Point, ev.Point
		t.square = ev.Mods.Has(input.Shift)
		return Outcome{Consumed: true}
	case Move:
		if !t.down {
			return Outcome{}
		}
		t.cur = ev.Point
		t.square = ev.Mods.Has(input.Shift)
		return Outcome{Consumed: true}
	case Up:
		if !t.down {
			return Outcome{}
		}
		t.cur = ev.Point
		t.square = ev.Mods.Has(input.Shift)
		g := t.shape(t.start, t.cur, t.square)
		t.Reset()
		b := g.Bounds()
		if b.Width() < t.opts.MinSize || b.Height() < t.opts.MinSize {
			return Outcome{Consumed: true}
		}
		return Outcome{Commit: g, Consumed: true}
	case KeyDown:
		if ev.Key == "escape" && t.down {
			t.Reset()
			return Outcome{Consumed: true}
		}
	}
	return Outcome{}
}

func (t *dragTool) Draft() annotation.Geometry {
	if !t.down {
		return nil
	}
	return t.shape(t.start, t.cur, t.square)
}

func (t *dragTool) Drawing() bool { return t.down }

func (t *dragTool) Reset() { t.down, t.square = false, false }

func boxFromDrag(start, end geom.Point, square bool) annotation.Geometry {
	w, h := end.X-start.X, end.Y-start.Y
	if square {
		side := math.Max(math.Abs(w), math.Abs(h))
		w = math.Copysign(side, w)
		h = math.Copysign(side, h)
	}
	r := geom.RectXYWH(start.X, start.Y, w, h)
	return annotation.Box{X: r.Left, Y: r.Top, Width: r.Width(), Height: r.Height()}
}

// ellipseFromDrag centres the ellipse on the press point.
func ellipseFromDrag(start, end geom.Point, circle bool) annotation.Geometry {
	rx, ry := math.Abs(end.X-start.X), math.Abs(end.Y-start.Y)
	if circle {
		rx = math.Max(rx, ry)
		ry = rx
	}
	return annotation.Ellipse{X: start.X, Y: start.Y, RadiusX: rx, RadiusY: ry}
}

// threePointTool draws a rotated box: the first two clicks fix one edge,
// the third its height.
type threePointTool struct {
	name Name
	opts Options

	pts []geom.Point
	cur geom.Point
}

func (t *threePointTool) Name() Name { return t.name }

func (t *threePointTool) Handle(ev Event) Outcome {
	switch ev.Kind {
	case Down:
		t.cur = ev.Point
		t.pts = append(t.pts, ev.Point)
		if len(t.pts) < 3 {
			return Outcome{Consumed: true}
		}
		g, ok := boxFromEdge(t.pts[0], t.pts[1], t.pts[2])
		t.Reset()
		if !ok || g.Width < t.opts.MinSize || g.Height < t.opts.MinSize {
			return Outcome{Consumed: true}
		}
		return Outcome{Commit: g, Consumed: true}
	case Move:
		t.cur = ev.Point
		return Outcome{Consumed: len(t.pts) > 0}
	case Up:
		return Outcome{Consumed: len(t.pts) > 0}
	case KeyDown:
		if ev.Key == "escape" && len(t.pts) > 0 {
			t.Reset()
			return Outcome{Consumed: true}
		}
	}
	return Outcome{}
}

func (t *threePointTool) Draft() annotation.Geometry {
	switch len(t.pts) {
	case 1:
		return annotation.Polygon{Points: []geom.Point{t.pts[0], t.cur}}
	case 2:
		if g, ok := boxFromEdge(t.pts[0], t.pts[1], t.cur); ok {
			return g
		}
		return annotation.Polygon{Points: slices.Clone(t.pts)}
	}
	return nil
}

func (t *threePointTool) Drawing() bool { return len(t.pts) > 0 }

func (t *threePointTool) Reset() { t.pts = nil }

// boxFromEdge builds the box with edge a→b whose opposite edge passes
// through c.
func boxFromEdge(a, b, c geom.Point) (annotation.Box, bool) {
	dx, dy := b.X-a.X, b.Y-a.Y
	w := math.Hypot(dx, dy)
	if w == 0 {
		return annotation.Box{}, false
	}
	rot := math.Atan2(dy, dx) * 180 / math.Pi
	h := (dx*(c.Y-a.Y) - dy*(c.X-a.X)) / w
	if h < 0 {
		return annotation.Box{X: b.X, Y: b.Y, Width: w, Height: -h, Rotation: normalizeDeg(rot + 180)}, true
	}
	return annotation.Box{X: a.X, Y: a.Y, Width: w, Height: h, Rotation: normalizeDeg(rot)}, true
}

func normalizeDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// polygonTool adds a vertex per click and closes on a click near the first
// vertex, a double click or Enter.
type polygonTool struct {
	name Name
	opts Options

	pts   []geom.Point
	first geom.Point // canvas position of pts[0]
	cur   geom.Point
}

func (t *polygonTool) Name() Name { return t.name }

func (t *polygonTool) Handle(ev Event) Outcome {
	switch ev.Kind {
	case Down:
		if len(t.pts) >= 3 && geom.Distance(ev.Canvas, t.first) <= t.opts.CloseRadius {
			return t.close()
		}
		if n := len(t.pts); n > 0 && t.pts[n-1] == ev.Point {
			return Outcome{Consumed: true}
		}
		if len(t.pts) == 0 {
			t.first = ev.Canvas
		}
		t.pts = append(t.pts, ev.Point)
		t.cur = ev.Point
		return Outcome{Consumed: true}
	case Move:
		t.cur = ev.Point
		return Outcome{Consumed: len(t.pts) > 0}
	case Up:
		return Outcome{Consumed: len(t.pts) > 0}
	case DoubleClick:
		if len(t.pts) >= 3 {
			return t.close()
		}
	case KeyDown:
		switch ev.Key {
		case "enter":
			if len(t.pts) >= 3 {
				return t.close()
			}
		case "escape":
			if len(t.pts) > 0 {
				t.Reset()
				return Outcome{Consumed: true}
			}
		case "backspace":
			if len(t.pts) > 0 {
				t.pts = t.pts[:len(t.pts)-1]
				return Outcome{Consumed: true}
			}
		}
	}
	return Outcome{}
}

func (t *polygonTool) close() Outcome {
	g := annotation.Polygon{Points: slices.Clone(t.pts), Closed: true}
	t.Reset()
	if g.Validate() != nil {
		return Outcome{Consumed: true}
	}
	return Outcome{Commit: g, Consumed: true}
}

func (t *polygonTool) Draft() annotation.Geometry {
	if len(t.pts) == 0 {
		return nil
	}
	return annotation.Polygon{Points: append(slices.Clone(t.pts), t.cur)}
}

func (t *polygonTool) Drawing() bool { return len(t.pts) > 0 }

func (t *polygonTool) Reset() { t.pts = nil }

// keyPointTool commits a point on every press.
type keyPointTool struct {
	opts Options
}

func (t *keyPointTool) Name() Name { return KeyPoint }

func (t *keyPointTool) Handle(ev Event) Outcome {
	if ev.Kind != Down {
		return Outcome{}
	}
	return Outcome{
		Commit:   annotation.KeyPoint{X: ev.Point.X, Y: ev.Point.Y, Width: t.opts.KeyPointWidth},
		Consumed: true,
	}
}

func (t *keyPointTool) Draft() annotation.Geometry { return nil }
func (t *keyPointTool) Drawing() bool              { return false }
func (t *keyPointTool) Reset()                     {}

// brushTool paints (or erases) one stroke per drag.
type brushTool struct {
	name  Name
	opts  Options
	erase bool

	stroke *annotation.Stroke
}

func (t *brushTool) Name() Name { return t.name }

func (t *brushTool) Handle(ev Event) Outcome {
	switch ev.Kind {
	case Down:
		t.stroke = &annotation.Stroke{Points: []geom.Point{ev.Point}, Size: t.opts.BrushSize, Erase: t.erase}
		return Outcome{Consumed: true}
	case Move:
		if t.stroke == nil {
			return Outcome{}
		}
		t.stroke.Points = append(t.stroke.Points, ev.Point)
		return Outcome{Consumed: true}
	case Up:
		if t.stroke == nil {
			return Outcome{}
		}
		s := t.stroke
		t.stroke = nil
		if t.erase {
			return Outcome{Erase: s, Consumed: true}
		}
		return Outcome{Commit: annotation.Brush{}.WithStroke(*s), Consumed: true}
	}
	return Outcome{}
}

func (t *brushTool) Draft() annotation.Geometry {
	if t.stroke == nil || t.erase {
		return nil
	}
	return annotation.Brush{Strokes: []annotation.Stroke{{Points: slices.Clone(t.stroke.Points), Size: t.stroke.Size}}}
}

func (t *brushTool) Drawing() bool { return t.stroke != nil }

func (t *brushTool) Reset() { t.stroke = nil }

// panTool drags the viewport.
type panTool struct {
	down bool
	last geom.Point
}

func (t *panTool) Name() Name { return ZoomPan }

func (t *panTool) Handle(ev Event) Outcome {
	switch ev.Kind {
	case Down:
		t.down = true
		t.last = ev.Canvas
		return Outcome{Consumed: true}
	case Move:
		if !t.down {
			return Outcome{}
		}
		d := geom.Pt(ev.Canvas.X-t.last.X, ev.Canvas.Y-t.last.Y)
		t.last = ev.Canvas
		return Outcome{Pan: &d, Consumed: true}
	case Up:
		was := t.down
		t.down = false
		return Outcome{Consumed: was}
	}
	return Outcome{}
}

func (t *panTool) Draft() annotation.Geometry { return nil }

// Drawing is false: panning is not an annotation edit.
func (t *panTool) Drawing() bool { return false }

func (t *panTool) Reset() { t.down = false }
