package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-annotator-mcp/internal/annotation"
	"github.com/ironsheep/image-annotator-mcp/internal/geom"
	"github.com/ironsheep/image-annotator-mcp/internal/input"
)

func at(kind EventKind, x, y float64) Event {
	return Event{Kind: kind, Point: geom.Pt(x, y), Canvas: geom.Pt(x, y)}
}

func key(k string) Event { return Event{Kind: KeyDown, Key: k} }

func newManager(t *testing.T, n Name) *Manager {
	t.Helper()
	m := NewManager(DefaultOptions(), nil)
	require.NoError(t, m.Select(n))
	return m
}

func TestEligibleForDeselect(t *testing.T) {
	tests := []struct {
		name Name
		want bool
	}{
		{None, true},
		{Rectangle, true},
		{RectangleDynamic, true},
		{Rectangle3Point, true},
		{Ellipse, true},
		{EllipseDynamic, true},
		{Polygon, true},
		{PolygonDynamic, true},
		{Brush, false},
		{Eraser, false},
		{ZoomPan, false},
		{KeyPoint, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EligibleForDeselect(tt.name), "tool %q", tt.name)
	}
}

func TestParseName(t *testing.T) {
	n, err := ParseName("polygon")
	require.NoError(t, err)
	assert.Equal(t, Polygon, n)

	n, err = ParseName("EllipseTool-dynamic")
	require.NoError(t, err)
	assert.Equal(t, EllipseDynamic, n)
	assert.True(t, n.Dynamic())

	_, err = ParseName("LassoTool")
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestSelectDiscardsDraft(t *testing.T) {
	m := newManager(t, Polygon)
	m.Dispatch(at(Down, 0, 0))
	m.Dispatch(at(Down, 10, 0))
	require.True(t, m.Drawing())

	require.NoError(t, m.Select(Rectangle))
	assert.False(t, m.Drawing())
	assert.Nil(t, m.Draft())

	require.NoError(t, m.Select(Polygon))
	assert.Nil(t, m.Draft(), "draft does not come back when the tool is reselected")

	assert.ErrorIs(t, m.Select("Lasso"), ErrUnknownTool)
	assert.Equal(t, Polygon, m.Active())

	require.NoError(t, m.Select(None))
	assert.Equal(t, None, m.Active())
	assert.Equal(t, Outcome{}, m.Dispatch(at(Down, 0, 0)))
}

func TestRectangleTool(t *testing.T) {
	m := newManager(t, Rectangle)
	m.Dispatch(at(Down, 50, 40))
	m.Dispatch(at(Move, 20, 10))
	assert.Equal(t, annotation.Box{X: 20, Y: 10, Width: 30, Height: 30}, m.Draft())

	out := m.Dispatch(at(Up, 10, 20))
	assert.Equal(t, annotation.Box{X: 10, Y: 20, Width: 40, Height: 20}, out.Commit)
	assert.False(t, out.Dynamic)
	assert.False(t, m.Drawing())

	m.Dispatch(at(Down, 0, 0))
	out = m.Dispatch(at(Up, 1, 1))
	assert.Nil(t, out.Commit, "too small")
	assert.True(t, out.Consumed)
}

func TestRectangleToolShiftMakesSquare(t *testing.T) {
	m := newManager(t, RectangleDynamic)
	m.Dispatch(at(Down, 0, 0))
	ev := at(Up, 30, -10)
	ev.Mods = input.Shift
	out := m.Dispatch(ev)
	assert.Equal(t, annotation.Box{X: 0, Y: -30, Width: 30, Height: 30}, out.Commit)
	assert.True(t, out.Dynamic)
}

func TestEllipseTool(t *testing.T) {
	m := newManager(t, Ellipse)
	m.Dispatch(at(Down, 100, 100))
	out := m.Dispatch(at(Up, 130, 80))
	assert.Equal(t, annotation.Ellipse{X: 100, Y: 100, RadiusX: 30, RadiusY: 20}, out.Commit)
}

func TestRectangle3PointTool(t *testing.T) {
	m := newManager(t, Rectangle3Point)
	m.Dispatch(at(Down, 0, 0))
	m.Dispatch(at(Down, 10, 0))
	m.Dispatch(at(Move, 5, 2))
	assert.Equal(t, annotation.Box{X: 0, Y: 0, Width: 10, Height: 2}, m.Draft())
	out := m.Dispatch(at(Down, 5, 4))
	assert.Equal(t, annotation.Box{X: 0, Y: 0, Width: 10, Height: 4}, out.Commit)

	m.Dispatch(at(Down, 0, 0))
	m.Dispatch(at(Down, 10, 0))
	out = m.Dispatch(at(Down, 5, -4))
	b, ok := out.Commit.(annotation.Box)
	require.True(t, ok)
	assert.Equal(t, 180.0, b.Rotation)
	bounds := b.Bounds()
	assert.InDelta(t, 0, bounds.Left, 1e-9)
	assert.InDelta(t, -4, bounds.Top, 1e-9)
	assert.InDelta(t, 10, bounds.Right, 1e-9)
	assert.InDelta(t, 0, bounds.Bottom, 1e-9)

	m.Dispatch(at(Down, 0, 0))
	m.Dispatch(key("escape"))
	assert.False(t, m.Drawing())
}

func TestBoxFromEdgeRotation(t *testing.T) {
	b, ok := boxFromEdge(geom.Pt(0, 0), geom.Pt(0, 10), geom.Pt(-3, 5))
	require.True(t, ok)
	assert.Equal(t, 90.0, b.Rotation)
	assert.Equal(t, 10.0, b.Width)
	assert.Equal(t, 3.0, b.Height)

	_, ok = boxFromEdge(geom.Pt(1, 1), geom.Pt(1, 1), geom.Pt(2, 2))
	assert.False(t, ok)
}

func TestPolygonToolClosing(t *testing.T) {
	square := []geom.Point{geom.Pt(0, 0), geom.Pt(100, 0), geom.Pt(100, 100)}

	t.Run("click near first vertex", func(t *testing.T) {
		m := newManager(t, Polygon)
		for _, p := range square {
			m.Dispatch(at(Down, p.X, p.Y))
			m.Dispatch(at(Up, p.X, p.Y))
		}
		out := m.Dispatch(at(Down, 3, 4))
		assert.Equal(t, annotation.Polygon{Points: square, Closed: true}, out.Commit)
		assert.False(t, m.Drawing())
	})

	t.Run("double click", func(t *testing.T) {
		m := newManager(t, PolygonDynamic)
		for _, p := range square {
			m.Dispatch(at(Down, p.X, p.Y))
		}
		m.Dispatch(at(Down, 100, 100))
		out := m.Dispatch(at(DoubleClick, 100, 100))
		assert.Equal(t, annotation.Polygon{Points: square, Closed: true}, out.Commit)
		assert.True(t, out.Dynamic)
	})

	t.Run("enter", func(t *testing.T) {
		m := newManager(t, Polygon)
		for _, p := range square {
			m.Dispatch(at(Down, p.X, p.Y))
		}
		out := m.Dispatch(key("enter"))
		assert.NotNil(t, out.Commit)
	})

	t.Run("backspace and escape", func(t *testing.T) {
		m := newManager(t, Polygon)
		for _, p := range square {
			m.Dispatch(at(Down, p.X, p.Y))
		}
		m.Dispatch(key("backspace"))
		assert.Nil(t, m.Dispatch(key("enter")).Commit, "two vertices cannot close")
		m.Dispatch(at(Move, 50, 50))
		assert.Equal(t, annotation.Polygon{Points: []geom.Point{geom.Pt(0, 0), geom.Pt(100, 0), geom.Pt(50, 50)}}, m.Draft())
		m.Dispatch(key("escape"))
		assert.False(t, m.Drawing())
	})
}

func TestKeyPointTool(t *testing.T) {
	m := newManager(t, KeyPoint)
	out := m.Dispatch(at(Down, 7, 8))
	assert.Equal(t, annotation.KeyPoint{X: 7, Y: 8, Width: 5}, out.Commit)
	assert.False(t, m.Drawing())
}

func TestBrushAndEraser(t *testing.T) {
	m := newManager(t, Brush)
	m.Dispatch(at(Down, 10, 10))
	m.Dispatch(at(Move, 30, 10))
	require.IsType(t, annotation.Brush{}, m.Draft())
	out := m.Dispatch(at(Up, 30, 10))
	b, ok := out.Commit.(annotation.Brush)
	require.True(t, ok)
	require.Len(t, b.Strokes, 1)
	assert.NotNil(t, b.Mask)
	assert.True(t, b.Contains(geom.Pt(20, 10), 0))

	require.NoError(t, m.Select(Eraser))
	m.Dispatch(at(Down, 20, 10))
	out = m.Dispatch(at(Up, 20, 10))
	assert.Nil(t, out.Commit)
	require.NotNil(t, out.Erase)
	assert.True(t, out.Erase.Erase)
}

func TestPanTool(t *testing.T) {
	m := newManager(t, ZoomPan)
	assert.Nil(t, m.Dispatch(at(Move, 5, 5)).Pan)
	m.Dispatch(at(Down, 10, 10))
	out := m.Dispatch(at(Move, 15, 7))
	require.NotNil(t, out.Pan)
	assert.Equal(t, geom.Pt(5, -3), *out.Pan)
	out = m.Dispatch(at(Move, 20, 7))
	assert.Equal(t, geom.Pt(5, 0), *out.Pan)
	assert.True(t, m.Dispatch(at(Up, 20, 7)).Consumed)
	assert.False(t, m.Drawing())
}
