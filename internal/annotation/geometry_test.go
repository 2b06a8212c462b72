package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-annotator-mcp/internal/geom"
)

func TestBoxRotatedBoundsAndContains(t *testing.T) {
	b := Box{X: 0, Y: 0, Width: 10, Height: 10, Rotation: 90}
	bb := b.Bounds()
	assert.InDelta(t, -10, bb.Left, 1e-9)
	assert.InDelta(t, 0, bb.Right, 1e-9)
	assert.InDelta(t, 10, bb.Bottom, 1e-9)

	assert.True(t, b.Contains(geom.Pt(-5, 5), 0))
	assert.False(t, b.Contains(geom.Pt(5, 5), 0))
}

func TestEllipseContains(t *testing.T) {
	e := Ellipse{X: 50, Y: 50, RadiusX: 20, RadiusY: 10}
	assert.True(t, e.Contains(geom.Pt(65, 50), 0))
	assert.False(t, e.Contains(geom.Pt(50, 65), 0))
	assert.True(t, e.Contains(geom.Pt(50, 62), 3))
	assert.Equal(t, geom.BBox{Left: 30, Top: 40, Right: 70, Bottom: 60}, e.Bounds())
}

func TestPolygonOpenAndClosed(t *testing.T) {
	open := Polygon{Points: []geom.Point{geom.Pt(0, 0), geom.Pt(10, 0), geom.Pt(10, 10)}}
	assert.NoError(t, open.Validate())
	assert.False(t, open.Contains(geom.Pt(7, 3), 0))
	assert.True(t, open.Contains(geom.Pt(5, 1), 1))

	closed := open
	closed.Closed = true
	assert.True(t, closed.Contains(geom.Pt(7, 3), 0))

	assert.ErrorIs(t, Polygon{}.Validate(), ErrInvalidGeometry)
	assert.ErrorIs(t, Polygon{Points: []geom.Point{geom.Pt(0, 0), geom.Pt(10, 10)}}.Validate(), ErrInvalidGeometry)
}

func TestTransformsDoNotAlias(t *testing.T) {
	pg := Polygon{Points: []geom.Point{geom.Pt(0, 0), geom.Pt(10, 0), geom.Pt(0, 10)}, Closed: true}
	moved := pg.Translate(5, 5).(Polygon)
	assert.Equal(t, geom.Pt(0, 0), pg.Points[0])
	assert.Equal(t, geom.Pt(5, 5), moved.Points[0])

	scaled := pg.Scale(geom.Pt(0, 0), 2, 3).(Polygon)
	assert.Equal(t, geom.Pt(0, 30), scaled.Points[2])
}

func TestSpanValidation(t *testing.T) {
	assert.ErrorIs(t, TextSpan{Start: 5, End: 2}.Validate(), ErrInvalidGeometry)
	assert.ErrorIs(t, AudioSpan{Start: -1, End: 2}.Validate(), ErrInvalidGeometry)
	assert.False(t, KindAudioSpan.Spatial())
	assert.False(t, KindTextSpan.SupportsTransform())
}

func TestSameGeometry(t *testing.T) {
	assert.True(t, SameGeometry(TextSpan{Start: 1, End: 4, Text: "abc"}, TextSpan{Start: 1, End: 4}))
	assert.False(t, SameGeometry(Box{Width: 1, Height: 1}, Ellipse{RadiusX: 1, RadiusY: 1}))
	b := Brush{Strokes: []Stroke{{Points: []geom.Point{geom.Pt(1, 1)}, Size: 2}}}
	assert.False(t, SameGeometry(b, b))
}

func TestBrushRasterizeAndErase(t *testing.T) {
	b := Brush{Strokes: []Stroke{{Points: []geom.Point{geom.Pt(10, 10), geom.Pt(30, 10)}, Size: 6}}}
	require.NoError(t, b.Validate())
	b = b.Rasterize()
	require.NotNil(t, b.Mask)
	assert.True(t, b.Contains(geom.Pt(20, 10), 0))
	assert.True(t, b.Contains(geom.Pt(20, 12), 0))
	assert.False(t, b.Contains(geom.Pt(20, 20), 0))
	before := b.Area()
	assert.Greater(t, before, 40)

	erased := b.WithStroke(Stroke{Points: []geom.Point{geom.Pt(20, 5), geom.Pt(20, 15)}, Size: 4, Erase: true})
	assert.False(t, erased.Contains(geom.Pt(20, 10), 0))
	assert.True(t, erased.Contains(geom.Pt(12, 10), 0))
	assert.Less(t, erased.Area(), before)

	moved := erased.Translate(100, 0).(Brush)
	assert.True(t, moved.Contains(geom.Pt(112, 10), 0))
	assert.False(t, moved.Contains(geom.Pt(12, 10), 0))
}

func TestBrushValidation(t *testing.T) {
	assert.Error(t, Brush{}.Validate())
	assert.Error(t, Brush{Strokes: []Stroke{{Points: []geom.Point{geom.Pt(1, 1)}, Size: 3, Erase: true}}}.Validate())
}
