package render

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-annotator-mcp/internal/annotation"
	"github.com/ironsheep/image-annotator-mcp/internal/geom"
)

var red = color.NRGBA{R: 255, A: 255}

func white(w, h int) *image.RGBA {
	m := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(m, m.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return m
}

func rgba(c color.Color) color.RGBA { return color.RGBAModel.Convert(c).(color.RGBA) }

func newStore(t *testing.T) *annotation.Store {
	t.Helper()
	return annotation.NewStore(nil, nil)
}

func create(t *testing.T, s *annotation.Store, g annotation.Geometry, opts ...annotation.CreateOption) *annotation.Region {
	t.Helper()
	opts = append(opts, annotation.WithoutLabels())
	r, err := s.Create(g, nil, opts...)
	require.NoError(t, err)
	return r
}

func TestSnapshotDrawsBox(t *testing.T) {
	s := newStore(t)
	create(t, s, annotation.Box{X: 10, Y: 10, Width: 40, Height: 40})

	out := Snapshot(white(100, 100), s.All(), nil, Options{})
	require.Equal(t, image.Rect(0, 0, 100, 100), out.Bounds())

	edge := rgba(out.At(10, 30))
	assert.Equal(t, uint8(255), edge.R)
	assert.Less(t, edge.G, uint8(60), "outline is solid red")

	inside := rgba(out.At(30, 30))
	assert.Equal(t, uint8(255), inside.R)
	assert.InDelta(t, 204, int(inside.G), 3, "fill is 20%% red")

	assert.Equal(t, color.RGBA{255, 255, 255, 255}, rgba(out.At(80, 80)))
}

func TestSnapshotSkipsHiddenAndSpans(t *testing.T) {
	s := newStore(t)
	create(t, s, annotation.Box{X: 10, Y: 10, Width: 40, Height: 40}, annotation.WithHidden())
	create(t, s, annotation.TextSpan{Start: 0, End: 4})

	out := Snapshot(white(60, 60), s.All(), nil, Options{})
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, rgba(out.At(10, 30)))
}

func TestSnapshotScalesDown(t *testing.T) {
	s := newStore(t)
	create(t, s, annotation.Box{X: 100, Y: 100, Width: 80, Height: 80})

	out := Snapshot(white(400, 200), s.All(), nil, Options{MaxSize: 200})
	require.Equal(t, image.Rect(0, 0, 200, 100), out.Bounds())

	// The box edge at natural x=100 lands at x=50.
	assert.Less(t, rgba(out.At(50, 70)).G, uint8(60))
	assert.Equal(t, uint8(255), rgba(out.At(20, 20)).G)
}

func TestSnapshotPalette(t *testing.T) {
	s := newStore(t)
	create(t, s, annotation.Polygon{Points: []geom.Point{geom.Pt(10, 10), geom.Pt(50, 10), geom.Pt(30, 50)}, Closed: true})

	blue := color.NRGBA{B: 255, A: 255}
	out := Snapshot(white(60, 60), s.All(), func(*annotation.Region) color.Color { return blue }, Options{})

	edge := rgba(out.At(30, 10))
	assert.Equal(t, uint8(255), edge.B)
	assert.Less(t, edge.R, uint8(60))
}

func TestSnapshotSuggestionsAreFainter(t *testing.T) {
	s := newStore(t)
	create(t, s, annotation.Box{X: 10, Y: 10, Width: 20, Height: 20})
	create(t, s, annotation.Box{X: 50, Y: 10, Width: 20, Height: 20}, annotation.WithOrigin(annotation.OriginSuggestion, 0.9))

	out := Snapshot(white(100, 50), s.All(), nil, Options{})
	solid := rgba(out.At(10, 20)).G
	faint := rgba(out.At(50, 20)).G
	assert.Greater(t, faint, solid)
}

func TestSnapshotSelectionHandles(t *testing.T) {
	s := newStore(t)
	r := create(t, s, annotation.Box{X: 20, Y: 20, Width: 40, Height: 40})

	before := Snapshot(white(100, 100), s.All(), nil, Options{})
	s.SetSelected([]string{r.ID}, true)
	after := Snapshot(white(100, 100), s.All(), nil, Options{})

	// Just inside the top-left corner the fill shows through unless a
	// white handle covers it.
	assert.InDelta(t, 204, int(rgba(before.At(21, 21)).G), 3)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, rgba(after.At(21, 21)))
}

func TestSnapshotBrushAndKeyPoint(t *testing.T) {
	s := newStore(t)
	brush := annotation.Brush{}.WithStroke(annotation.Stroke{Points: []geom.Point{geom.Pt(10, 50), geom.Pt(90, 50)}, Size: 10})
	create(t, s, brush)
	create(t, s, annotation.KeyPoint{X: 50, Y: 20, Width: 4})

	out := Snapshot(white(100, 100), s.All(), nil, Options{})
	assert.Less(t, rgba(out.At(50, 50)).G, uint8(200), "brush painted")
	assert.Less(t, rgba(out.At(50, 20)).G, uint8(60), "keypoint painted")
	assert.Equal(t, uint8(255), rgba(out.At(50, 80)).G)
}

func TestSnapshotGridAndLabels(t *testing.T) {
	labels := annotation.LabelState{From: "label", Type: "rectanglelabels", Values: []string{"Car"}}
	s := annotation.NewStore(nil, nil)
	_, err := s.Create(annotation.Box{X: 10, Y: 10, Width: 60, Height: 30}, []annotation.LabelState{labels})
	require.NoError(t, err)

	plain := Snapshot(white(100, 100), s.All(), nil, Options{})
	decorated := Snapshot(white(100, 100), s.All(), nil, Options{ShowLabels: true, GridSize: 25})

	assert.NotEqual(t, plain.At(75, 90), decorated.At(75, 90), "grid line at x=75")
	diff := 0
	for y := 12; y < 26; y++ {
		for x := 12; x < 40; x++ {
			if plain.At(x, y) != decorated.At(x, y) {
				diff++
			}
		}
	}
	assert.Positive(t, diff, "label drawn")
}
