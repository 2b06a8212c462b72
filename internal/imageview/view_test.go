package imageview

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-annotator-mcp/internal/annotation"
	"github.com/ironsheep/image-annotator-mcp/internal/clock"
	"github.com/ironsheep/image-annotator-mcp/internal/config"
	"github.com/ironsheep/image-annotator-mcp/internal/detection"
	"github.com/ironsheep/image-annotator-mcp/internal/geom"
	"github.com/ironsheep/image-annotator-mcp/internal/input"
	"github.com/ironsheep/image-annotator-mcp/internal/labels"
	"github.com/ironsheep/image-annotator-mcp/internal/loop"
	"github.com/ironsheep/image-annotator-mcp/internal/ocr"
	"github.com/ironsheep/image-annotator-mcp/internal/render"
	"github.com/ironsheep/image-annotator-mcp/internal/selection"
	"github.com/ironsheep/image-annotator-mcp/internal/tools"
)

const testLabels = `
controls:
  - name: label
    labels:
      - value: Car
        hotkey: "1"
      - value: Person
        hotkey: "2"
`

func writePNG(t *testing.T, name string, w, h int, paint func(*image.RGBA)) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.White)
		}
	}
	if paint != nil {
		paint(img)
	}
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

type fixture struct {
	clk *clock.Manual
	v   *View
	ctx context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	set, err := labels.Parse([]byte(testLabels))
	require.NoError(t, err)
	clk := clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	v, err := New(config.DefaultConfig(), Deps{Clock: clk, Labels: set})
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return &fixture{clk: clk, v: v, ctx: context.Background()}
}

// do runs fn on the view's loop and fails the test on error.
func (f *fixture) do(t *testing.T, fn func() error) {
	t.Helper()
	require.NoError(t, f.v.Do(f.ctx, fn))
}

func (f *fixture) load(t *testing.T, paths ...string) {
	t.Helper()
	require.NoError(t, f.v.Load(f.ctx, paths...))
}

func (f *fixture) box(t *testing.T, x, y, w, h float64, label string) *annotation.Region {
	t.Helper()
	var r *annotation.Region
	f.do(t, func() (err error) {
		r, err = f.v.Annotation.Create(annotation.Box{X: x, Y: y, Width: w, Height: h},
			[]annotation.LabelState{{From: "label", Type: "rectanglelabels", Values: []string{label}}})
		return err
	})
	return r
}

func TestLoadMakesViewReady(t *testing.T) {
	f := newFixture(t)
	path := writePNG(t, "a.png", 400, 300, nil)
	f.load(t, path)

	f.do(t, func() error {
		assert.True(t, f.v.Ready())
		st := f.v.State()
		assert.Equal(t, path, st.Path)
		assert.Equal(t, 400, st.Width)
		assert.Equal(t, 300, st.Height)
		assert.Equal(t, 1, st.Items)
		vp := f.v.Viewport.Viewport()
		assert.Equal(t, 400.0, vp.NaturalWidth)
		assert.Equal(t, 800.0, vp.StageWidth)
		require.NotNil(t, f.v.Info())
		assert.Equal(t, "png", f.v.Info().Format)
		return nil
	})
}

func TestLoadFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	missing := filepath.Join(t.TempDir(), "missing.png")

	err := f.v.Load(f.ctx, missing)
	var lerr *ResourceLoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, missing, lerr.Path)

	f.do(t, func() error {
		assert.False(t, f.v.Ready())
		assert.Nil(t, f.v.Image())
		assert.Len(t, f.v.Errors(), 1)
		assert.Len(t, f.v.State().Errors, 1)
		return nil
	})
}

func TestLoadWithoutPaths(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.v.Load(f.ctx), ErrNoImages)
}

func TestSetCurrentImage(t *testing.T) {
	f := newFixture(t)
	a := writePNG(t, "a.png", 100, 80, nil)
	b := writePNG(t, "b.png", 200, 50, nil)
	f.load(t, a, b)

	require.NoError(t, f.v.SetCurrentImage(f.ctx, 1))
	f.do(t, func() error {
		assert.Equal(t, 1, f.v.Current())
		assert.Equal(t, 200, f.v.Info().Width)
		assert.Equal(t, 2, f.v.State().Items)
		return nil
	})

	assert.ErrorIs(t, f.v.SetCurrentImage(f.ctx, 2), ErrItemRange)
	assert.ErrorIs(t, f.v.SetCurrentImage(f.ctx, -1), ErrItemRange)
}

func TestSwitchingItemsScopesRegions(t *testing.T) {
	f := newFixture(t)
	f.load(t, writePNG(t, "a.png", 100, 80, nil), writePNG(t, "b.png", 100, 80, nil))
	r := f.box(t, 10, 10, 20, 20, "Car")
	f.do(t, func() error {
		f.v.Selection.Select([]string{r.ID}, selection.Replace)
		return nil
	})

	require.NoError(t, f.v.SetCurrentImage(f.ctx, 1))
	f.do(t, func() error {
		assert.Empty(t, f.v.Selection.IDs())
		assert.Equal(t, 0, f.v.State().Regions)
		return nil
	})
}

func TestDeferredClickRunsOnLoop(t *testing.T) {
	f := newFixture(t)
	f.load(t, writePNG(t, "a.png", 800, 600, nil))
	r := f.box(t, 0, 0, 10, 10, "Car")
	f.do(t, func() error {
		require.NoError(t, f.v.Tools.Select(tools.Rectangle))
		f.v.Selection.Select([]string{r.ID}, selection.Replace)
		f.v.Dispatcher.Handle(input.PointerEvent{
			Kind: input.PointerDown, Screen: geom.Pt(400, 300), Buttons: input.ButtonPrimary,
		})
		assert.True(t, f.v.Dispatcher.Pending())
		return nil
	})

	f.clk.Advance(100 * time.Millisecond)
	require.NoError(t, f.v.Sync(f.ctx))

	f.do(t, func() error {
		st := f.v.State()
		assert.False(t, st.PendingClick)
		assert.Empty(t, st.Selected)
		assert.True(t, st.Drawing)
		return nil
	})
}

func TestLabelHotkeyRelabelsSelection(t *testing.T) {
	f := newFixture(t)
	f.load(t, writePNG(t, "a.png", 100, 100, nil))
	r := f.box(t, 10, 10, 20, 20, "Car")

	f.do(t, func() error {
		assert.Equal(t, []string{"1", "2"}, labelBindings(f.v))
		f.v.Selection.Select([]string{r.ID}, selection.Replace)
		f.v.Dispatcher.KeyDown(input.KeyEvent{Key: "2"})

		got := f.v.Annotation.Get(r.ID)
		assert.Equal(t, []string{"Person"}, got.LabelValues())
		assert.True(t, f.v.Annotation.History.CanUndo())
		assert.Equal(t, []string{"Person"}, f.v.State().ActiveLabels)
		return nil
	})
}

func labelBindings(v *View) []string {
	var out []string
	for _, b := range v.Keymap.Bindings() {
		if strings.HasPrefix(b.Description, "Label ") {
			out = append(out, b.Combo)
		}
	}
	slices.Sort(out)
	return out
}

func TestReplaceLabelsRebindsHotkeys(t *testing.T) {
	f := newFixture(t)
	set, err := labels.Parse([]byte("controls:\n  - name: label\n    labels:\n      - value: Tree\n        hotkey: t\n"))
	require.NoError(t, err)

	f.do(t, func() error {
		before := f.v.Keymap.Len()
		f.v.ReplaceLabels(set)
		assert.Equal(t, before-1, f.v.Keymap.Len())
		f.v.Dispatcher.KeyDown(input.KeyEvent{Key: "t"})
		assert.Equal(t, []string{"Tree"}, f.v.Labels.Selected("label"))
		return nil
	})
}

func TestSuggestionLifecycle(t *testing.T) {
	f := newFixture(t)
	f.load(t, writePNG(t, "a.png", 200, 200, nil))

	var ids []string
	f.do(t, func() (err error) {
		ids, err = f.v.AddSuggestions([]detection.Suggestion{
			{Geometry: annotation.Box{X: 10, Y: 10, Width: 40, Height: 40}, Score: 0.9, Source: detection.SourceRectangle},
			{Geometry: annotation.Box{X: 100, Y: 100, Width: 40, Height: 30}, Score: 0.6, Source: detection.SourceText},
		})
		return err
	})
	require.Len(t, ids, 2)

	f.do(t, func() error {
		st := f.v.State()
		assert.Equal(t, 2, st.Suggestions)
		assert.Equal(t, 0, st.Regions)
		assert.Empty(t, f.v.Annotation.Get(ids[0]).Labels)

		assert.ErrorIs(t, f.v.AcceptSuggestion(ids[0], nil), annotation.ErrNoActiveLabel)

		require.NoError(t, f.v.Labels.Select("label", "Car"))
		require.NoError(t, f.v.AcceptSuggestion(ids[0], nil))
		r := f.v.Annotation.Get(ids[0])
		assert.Equal(t, annotation.OriginPrediction, r.Origin)
		assert.Equal(t, []string{"Car"}, r.LabelValues())
		assert.True(t, f.v.Annotation.History.CanUndo())

		assert.Error(t, f.v.AcceptSuggestion(ids[0], nil), "already accepted")
		assert.Equal(t, 1, f.v.RejectSuggestions())
		st = f.v.State()
		assert.Equal(t, 0, st.Suggestions)
		assert.Equal(t, 1, st.Regions)
		return nil
	})
}

func TestSuggestFindsRectangle(t *testing.T) {
	f := newFixture(t)
	f.load(t, writePNG(t, "a.png", 200, 200, func(img *image.RGBA) {
		for y := 50; y < 110; y++ {
			for x := 40; x < 140; x++ {
				img.Set(x, y, color.Black)
			}
		}
	}))

	opts := detection.DefaultOptions()
	opts.Sources = []detection.Source{detection.SourceRectangle}
	ids, err := f.v.Suggest(f.ctx, opts)
	require.NoError(t, err)
	require.NotEmpty(t, ids)

	f.do(t, func() error {
		r := f.v.Annotation.Get(ids[0])
		require.NotNil(t, r)
		assert.Equal(t, annotation.OriginSuggestion, r.Origin)
		b := r.Bounds()
		assert.InDelta(t, 40, b.Left, 3)
		assert.InDelta(t, 50, b.Top, 3)
		return nil
	})
}

func TestSuggestBeforeLoad(t *testing.T) {
	f := newFixture(t)
	_, err := f.v.Suggest(f.ctx, detection.DefaultOptions())
	assert.ErrorIs(t, err, ErrNotReady)
}

type fakeEngine struct{ text string }

func (e fakeEngine) Recognize(context.Context, []byte, string) (*ocr.Result, error) {
	return &ocr.Result{Text: e.text, Confidence: 90}, nil
}

func TestTranscribeStoresText(t *testing.T) {
	f := newFixture(t)
	f.load(t, writePNG(t, "a.png", 200, 100, nil))
	r := f.box(t, 10, 10, 100, 30, "Car")

	tr := ocr.NewTranscriber(fakeEngine{text: "HELLO"}, ocr.DefaultOptions())
	res, err := f.v.Transcribe(f.ctx, tr, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", res.Text)

	f.do(t, func() error {
		assert.Equal(t, "HELLO", f.v.Annotation.Get(r.ID).Text)
		require.True(t, f.v.Annotation.History.Undo())
		assert.Empty(t, f.v.Annotation.Get(r.ID).Text)
		return nil
	})

	_, err = f.v.Transcribe(f.ctx, tr, "nope")
	assert.ErrorIs(t, err, annotation.ErrUnknownRegion)
}

func TestCropRegion(t *testing.T) {
	f := newFixture(t)
	f.load(t, writePNG(t, "a.png", 200, 100, nil))
	r := f.box(t, 10, 10, 50, 20, "Car")

	crop, err := f.v.CropRegion(f.ctx, r.ID, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 50, crop.Width)
	assert.Equal(t, 20, crop.Height)
	assert.Equal(t, "image/png", crop.MimeType)
}

func TestExportImport(t *testing.T) {
	f := newFixture(t)
	path := writePNG(t, "a.png", 200, 100, nil)
	f.load(t, path)
	a := f.box(t, 10, 10, 50, 20, "Car")
	b := f.box(t, 100, 50, 20, 20, "Person")
	f.do(t, func() error { return f.v.Annotation.AddRelation(a.ID, b.ID, annotation.DirectionRight) })

	data, err := f.v.Export(f.ctx)
	require.NoError(t, err)

	g := newFixture(t)
	g.load(t, path)
	n, err := g.v.Import(g.ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	g.do(t, func() error {
		got := g.v.Annotation.Get(a.ID)
		require.NotNil(t, got)
		assert.Equal(t, annotation.Box{X: 10, Y: 10, Width: 50, Height: 20}, got.Geometry)
		assert.Len(t, g.v.Annotation.Relations(), 1)
		require.True(t, g.v.Annotation.History.Undo())
		assert.Equal(t, 0, g.v.Annotation.Len())
		return nil
	})

	_, err = g.v.Import(g.ctx, []byte("{"))
	assert.Error(t, err)
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	f.load(t, writePNG(t, "a.png", 120, 80, nil))
	f.box(t, 10, 10, 50, 20, "Car")

	img, err := f.v.Snapshot(f.ctx, render.Options{})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 120, 80), img.Bounds())
}

func TestCloseStopsLoop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.v.Close())
	require.NoError(t, f.v.Close())

	err := f.v.Do(f.ctx, func() error { return nil })
	assert.True(t, errors.Is(err, loop.ErrClosed))
}

func TestCloseReportsTeardownFailure(t *testing.T) {
	f := newFixture(t)
	f.do(t, func() error {
		f.v.Annotation = nil
		return nil
	})

	err := f.v.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event loop panic")
	assert.ErrorIs(t, f.v.Do(f.ctx, func() error { return nil }), loop.ErrClosed)
	assert.NoError(t, f.v.Close())
}
