package detection

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/ironsheep/image-annotator-mcp/internal/annotation"
	"github.com/ironsheep/image-annotator-mcp/internal/geom"
)

func TestSuggest_Rectangle(t *testing.T) {
	img := createTestImage(200, 150, color.White)
	fillRect(img, 40, 30, 140, 110, color.RGBA{200, 0, 0, 255})

	opts := DefaultOptions()
	opts.Sources = []Source{SourceRectangle}
	got, err := Suggest(context.Background(), img, opts)
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(got))
	}

	s := got[0]
	box, ok := s.Geometry.(annotation.Box)
	if !ok {
		t.Fatalf("geometry: got %T, want annotation.Box", s.Geometry)
	}
	if s.Source != SourceRectangle || s.Color == "" {
		t.Errorf("source/color: got %s %q", s.Source, s.Color)
	}
	if iou(box.Bounds(), geom.RectXYWH(40, 30, 100, 80)) < 0.9 {
		t.Errorf("box %+v does not match the drawn rectangle", box)
	}
	if err := box.Validate(); err != nil {
		t.Errorf("suggested box is invalid: %v", err)
	}
}

func TestSuggest_DownscalesLargeImages(t *testing.T) {
	img := createTestImage(1024, 768, color.White)
	fillRect(img, 200, 200, 600, 500, color.Black)

	opts := DefaultOptions()
	opts.MaxSide = 512
	opts.Sources = []Source{SourceRectangle}
	got, err := Suggest(context.Background(), img, opts)
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}

	target := geom.RectXYWH(200, 200, 400, 300)
	for _, s := range got {
		if iou(s.Geometry.Bounds(), target) > 0.9 {
			return
		}
	}
	t.Errorf("no suggestion in source coordinates matched %+v: %+v", target, got)
}

func TestSuggest_EmptyImage(t *testing.T) {
	got, err := Suggest(context.Background(), createTestImage(120, 120, color.White), DefaultOptions())
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no suggestions, got %d", len(got))
	}

	got, err = Suggest(context.Background(), image.NewRGBA(image.Rectangle{}), DefaultOptions())
	if err != nil || got != nil {
		t.Errorf("zero-size image: got %v, %v", got, err)
	}
}

func TestSuggest_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Suggest(ctx, createTestImage(200, 200, color.White), DefaultOptions()); err != context.Canceled {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestSuggest_Limit(t *testing.T) {
	img := createTestImage(300, 100, color.White)
	for i := 0; i < 4; i++ {
		fillRect(img, 10+i*70, 20, 60+i*70, 70, color.Black)
	}

	opts := DefaultOptions()
	opts.Sources = []Source{SourceRectangle}
	opts.Limit = 2
	got, err := Suggest(context.Background(), img, opts)
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected limit of 2, got %d", len(got))
	}
}

func TestSuppress(t *testing.T) {
	in := []Suggestion{
		{Geometry: annotation.Box{X: 0, Y: 0, Width: 100, Height: 100}, Score: 0.9},
		{Geometry: annotation.Box{X: 2, Y: 2, Width: 100, Height: 100}, Score: 0.8},
		{Geometry: annotation.Ellipse{X: 300, Y: 300, RadiusX: 10, RadiusY: 10}, Score: 0.7},
	}

	got := suppress(in, 0.7)

	if len(got) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(got))
	}
	if got[0].Score != 0.9 || got[1].Score != 0.7 {
		t.Errorf("wrong survivors: %+v", got)
	}
}

func TestIOU(t *testing.T) {
	a := geom.RectXYWH(0, 0, 10, 10)
	tests := []struct {
		name string
		b    geom.BBox
		want float64
	}{
		{"same", a, 1},
		{"half", geom.RectXYWH(5, 0, 10, 10), 50.0 / 150.0},
		{"apart", geom.RectXYWH(20, 20, 5, 5), 0},
		{"touching", geom.RectXYWH(10, 0, 10, 10), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := iou(a, tt.b); got != tt.want {
				t.Errorf("iou = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOptionsRuns(t *testing.T) {
	var all Options
	if !all.runs(SourceCircle) {
		t.Error("empty Sources should run every detector")
	}
	only := Options{Sources: []Source{SourceText}}
	if only.runs(SourceRectangle) || !only.runs(SourceText) {
		t.Error("Sources should restrict detectors")
	}
}
