package detection

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/image-annotator-mcp/internal/annotation"
	"github.com/ironsheep/image-annotator-mcp/internal/geom"
)

// Source names the detector that produced a suggestion.
type Source string

const (
	SourceRectangle Source = "rectangle"
	SourceCircle    Source = "circle"
	SourceText      Source = "text"
)

// Suggestion is a candidate region in image pixels.
type Suggestion struct {
	Geometry annotation.Geometry
	Score    float64
	Source   Source
	// Color is the sampled fill color, empty for text.
	Color string
}

// Options controls Suggest.
type Options struct {
	// MinArea is in square pixels of the source image.
	MinArea int
	// MinConfidence drops suggestions scoring below it.
	MinConfidence float64
	// MaxSide bounds the longest side the detectors work on; larger images
	// are downscaled first and results mapped back.
	MaxSide int
	// MaxRadius caps the circle search in working pixels.
	MaxRadius int
	// Limit caps the number of suggestions returned (0 = no cap).
	Limit int
	// Sources restricts the detectors run; empty runs all of them.
	Sources []Source
	// Overlap is the intersection-over-union above which the weaker of two
	// suggestions is dropped.
	Overlap float64
}

// DefaultOptions returns the detection defaults.
func DefaultOptions() Options {
	return Options{
		MinArea:       100,
		MinConfidence: 0.5,
		MaxSide:       512,
		MaxRadius:     60,
		Limit:         50,
		Overlap:       0.7,
	}
}

func (o Options) runs(s Source) bool {
	if len(o.Sources) == 0 {
		return true
	}
	for _, v := range o.Sources {
		if v == s {
			return true
		}
	}
	return false
}

// Suggest runs the detectors concurrently over img and returns candidate
// regions sorted by score. Rectangles and text blocks become boxes and
// circles become ellipses. The first detector error cancels the rest.
func Suggest(ctx context.Context, img image.Image, opts Options) ([]Suggestion, error) {
	def := DefaultOptions()
	if opts.MaxSide <= 0 {
		opts.MaxSide = def.MaxSide
	}
	if opts.MaxRadius <= 0 {
		opts.MaxRadius = def.MaxRadius
	}
	if opts.Overlap <= 0 {
		opts.Overlap = def.Overlap
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, nil
	}
	work := img
	factor := 1.0
	if longest := max(b.Dx(), b.Dy()); longest > opts.MaxSide {
		work = imaging.Fit(img, opts.MaxSide, opts.MaxSide, imaging.Box)
		factor = float64(longest) / float64(max(work.Bounds().Dx(), work.Bounds().Dy()))
	}
	minArea := int(float64(opts.MinArea) / (factor * factor))

	edges, err := detectEdges(ctx, work)
	if err != nil {
		return nil, err
	}

	var rects []Rectangle
	var circles []Circle
	var blocks []TextBlock

	g, gctx := errgroup.WithContext(ctx)
	if opts.runs(SourceRectangle) {
		g.Go(func() (err error) {
			rects, err = rectanglesFromEdges(gctx, work, edges, minArea, opts.MinConfidence)
			return err
		})
	}
	if opts.runs(SourceCircle) {
		g.Go(func() (err error) {
			wb := work.Bounds()
			maxR := min(opts.MaxRadius, min(wb.Dx(), wb.Dy())/2)
			circles, err = circlesFromEdges(gctx, work, edges, 5, maxR)
			return err
		})
	}
	if opts.runs(SourceText) {
		g.Go(func() (err error) {
			blocks, err = textFromEdges(gctx, work, edges, opts.MinConfidence)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Map working pixels back onto the source image.
	origin := geom.Pt(float64(b.Min.X), float64(b.Min.Y))
	toSource := func(bb geom.BBox) geom.BBox {
		wo := work.Bounds().Min
		return geom.BBox{
			Left:   origin.X + (bb.Left-float64(wo.X))*factor,
			Top:    origin.Y + (bb.Top-float64(wo.Y))*factor,
			Right:  origin.X + (bb.Right-float64(wo.X))*factor,
			Bottom: origin.Y + (bb.Bottom-float64(wo.Y))*factor,
		}
	}

	var out []Suggestion
	for _, r := range rects {
		out = append(out, Suggestion{Geometry: boxOf(toSource(r.Bounds)), Score: r.Confidence, Source: SourceRectangle, Color: r.FillColor})
	}
	for _, c := range circles {
		if c.Confidence < opts.MinConfidence {
			continue
		}
		bb := toSource(c.Bounds())
		if bb.Width()*bb.Height() < float64(opts.MinArea) {
			continue
		}
		center := bb.Center()
		out = append(out, Suggestion{
			Geometry: annotation.Ellipse{X: center.X, Y: center.Y, RadiusX: bb.Width() / 2, RadiusY: bb.Height() / 2},
			Score:    c.Confidence,
			Source:   SourceCircle,
			Color:    c.FillColor,
		})
	}
	for _, t := range blocks {
		out = append(out, Suggestion{Geometry: boxOf(toSource(t.Bounds)), Score: t.Confidence, Source: SourceText})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	out = suppress(out, opts.Overlap)
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func boxOf(bb geom.BBox) annotation.Box {
	return annotation.Box{X: bb.Left, Y: bb.Top, Width: bb.Width(), Height: bb.Height()}
}

// suppress drops any suggestion overlapping a better one by more than
// threshold intersection-over-union. Input must be sorted by score.
func suppress(in []Suggestion, threshold float64) []Suggestion {
	kept := make([]Suggestion, 0, len(in))
	for _, s := range in {
		bb := s.Geometry.Bounds()
		dup := false
		for _, k := range kept {
			if iou(bb, k.Geometry.Bounds()) > threshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, s)
		}
	}
	return kept
}

func iou(a, b geom.BBox) float64 {
	w := math.Min(a.Right, b.Right) - math.Max(a.Left, b.Left)
	h := math.Min(a.Bottom, b.Bottom) - math.Max(a.Top, b.Top)
	if w <= 0 || h <= 0 {
		return 0
	}
	inter := w * h
	union := a.Width()*a.Height() + b.Width()*b.Height() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
