package detection

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/ironsheep/image-annotator-mcp/internal/geom"
)

// TextBlock is an area whose edge structure looks like lines of text.
type TextBlock struct {
	Bounds     geom.BBox `json:"bounds"`
	Confidence float64   `json:"confidence"`
}

// textWindows are the sliding window sizes tried, roughly one text line each.
var textWindows = []image.Point{
	{100, 30},
	{150, 40},
	{200, 50},
	{80, 25},
}

// DetectTextBlocks finds areas likely to contain text, most confident first.
//
// Windows are slid at half their size. A window is a candidate when its edge
// density is moderate (5-40%) and its edge runs are mostly horizontal; the
// score peaks at 20% density. Overlapping candidates are merged.
func DetectTextBlocks(ctx context.Context, img image.Image, minConfidence float64) ([]TextBlock, error) {
	edges, err := detectEdges(ctx, img)
	if err != nil {
		return nil, err
	}
	return textFromEdges(ctx, img, edges, minConfidence)
}

func textFromEdges(ctx context.Context, img image.Image, edges edgeMap, minConfidence float64) ([]TextBlock, error) {
	width, height := edges.size()
	origin := img.Bounds().Min
	integral := newIntegral(edges)

	var candidates []TextBlock
	for _, ws := range textWindows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stepX, stepY := ws.X/2, ws.Y/2
		for y := 0; y+ws.Y <= height; y += stepY {
			for x := 0; x+ws.X <= width; x += stepX {
				density := float64(integral.sum(x, y, ws.X, ws.Y)) / float64(ws.X*ws.Y)
				if density < 0.05 || density > 0.4 {
					continue
				}
				confidence := horizontalScore(edges, x, y, ws.X, ws.Y) * (1 - math.Abs(density-0.2)/0.2)
				if confidence < minConfidence {
					continue
				}
				candidates = append(candidates, TextBlock{
					Bounds:     geom.RectXYWH(float64(x+origin.X), float64(y+origin.Y), float64(ws.X), float64(ws.Y)),
					Confidence: math.Round(confidence*1000) / 1000,
				})
			}
		}
	}

	merged := mergeOverlapping(candidates)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Confidence > merged[j].Confidence
	})
	return merged, nil
}

// horizontalScore is the share of edge runs that are horizontal.
func horizontalScore(edges edgeMap, x, y, w, h int) float64 {
	horizontal, vertical := 0, 0
	for row := y; row < y+h; row++ {
		inRun := false
		for col := x; col < x+w; col++ {
			if edges[row][col] && !inRun {
				horizontal++
			}
			inRun = edges[row][col]
		}
	}
	for col := x; col < x+w; col++ {
		inRun := false
		for row := y; row < y+h; row++ {
			if edges[row][col] && !inRun {
				vertical++
			}
			inRun = edges[row][col]
		}
	}
	if horizontal+vertical == 0 {
		return 0
	}
	return float64(horizontal) / float64(horizontal+vertical)
}

// mergeOverlapping folds each block into the first overlapping one.
func mergeOverlapping(blocks []TextBlock) []TextBlock {
	merged := make([]TextBlock, 0, len(blocks))
	for _, b := range blocks {
		found := false
		for i := range merged {
			if overlaps(b.Bounds, merged[i].Bounds) {
				merged[i].Bounds = merged[i].Bounds.Union(b.Bounds)
				merged[i].Confidence = math.Max(b.Confidence, merged[i].Confidence)
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, b)
		}
	}
	return merged
}

// overlaps is a strict interior overlap; touching edges do not count.
func overlaps(a, b geom.BBox) bool {
	return a.Left < b.Right && a.Right > b.Left && a.Top < b.Bottom && a.Bottom > b.Top
}

// integral is a summed-area table of edge pixels.
type integral [][]int

func newIntegral(edges edgeMap) integral {
	width, height := edges.size()
	sat := make(integral, height+1)
	for y := range sat {
		sat[y] = make([]int, width+1)
	}
	for y := 0; y < height; y++ {
		run := 0
		for x := 0; x < width; x++ {
			if edges[y][x] {
				run++
			}
			sat[y+1][x+1] = sat[y][x+1] + run
		}
	}
	return sat
}

// sum counts edge pixels in the w x h window at (x, y).
func (s integral) sum(x, y, w, h int) int {
	return s[y+h][x+w] - s[y][x+w] - s[y+h][x] + s[y][x]
}
