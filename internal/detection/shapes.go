package detection

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/ironsheep/image-annotator-mcp/internal/geom"
	pix "github.com/ironsheep/image-annotator-mcp/internal/imaging"
)

// Rectangle is an axis-aligned box found by contour analysis.
type Rectangle struct {
	// Bounds is in image pixels.
	Bounds geom.BBox `json:"bounds"`

	// FillColor is sampled at the center as "#rrggbb".
	FillColor string `json:"fill_color,omitempty"`

	// Confidence compares the contour length with the perimeter of its
	// bounding box (1.0 = perfect rectangle).
	Confidence float64 `json:"confidence"`
}

// Area returns the bounding box area in square pixels.
func (r Rectangle) Area() float64 { return r.Bounds.Width() * r.Bounds.Height() }

// DetectRectangles finds rectangular shapes, largest first.
//
// minArea filters boxes smaller than the given square pixel area and
// tolerance (0-1) is the minimum rectangularity kept.
//
// Filled shapes produce a single pixel contour band and outlined shapes a
// double one (both sides of the stroke), so contours about twice the
// expected perimeter are scored against the doubled perimeter.
//
// Only axis-aligned rectangles are found; rounded corners lower the score.
func DetectRectangles(ctx context.Context, img image.Image, minArea int, tolerance float64) ([]Rectangle, error) {
	edges, err := detectEdges(ctx, img)
	if err != nil {
		return nil, err
	}
	return rectanglesFromEdges(ctx, img, edges, minArea, tolerance)
}

func rectanglesFromEdges(ctx context.Context, img image.Image, edges edgeMap, minArea int, tolerance float64) ([]Rectangle, error) {
	origin := img.Bounds().Min
	rectangles := make([]Rectangle, 0)

	for _, contour := range findContours(edges) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(contour) < 4 {
			continue
		}

		box := image.Rectangle{Min: contour[0], Max: contour[0]}
		for _, p := range contour[1:] {
			box.Min.X = min(box.Min.X, p.X)
			box.Min.Y = min(box.Min.Y, p.Y)
			box.Max.X = max(box.Max.X, p.X)
			box.Max.Y = max(box.Max.Y, p.Y)
		}
		w, h := box.Dx(), box.Dy()
		if w == 0 || h == 0 || w*h < minArea {
			continue
		}

		score := rectangularity(len(contour), 2*(w+h))
		if score < tolerance {
			continue
		}

		center := image.Pt((box.Min.X+box.Max.X)/2, (box.Min.Y+box.Max.Y)/2).Add(origin)
		rectangles = append(rectangles, Rectangle{
			Bounds:     geom.RectXYWH(float64(box.Min.X+origin.X), float64(box.Min.Y+origin.Y), float64(w), float64(h)),
			FillColor:  pix.Hex(img.At(center.X, center.Y)),
			Confidence: score,
		})
	}

	sort.SliceStable(rectangles, func(i, j int) bool {
		return rectangles[i].Area() > rectangles[j].Area()
	})
	return rectangles, nil
}

// rectangularity scores a contour of n pixels against perimeter.
func rectangularity(n, perimeter int) float64 {
	if perimeter <= 0 {
		return 0
	}
	ratio := float64(n) / float64(perimeter)
	if ratio > 1.5 {
		ratio /= 2
	}
	return math.Max(0, 1-math.Abs(ratio-1))
}

// Circle is a circular shape found with a Hough transform.
type Circle struct {
	Center geom.Point `json:"center"`
	Radius float64    `json:"radius"`

	// FillColor is sampled at the center as "#rrggbb".
	FillColor string `json:"fill_color,omitempty"`

	// Confidence is the vote count over the expected vote count, capped at 1.
	Confidence float64 `json:"confidence"`
}

// Bounds returns the square enclosing the circle.
func (c Circle) Bounds() geom.BBox {
	return geom.RectXYWH(c.Center.X-c.Radius, c.Center.Y-c.Radius, 2*c.Radius, 2*c.Radius)
}

// houghSteps is the number of votes each edge pixel casts per radius.
const houghSteps = 36

// DetectCircles finds circles with radii in [minRadius, maxRadius],
// most confident first.
//
// Each edge pixel votes for every center at distance radius, sampled every
// ten degrees. Local maxima reaching 60% of 2*radius votes are kept and
// circles whose centers fall within their mean radius of a stronger one are
// dropped. Cost grows with the radius range, so callers bound it.
func DetectCircles(ctx context.Context, img image.Image, minRadius, maxRadius int) ([]Circle, error) {
	edges, err := detectEdges(ctx, img)
	if err != nil {
		return nil, err
	}
	return circlesFromEdges(ctx, img, edges, minRadius, maxRadius)
}

func circlesFromEdges(ctx context.Context, img image.Image, edges edgeMap, minRadius, maxRadius int) ([]Circle, error) {
	width, height := edges.size()
	origin := img.Bounds().Min
	minRadius = max(minRadius, 1)

	var cos, sin [houghSteps]float64
	for i := range houghSteps {
		rad := float64(i) * 2 * math.Pi / houghSteps
		cos[i], sin[i] = math.Cos(rad), math.Sin(rad)
	}

	circles := make([]Circle, 0)
	accumulator := make([][]int, height)
	for y := range accumulator {
		accumulator[y] = make([]int, width)
	}

	for radius := minRadius; radius <= maxRadius; radius++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for y := range accumulator {
			clear(accumulator[y])
		}

		r := float64(radius)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				if !edges[y][x] {
					continue
				}
				for i := range houghSteps {
					cx := x - int(r*cos[i])
					cy := y - int(r*sin[i])
					if cx >= 0 && cx < width && cy >= 0 && cy < height {
						accumulator[cy][cx]++
					}
				}
			}
		}

		threshold := int(float64(2*radius) * 0.6)
		for y := radius; y < height-radius; y++ {
			for x := radius; x < width-radius; x++ {
				votes := accumulator[y][x]
				if votes < max(threshold, 1) || !localMax(accumulator, x, y, 5) {
					continue
				}
				circles = append(circles, Circle{
					Center:     geom.Pt(float64(x+origin.X), float64(y+origin.Y)),
					Radius:     r,
					FillColor:  pix.Hex(img.At(x+origin.X, y+origin.Y)),
					Confidence: math.Min(float64(votes)/float64(2*radius), 1),
				})
			}
		}
	}

	sort.SliceStable(circles, func(i, j int) bool {
		return circles[i].Confidence > circles[j].Confidence
	})
	return filterDuplicateCircles(circles), nil
}

// localMax reports whether acc[y][x] is not exceeded within the given window.
func localMax(acc [][]int, x, y, window int) bool {
	v := acc[y][x]
	for ny := max(y-window, 0); ny <= min(y+window, len(acc)-1); ny++ {
		row := acc[ny]
		for nx := max(x-window, 0); nx <= min(x+window, len(row)-1); nx++ {
			if row[nx] > v {
				return false
			}
		}
	}
	return true
}

// filterDuplicateCircles keeps the first of any circles whose centers are
// closer than their mean radius. Input is expected in confidence order.
func filterDuplicateCircles(circles []Circle) []Circle {
	filtered := make([]Circle, 0, len(circles))
	for _, c := range circles {
		duplicate := false
		for _, f := range filtered {
			if geom.Distance(c.Center, f.Center) < (c.Radius+f.Radius)/2 {
				duplicate = true
				break
			}
		}
		if !duplicate {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
