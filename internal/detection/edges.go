package detection

import (
	"context"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
)

// edgeThreshold is the minimum summed forward difference, in gray levels,
// for a pixel to count as an edge.
const edgeThreshold = 31

// edgeMap is a binary edge image indexed [y][x] from the image origin.
type edgeMap [][]bool

// detectEdges marks pixels whose gray level differs from the right or lower
// neighbour. The forward difference yields a one pixel band along the
// boundary of a filled shape, which keeps contour lengths comparable to
// perimeters. Border pixels are never edges.
func detectEdges(ctx context.Context, img image.Image) (edgeMap, error) {
	gray := effect.Grayscale(img)
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()

	grad := image.NewGray(image.Rect(0, 0, width, height))
	for y := 1; y < height-1; y++ {
		if y%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for x := 1; x < width-1; x++ {
			c := int(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			dx := absInt(c - int(gray.GrayAt(b.Min.X+x+1, b.Min.Y+y).Y))
			dy := absInt(c - int(gray.GrayAt(b.Min.X+x, b.Min.Y+y+1).Y))
			grad.SetGray(x, y, color.Gray{Y: uint8(min(max(dx, dy), 255))})
		}
	}

	bin := segment.Threshold(grad, edgeThreshold)
	edges := make(edgeMap, height)
	for y := 0; y < height; y++ {
		edges[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			edges[y][x] = bin.GrayAt(bin.Bounds().Min.X+x, bin.Bounds().Min.Y+y).Y > 0
		}
	}
	return edges, nil
}

func (e edgeMap) size() (width, height int) {
	if len(e) == 0 {
		return 0, 0
	}
	return len(e[0]), len(e)
}

// findContours groups 8-connected edge pixels. Components under ten pixels
// are dropped as noise.
func findContours(edges edgeMap) [][]image.Point {
	width, height := edges.size()
	visited := make([][]bool, height)
	for y := range visited {
		visited[y] = make([]bool, width)
	}

	var contours [][]image.Point
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if edges[y][x] && !visited[y][x] {
				contour := floodFill(edges, visited, image.Pt(x, y))
				if len(contour) >= 10 {
					contours = append(contours, contour)
				}
			}
		}
	}
	return contours
}

// floodFill collects the component containing start. It uses an explicit
// stack so large contours cannot overflow the goroutine stack.
func floodFill(edges edgeMap, visited [][]bool, start image.Point) []image.Point {
	width, height := edges.size()
	var contour []image.Point
	stack := []image.Point{start}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y][p.X] || !edges[p.Y][p.X] {
			continue
		}
		visited[p.Y][p.X] = true
		contour = append(contour, p)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx != 0 || dy != 0 {
					stack = append(stack, image.Pt(p.X+dx, p.Y+dy))
				}
			}
		}
	}
	return contour
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
