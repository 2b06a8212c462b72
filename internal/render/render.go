package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/vector"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ironsheep/image-annotator-mcp/internal/annotation"
	"github.com/ironsheep/image-annotator-mcp/internal/geom"
	pix "github.com/ironsheep/image-annotator-mcp/internal/imaging"
)

// Palette picks the color a region is drawn in.
type Palette func(r *annotation.Region) color.Color

// Options control a snapshot.
type Options struct {
	// MaxSize bounds the longest output edge. Zero keeps the natural size.
	MaxSize int
	// FillOpacity is the alpha of region fills, 0-1. Defaults to 0.2.
	FillOpacity float64
	// StrokeWidth is the outline width in output pixels. Defaults to 2.
	StrokeWidth float64
	// GridSize draws a grid every GridSize natural pixels. Zero disables it.
	GridSize int
	// ShowLabels writes each region's first label value at its top-left.
	ShowLabels bool
}

func (o Options) withDefaults() Options {
	if o.FillOpacity <= 0 {
		o.FillOpacity = 0.2
	}
	if o.StrokeWidth <= 0 {
		o.StrokeWidth = 2
	}
	return o
}

// Snapshot draws regions over a copy of base. Hidden and non-spatial
// regions are skipped. Suggestions are drawn at half strength and the
// selection gets corner handles.
func Snapshot(base image.Image, regions []*annotation.Region, palette Palette, opts Options) *image.RGBA {
	opts = opts.withDefaults()
	if palette == nil {
		palette = func(*annotation.Region) color.Color { return color.NRGBA{R: 255, A: 255} }
	}

	b := base.Bounds()
	scale := 1.0
	if longest := max(b.Dx(), b.Dy()); opts.MaxSize > 0 && longest > opts.MaxSize {
		scale = float64(opts.MaxSize) / float64(longest)
	}
	var src image.Image = base
	if scale != 1 {
		src = imaging.Resize(base, int(math.Round(float64(b.Dx())*scale)), 0, imaging.Lanczos)
	}
	dst := image.NewRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)

	c := &canvas{dst: dst, origin: geom.Pt(float64(b.Min.X), float64(b.Min.Y)), scale: scale}

	if opts.GridSize > 0 {
		step := int(math.Round(float64(opts.GridSize) * scale))
		pix.DrawGrid(dst, max(step, 1), false, pix.DefaultGridColor)
	}

	for _, r := range regions {
		if r.Hidden || !r.Kind().Spatial() {
			continue
		}
		col := palette(r)
		strength := 1.0
		if r.Origin == annotation.OriginSuggestion {
			strength = 0.5
		}
		c.region(r, col, opts, strength)
	}
	for _, r := range regions {
		if r.Hidden || !r.Kind().Spatial() {
			continue
		}
		if r.Selected() {
			c.handles(r.Bounds(), opts.StrokeWidth)
		}
		if opts.ShowLabels {
			if values := r.LabelValues(); len(values) > 0 {
				col := palette(r)
				at := c.pt(r.Bounds().TopLeft())
				pix.DrawLabel(dst, image.Pt(int(at.X)+2, int(at.Y)+2), strings.Join(values, ", "), pix.Contrast(col), pix.WithAlpha(col, 0.85))
			}
		}
	}
	return dst
}

type canvas struct {
	dst    *image.RGBA
	origin geom.Point
	scale  float64
}

func (c *canvas) pt(p geom.Point) geom.Point {
	return geom.Pt((p.X-c.origin.X)*c.scale, (p.Y-c.origin.Y)*c.scale)
}

func (c *canvas) region(r *annotation.Region, col color.Color, opts Options, strength float64) {
	fill := pix.WithAlpha(col, opts.FillOpacity*strength)
	line := pix.WithAlpha(col, strength)
	width := opts.StrokeWidth
	if r.Selected() {
		width *= 1.5
	}

	switch g := r.Geometry.(type) {
	case annotation.Box:
		c.shape(g.Corners(), true, fill, line, width)
	case annotation.Polygon:
		var f color.Color
		if g.Closed {
			f = fill
		}
		c.shape(g.Points, g.Closed, f, line, width)
	case annotation.Ellipse:
		c.shape(ellipsePoints(g, 64), true, fill, line, width)
	case annotation.KeyPoint:
		radius := max(g.Width*c.scale, 3)
		center := c.pt(geom.Pt(g.X, g.Y))
		pts := ellipsePoints(annotation.Ellipse{X: center.X, Y: center.Y, RadiusX: radius, RadiusY: radius}, 24)
		c.fillPath(pts, line)
	case annotation.Brush:
		c.brush(g, pix.WithAlpha(col, 0.5*strength))
	}
}

// shape fills (when fill is non-nil) and outlines a path given in image
// coordinates.
func (c *canvas) shape(pts []geom.Point, closed bool, fill, line color.Color, width float64) {
	if len(pts) < 2 {
		return
	}
	out := make([]geom.Point, len(pts))
	for i, p := range pts {
		out[i] = c.pt(p)
	}
	if fill != nil && closed && len(out) > 2 {
		c.fillPath(out, fill)
	}
	for i := 1; i < len(out); i++ {
		c.segment(out[i-1], out[i], line, width)
	}
	if closed {
		c.segment(out[len(out)-1], out[0], line, width)
	}
}

func (c *canvas) fillPath(pts []geom.Point, col color.Color) {
	b := c.dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()
	z.Draw(c.dst, b, image.NewUniform(col), image.Point{})
}

// segment draws a line of the given width as a filled quad with square caps.
func (c *canvas) segment(a, b geom.Point, col color.Color, width float64) {
	d := r2.Sub(b, a)
	n := r2.Norm(d)
	if n == 0 {
		return
	}
	h := width / 2
	ux, uy := d.X/n*h, d.Y/n*h
	a = geom.Pt(a.X-ux, a.Y-uy)
	b = geom.Pt(b.X+ux, b.Y+uy)
	perp := geom.Pt(-uy, ux)
	c.fillPath([]geom.Point{r2.Add(a, perp), r2.Add(b, perp), r2.Sub(b, perp), r2.Sub(a, perp)}, col)
}

func (c *canvas) brush(g annotation.Brush, col color.Color) {
	if g.Mask == nil {
		g = g.Rasterize()
	}
	m := g.Mask
	if m.Rect.Empty() {
		return
	}
	tl := c.pt(geom.Pt(float64(m.Rect.Min.X), float64(m.Rect.Min.Y)))
	var mask image.Image = m
	maskMin := m.Rect.Min
	if c.scale != 1 {
		w := max(1, int(math.Round(float64(m.Rect.Dx())*c.scale)))
		h := max(1, int(math.Round(float64(m.Rect.Dy())*c.scale)))
		mask = imaging.Resize(m, w, h, imaging.NearestNeighbor)
		maskMin = image.Point{}
	}
	r := image.Rect(0, 0, mask.Bounds().Dx(), mask.Bounds().Dy()).Add(image.Pt(int(math.Round(tl.X)), int(math.Round(tl.Y))))
	draw.DrawMask(c.dst, r, image.NewUniform(col), image.Point{}, mask, maskMin, draw.Over)
}

// handles marks the corners of a selected region's bounding box.
func (c *canvas) handles(box geom.BBox, width float64) {
	size := max(6, width*3)
	for _, p := range []geom.Point{
		{X: box.Left, Y: box.Top}, {X: box.Right, Y: box.Top},
		{X: box.Right, Y: box.Bottom}, {X: box.Left, Y: box.Bottom},
	} {
		q := c.pt(p)
		sq := []geom.Point{
			geom.Pt(q.X-size/2, q.Y-size/2), geom.Pt(q.X+size/2, q.Y-size/2),
			geom.Pt(q.X+size/2, q.Y+size/2), geom.Pt(q.X-size/2, q.Y+size/2),
		}
		c.fillPath(sq, color.White)
		for i := range sq {
			c.segment(sq[i], sq[(i+1)%4], color.Black, 1)
		}
	}
}

func ellipsePoints(e annotation.Ellipse, n int) []geom.Point {
	center := geom.Pt(e.X, e.Y)
	pts := make([]geom.Point, n)
	for i := range pts {
		t := 2 * math.Pi * float64(i) / float64(n)
		p := geom.Pt(e.X+e.RadiusX*math.Cos(t), e.Y+e.RadiusY*math.Sin(t))
		pts[i] = geom.Rotate(p, center, e.Rotation)
	}
	return pts
}
