package viewport

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/ironsheep/image-annotator-mcp/internal/clock"
	"github.com/ironsheep/image-annotator-mcp/internal/geom"
	"github.com/ironsheep/image-annotator-mcp/internal/input"
)

// State is the controller's gesture state.
type State int

const (
	Idle State = iota
	Panning
	Zooming
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Panning:
		return "panning"
	case Zooming:
		return "zooming"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ClampPolicy decides how far the content may be panned.
type ClampPolicy string

const (
	// ClampMargin keeps at least PanMargin pixels of content on stage (or
	// all of it when the content or stage is smaller than the margin).
	ClampMargin ClampPolicy = "margin"
	// ClampContain keeps the content inside the stage when it fits, and the
	// stage covered by content when it does not.
	ClampContain ClampPolicy = "contain"
	// ClampNone disables pan clamping.
	ClampNone ClampPolicy = "none"
)

// Options configures a Controller.
type Options struct {
	MinScale float64
	MaxScale float64
	// ZoomSpeed is the change in log(scale) per unit of wheel delta.
	ZoomSpeed      float64
	PanMargin      float64
	Clamp          ClampPolicy
	ResizeDebounce time.Duration
}

// DefaultOptions returns the stock viewport settings.
func DefaultOptions() Options {
	return Options{
		MinScale:       0.1,
		MaxScale:       10,
		ZoomSpeed:      0.002,
		PanMargin:      50,
		Clamp:          ClampMargin,
		ResizeDebounce: 16 * time.Millisecond,
	}
}

// Controller owns a Viewport and applies zoom, pan and resize requests to
// it. Requests outside the allowed range are clamped, never rejected.
// Controller is not safe for concurrent use; drive it from one event loop.
type Controller struct {
	opts   Options
	logger *slog.Logger

	vp    Viewport
	state State

	resize *clock.Debouncer

	panAnchor geom.Point
	panOffset geom.Point

	listeners []listener
	nextID    int
}

type listener struct {
	id int
	fn func(Viewport)
}

// NewController returns a controller at scale 1. Debounced resizes are
// scheduled on clk and delivered through post.
func NewController(opts Options, clk clock.Clock, post func(func()), logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.MinScale <= 0 || opts.MaxScale < opts.MinScale {
		d := DefaultOptions()
		opts.MinScale, opts.MaxScale = d.MinScale, d.MaxScale
	}
	if opts.Clamp == "" {
		opts.Clamp = ClampMargin
	}
	if opts.ZoomSpeed <= 0 {
		opts.ZoomSpeed = DefaultOptions().ZoomSpeed
	}
	return &Controller{
		opts:   opts,
		logger: logger,
		vp:     Viewport{Scale: 1, FitScale: 1},
		resize: clock.NewDebouncer(clk, opts.ResizeDebounce, post),
	}
}

// Viewport returns the current transform.
func (c *Controller) Viewport() Viewport { return c.vp }

// State returns the gesture state.
func (c *Controller) State() State { return c.state }

// Options returns the controller settings.
func (c *Controller) Options() Options { return c.opts }

// OnChange registers fn to run after every viewport change. The returned
// function unregisters it.
func (c *Controller) OnChange(fn func(Viewport)) func() {
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	return func() {
		c.listeners = slices.DeleteFunc(c.listeners, func(l listener) bool { return l.id == id })
	}
}

func (c *Controller) changed() {
	for _, l := range slices.Clone(c.listeners) {
		l.fn(c.vp)
	}
}

// SetOrigin records where the canvas sits on screen.
func (c *Controller) SetOrigin(x, y float64) {
	c.vp.OriginX, c.vp.OriginY = x, y
}

// SetNaturalSize records the loaded image size and lays the content out
// again.
func (c *Controller) SetNaturalSize(w, h float64) {
	c.vp.NaturalWidth, c.vp.NaturalHeight = w, h
	c.relayout()
	c.changed()
}

// Zoom applies a wheel delta around focal, given in canvas pixels. It acts
// only while zoom intent is signalled, either by modifiers or by an active
// zoom gesture, and reports whether it did anything. Positive deltas zoom
// out.
func (c *Controller) Zoom(deltaY float64, focal geom.Point, mods input.Modifiers) bool {
	if !mods.ZoomIntent() && c.state != Zooming {
		return false
	}
	if math.IsNaN(deltaY) || math.IsInf(deltaY, 0) {
		c.logger.Debug("ignored non-finite zoom delta")
		return false
	}
	target := math.Exp(math.Log(c.vp.Scale) - deltaY*c.opts.ZoomSpeed)
	c.zoomAround(target, focal)
	return true
}

// ZoomTo sets the zoom level directly, keeping focal fixed.
func (c *Controller) ZoomTo(scale float64, focal geom.Point) {
	c.zoomAround(scale, focal)
}

// ZoomBy multiplies the zoom level by factor around focal.
func (c *Controller) ZoomBy(factor float64, focal geom.Point) {
	c.zoomAround(c.vp.Scale*factor, focal)
}

func (c *Controller) zoomAround(target float64, focal geom.Point) {
	scale := c.clampScale(target)
	before, err := CanvasToImage(focal, c.vp)
	c.vp.Scale = scale
	if err == nil {
		eff := c.vp.EffectiveScale()
		c.vp.OffsetX = focal.X - before.X*eff
		c.vp.OffsetY = focal.Y - before.Y*eff
	}
	c.clampPan()
	c.changed()
}

func (c *Controller) clampScale(s float64) float64 {
	if math.IsNaN(s) || s <= 0 {
		c.logger.Debug("clamped viewport input", "scale", s)
		return c.opts.MinScale
	}
	clamped := math.Max(c.opts.MinScale, math.Min(c.opts.MaxScale, s))
	if clamped != s {
		c.logger.Debug("clamped viewport input", "scale", s, "clamped", clamped)
	}
	return clamped
}

// BeginZoom enters the Zooming state, in which Zoom needs no modifier.
func (c *Controller) BeginZoom() { c.state = Zooming }

// EndZoom leaves the Zooming state.
func (c *Controller) EndZoom() {
	if c.state == Zooming {
		c.state = Idle
	}
}

// Pan moves the content by (dx, dy) canvas pixels.
func (c *Controller) Pan(dx, dy float64) {
	if math.IsNaN(dx) || math.IsNaN(dy) {
		return
	}
	c.vp.OffsetX += dx
	c.vp.OffsetY += dy
	c.clampPan()
	c.changed()
}

// SetOffset moves the content to an absolute offset.
func (c *Controller) SetOffset(x, y float64) {
	c.vp.OffsetX, c.vp.OffsetY = x, y
	c.clampPan()
	c.changed()
}

// BeginPan starts a drag-pan gesture anchored at p (canvas pixels).
func (c *Controller) BeginPan(p geom.Point) {
	c.state = Panning
	c.panAnchor = p
	c.panOffset = geom.Pt(c.vp.OffsetX, c.vp.OffsetY)
}

// PanTo continues a drag-pan gesture.
func (c *Controller) PanTo(p geom.Point) {
	if c.state != Panning {
		return
	}
	c.vp.OffsetX = c.panOffset.X + p.X - c.panAnchor.X
	c.vp.OffsetY = c.panOffset.Y + p.Y - c.panAnchor.Y
	c.clampPan()
	c.changed()
}

// EndPan finishes a drag-pan gesture.
func (c *Controller) EndPan() {
	if c.state == Panning {
		c.state = Idle
	}
}

// Reset returns to scale 1 with no pan.
func (c *Controller) Reset() {
	c.vp.Scale = 1
	c.vp.OffsetX, c.vp.OffsetY = 0, 0
	c.state = Idle
	c.clampPan()
	c.changed()
}

// Resize schedules a stage resize. Bursts within the debounce window
// collapse into one layout with the last size.
func (c *Controller) Resize(w, h float64) {
	c.resize.Trigger(func() { c.ResizeNow(w, h) })
}

// ResizePending reports whether a debounced resize is waiting.
func (c *Controller) ResizePending() bool { return c.resize.Pending() }

// CancelResize drops a pending debounced resize.
func (c *Controller) CancelResize() { c.resize.Cancel() }

// ResizeNow applies a stage size immediately. It reports whether the
// layout changed; unchanged and non-positive sizes are ignored.
func (c *Controller) ResizeNow(w, h float64) bool {
	if w <= 0 || h <= 0 || math.IsNaN(w) || math.IsNaN(h) {
		c.logger.Debug("ignored stage size", "width", w, "height", h)
		return false
	}
	if w == c.vp.StageWidth && h == c.vp.StageHeight {
		return false
	}
	c.vp.StageWidth, c.vp.StageHeight = w, h
	c.relayout()
	c.logger.Debug("stage resized", "width", w, "height", h, "fit_scale", c.vp.FitScale)
	c.changed()
	return true
}

// relayout recomputes the fit scale. Before the image has a real size
// there is nothing to fit.
func (c *Controller) relayout() {
	v := &c.vp
	if v.NaturalWidth <= 1 || v.NaturalHeight <= 1 || v.StageWidth <= 0 || v.StageHeight <= 0 {
		return
	}
	v.FitScale = math.Min(v.StageWidth/v.NaturalWidth, v.StageHeight/v.NaturalHeight)
	c.clampPan()
}

func (c *Controller) clampPan() {
	v := &c.vp
	if c.opts.Clamp == ClampNone || v.NaturalWidth <= 0 || v.NaturalHeight <= 0 {
		return
	}
	eff := v.EffectiveScale()
	x, y := v.OffsetX, v.OffsetY
	if v.StageWidth > 0 {
		v.OffsetX = clampAxis(c.opts, v.OffsetX, v.NaturalWidth*eff, v.StageWidth)
	}
	if v.StageHeight > 0 {
		v.OffsetY = clampAxis(c.opts, v.OffsetY, v.NaturalHeight*eff, v.StageHeight)
	}
	if x != v.OffsetX || y != v.OffsetY {
		c.logger.Debug("clamped viewport input", "offset_x", x, "offset_y", y, "clamped_x", v.OffsetX, "clamped_y", v.OffsetY)
	}
}

func clampAxis(opts Options, off, content, stage float64) float64 {
	var lo, hi float64
	switch opts.Clamp {
	case ClampContain:
		if content <= stage {
			lo, hi = 0, stage-content
		} else {
			lo, hi = stage-content, 0
		}
	default:
		m := math.Min(opts.PanMargin, math.Min(content, stage))
		lo, hi = m-content, stage-m
	}
	return math.Max(lo, math.Min(hi, off))
}
