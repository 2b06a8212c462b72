// Package selection drives the selected regions of one annotation: set
// operations on the selection, the aggregate bounding box, the choice
// between single and group transform handles, and rigid group drags bounded
// by the stage.
package selection

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/ironsheep/image-annotator-mcp/internal/annotation"
	"github.com/ironsheep/image-annotator-mcp/internal/geom"
	"github.com/ironsheep/image-annotator-mcp/internal/viewport"
)

// Mode is how Select combines ids with the current selection.
type Mode int

const (
	Replace Mode = iota
	Add
	Toggle
)

// ParseMode accepts "replace", "add" and "toggle". The empty string is
// Replace.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "replace":
		return Replace, nil
	case "add":
		return Add, nil
	case "toggle":
		return Toggle, nil
	}
	return Replace, fmt.Errorf("unknown selection mode %q", s)
}

func (m Mode) String() string {
	switch m {
	case Replace:
		return "replace"
	case Add:
		return "add"
	case Toggle:
		return "toggle"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// TransformMode is the kind of handle shown around the selection.
type TransformMode int

const (
	// TransformNone means nothing is selected.
	TransformNone TransformMode = iota
	// TransformSingle is a per-shape handle on one region.
	TransformSingle
	// TransformGroup is one bounding-box handle moving every member.
	TransformGroup
	// TransformBorders draws selection borders without handles.
	TransformBorders
)

func (m TransformMode) String() string {
	switch m {
	case TransformNone:
		return "none"
	case TransformSingle:
		return "single"
	case TransformGroup:
		return "group"
	case TransformBorders:
		return "borders"
	}
	return fmt.Sprintf("TransformMode(%d)", int(m))
}

// Controller operates on the selection flags held by a store.
type Controller struct {
	store  *annotation.Store
	logger *slog.Logger
	drag   *drag
}

type drag struct {
	ids []string
	// anchor is the canvas position the gesture started at.
	anchor geom.Point
	// box is the aggregate bbox in canvas pixels at gesture start.
	box geom.BBox
	// applied is the image-space delta already written to the store.
	applied geom.Point
}

// New returns a controller over store.
func New(store *annotation.Store, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{store: store, logger: logger}
}

// Select changes the selection according to mode and reports whether it
// changed. Unknown and locked ids are ignored.
func (c *Controller) Select(ids []string, mode Mode) bool {
	switch mode {
	case Add:
		return c.store.SetSelected(ids, true)
	case Toggle:
		var on, off []string
		for _, id := range ids {
			r := c.store.Get(id)
			if r == nil {
				continue
			}
			if r.Selected() {
				off = append(off, id)
			} else {
				on = append(on, id)
			}
		}
		changed := c.store.SetSelected(off, false)
		return c.store.SetSelected(on, true) || changed
	default:
		return c.store.ReplaceSelection(ids)
	}
}

// Clear empties the selection.
func (c *Controller) Clear() bool {
	c.drag = nil
	return c.store.ClearSelection()
}

// IDs returns the selected ids in selection order.
func (c *Controller) IDs() []string { return c.store.SelectedIDs() }

// Selected returns the selected regions.
func (c *Controller) Selected() []*annotation.Region { return c.store.Selected() }

// Len returns the number of selected regions.
func (c *Controller) Len() int { return len(c.store.SelectedIDs()) }

// Contains reports whether id is selected.
func (c *Controller) Contains(id string) bool {
	r := c.store.Get(id)
	return r != nil && r.Selected()
}

// OnChange calls fn whenever the selection or the geometry of a selected
// region changes. The returned function unregisters it.
func (c *Controller) OnChange(fn func()) func() {
	return c.store.Subscribe(func(ch annotation.Change) {
		switch ch.Kind {
		case annotation.SelectionChanged, annotation.StoreReset:
			fn()
		case annotation.RegionUpdated:
			if c.Contains(ch.ID) {
				fn()
			}
		}
	})
}

// AggregateBBox is the union of the selected regions' bounds in image
// pixels, computed from current geometry. ok is false when no spatial region
// is selected.
func (c *Controller) AggregateBBox() (geom.BBox, bool) {
	var boxes []geom.BBox
	for _, r := range c.store.Selected() {
		if r.Kind().Spatial() {
			boxes = append(boxes, r.Bounds())
		}
	}
	return geom.UnionAll(boxes)
}

// TransformMode picks the handle for the current selection. A group handle
// is used only when every member supports transforms.
func (c *Controller) TransformMode() TransformMode {
	sel := c.store.Selected()
	switch {
	case len(sel) == 0:
		return TransformNone
	case !slices.ContainsFunc(sel, func(r *annotation.Region) bool { return !r.SupportsTransform() || !r.Editable() }):
		if len(sel) == 1 {
			return TransformSingle
		}
		return TransformGroup
	default:
		return TransformBorders
	}
}

// DragBound bounds a drag of the group handle. pos is the proposed handle
// position, dragStart where the handle was when the drag began and box the
// selection's bounding box, all in stage pixels. The result keeps box inside
// [0, stageW] x [0, stageH]. When only the near edge would clip, the box is
// pushed back by the clipped amount rather than shrunk against the far edge.
func DragBound(pos, dragStart geom.Point, box geom.Rect, stageW, stageH float64) geom.Point {
	offset := geom.Pt(dragStart.X-box.X, dragStart.Y-box.Y)
	x, y := pos.X-offset.X, pos.Y-offset.Y

	proposed := geom.Rect{X: x, Y: y, Width: box.Width, Height: box.Height}
	fixed := geom.FixRectToFit(proposed, stageW, stageH)

	if fixed.Width != proposed.Width {
		if fixed.X != proposed.X {
			x -= fixed.Width - proposed.Width
		} else {
			x += fixed.Width - proposed.Width
		}
	}
	if fixed.Height != proposed.Height {
		if fixed.Y != proposed.Y {
			y -= fixed.Height - proposed.Height
		} else {
			y += fixed.Height - proposed.Height
		}
	}
	return geom.Pt(x+offset.X, y+offset.Y)
}

// Dragging reports whether a group drag is in progress.
func (c *Controller) Dragging() bool { return c.drag != nil }

// StartDrag begins a rigid drag of the selection at canvas position p. It
// reports false when the selection cannot be moved.
func (c *Controller) StartDrag(p geom.Point, vp viewport.Viewport) bool {
	box, ok := c.AggregateBBox()
	if !ok || c.TransformMode() == TransformBorders {
		return false
	}
	tl, err := viewport.ImageToCanvas(box.TopLeft(), vp)
	if err != nil {
		return false
	}
	s := vp.EffectiveScale()
	c.drag = &drag{
		ids:    c.IDs(),
		anchor: p,
		box:    geom.RectXYWH(tl.X, tl.Y, box.Width()*s, box.Height()*s),
	}
	return true
}

// DragTo moves the dragged regions so the gesture follows canvas position
// p, bounded by the stage. Every member moves by the same delta. It returns
// the total image-space delta applied since StartDrag.
func (c *Controller) DragTo(p geom.Point, vp viewport.Viewport) geom.Point {
	d := c.drag
	if d == nil {
		return geom.Point{}
	}
	s := vp.EffectiveScale()
	if s == 0 {
		return d.applied
	}
	pos := DragBound(p, d.anchor, d.box.Rect(), vp.StageWidth, vp.StageHeight)
	total := geom.Pt((pos.X-d.anchor.X)/s, (pos.Y-d.anchor.Y)/s)
	step := geom.Pt(total.X-d.applied.X, total.Y-d.applied.Y)
	c.store.Translate(d.ids, step.X, step.Y)
	d.applied = total
	return total
}

// EndDrag finishes the drag and returns the total image-space delta.
func (c *Controller) EndDrag() geom.Point {
	if c.drag == nil {
		return geom.Point{}
	}
	total := c.drag.applied
	c.drag = nil
	return total
}

// TranslateGroup moves the whole selection by (dx, dy) image pixels,
// bounded so the aggregate box stays within [0, width] x [0, height]. It
// returns the delta actually applied. Without a positive image size there
// is no bound and the call fails with viewport.ErrNoNaturalSize.
func (c *Controller) TranslateGroup(dx, dy, width, height float64) (geom.Point, error) {
	if width <= 0 || height <= 0 {
		return geom.Point{}, viewport.ErrNoNaturalSize
	}
	box, ok := c.AggregateBBox()
	if !ok {
		return geom.Point{}, fmt.Errorf("nothing selected")
	}
	if c.TransformMode() == TransformBorders {
		return geom.Point{}, fmt.Errorf("%w: selection contains regions that cannot be moved", annotation.ErrNotEditable)
	}
	start := box.TopLeft()
	pos := DragBound(geom.Pt(start.X+dx, start.Y+dy), start, box.Rect(), width, height)
	delta := geom.Pt(pos.X-start.X, pos.Y-start.Y)
	c.store.Translate(c.IDs(), delta.X, delta.Y)
	return delta, nil
}

// ScaleGroup scales every selected region by (sx, sy) about the aggregate
// box's top-left corner, keeping positions proportional.
func (c *Controller) ScaleGroup(sx, sy float64) error {
	if sx <= 0 || sy <= 0 {
		return fmt.Errorf("%w: scale factors must be positive", annotation.ErrInvalidGeometry)
	}
	box, ok := c.AggregateBBox()
	if !ok {
		return fmt.Errorf("nothing selected")
	}
	if c.TransformMode() == TransformBorders {
		return fmt.Errorf("%w: selection contains regions that cannot be scaled", annotation.ErrNotEditable)
	}
	origin := box.TopLeft()
	for _, r := range c.store.Selected() {
		if err := c.store.SetGeometry(r.ID, r.Geometry.Scale(origin, sx, sy)); err != nil {
			return err
		}
	}
	return nil
}

// DeleteSelected removes every selected editable region and returns how
// many were removed.
func (c *Controller) DeleteSelected() int {
	n := 0
	for _, r := range c.store.Selected() {
		if r.ReadOnly {
			continue
		}
		if c.store.Remove(r.ID) {
			n++
		}
	}
	if n > 0 {
		c.logger.Debug("deleted selected regions", "count", n)
	}
	return n
}
