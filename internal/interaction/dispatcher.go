// Package interaction is the top-level input handler of the image canvas.
// It hit-tests pointer events against the regions, resolves what a press on
// empty canvas means, and routes events to the tools, the selection and the
// viewport.
//
// # Deferred click
//
// A press on empty canvas while regions are selected may be a click that
// should clear the selection, or the start of a new drawing. The Dispatcher
// schedules the deselect instead of running it:
//
//   - if the timer fires, the selection is cleared and the press is handed
//     to the active tool;
//   - a release before that cancels it and the press and release go to the
//     tool without deselecting;
//   - a drag before that runs the deselect and the press immediately, then
//     continues the drag;
//   - a new press cancels whatever was still pending.
//
// At most one deferred action exists at a time.
package interaction

import (
	"errors"
	"log/slog"
	"time"

	"github.com/ironsheep/image-annotator-mcp/internal/annotation"
	"github.com/ironsheep/image-annotator-mcp/internal/clock"
	"github.com/ironsheep/image-annotator-mcp/internal/geom"
	"github.com/ironsheep/image-annotator-mcp/internal/input"
	"github.com/ironsheep/image-annotator-mcp/internal/selection"
	"github.com/ironsheep/image-annotator-mcp/internal/tools"
	"github.com/ironsheep/image-annotator-mcp/internal/viewport"
)

// Options tunes the dispatcher.
type Options struct {
	// DeferDeselect is how long a press on empty canvas waits before
	// clearing the selection.
	DeferDeselect time.Duration
	// DeferWhileDrawing replaces DeferDeselect while a draft is in progress.
	DeferWhileDrawing time.Duration
	// HitTolerance widens hit tests, in canvas pixels.
	HitTolerance float64
}

// DefaultOptions returns the stock dispatcher settings.
func DefaultOptions() Options {
	return Options{DeferDeselect: 100 * time.Millisecond, HitTolerance: 4}
}

// Deps are the components a Dispatcher drives.
type Deps struct {
	Annotation *annotation.Annotation
	Selection  *selection.Controller
	Tools      *tools.Manager
	Viewport   *viewport.Controller
	Clock      clock.Clock
	// Post runs timer callbacks on the event goroutine. Nil runs them on the
	// timer's goroutine.
	Post    func(func())
	Window  WindowEvents
	Hotkeys Hotkeys
	// View returns the gallery item and layer currently shown. Nil means
	// item 0, accepted regions.
	View   func() annotation.View
	Logger *slog.Logger
}

type gesture int

const (
	gestureNone gesture = iota
	gestureDraw
	gestureMove
	gesturePan
)

func (g gesture) String() string {
	switch g {
	case gestureDraw:
		return "draw"
	case gestureMove:
		return "move"
	case gesturePan:
		return "pan"
	}
	return "none"
}

// press is a pointer-down waiting on the deferred-click timer.
type press struct {
	ev     input.PointerEvent
	canvas geom.Point
	image  geom.Point
}

// Dispatcher routes input events. It must only be used from one goroutine;
// events arriving while another is being handled are queued and handled in
// order once it finishes.
type Dispatcher struct {
	opts   Options
	logger *slog.Logger

	ann    *annotation.Annotation
	sel    *selection.Controller
	tools  *tools.Manager
	vp     *viewport.Controller
	window WindowEvents
	keys   Hotkeys
	view   func() annotation.View

	deferred *clock.Slot
	pending  *press

	gesture   gesture
	listeners []func()
	dragSnap  annotation.Snapshot
	lastMods  input.Modifiers

	cursor      geom.Point
	cursorValid bool

	relationFrom string

	lastCommit string
	mounted    bool
	hotkeys    []string

	dispatching bool
	queue       []func()
}

// New returns a dispatcher over deps.
func New(opts Options, deps Deps) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.DeferDeselect < 0 {
		opts.DeferDeselect = DefaultOptions().DeferDeselect
	}
	if opts.DeferWhileDrawing < 0 {
		opts.DeferWhileDrawing = 0
	}
	if opts.HitTolerance <= 0 {
		opts.HitTolerance = DefaultOptions().HitTolerance
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	window := deps.Window
	if window == nil {
		window = NewWindow()
	}
	view := deps.View
	if view == nil {
		view = func() annotation.View { return annotation.View{} }
	}
	return &Dispatcher{
		opts:     opts,
		logger:   logger,
		ann:      deps.Annotation,
		sel:      deps.Selection,
		tools:    deps.Tools,
		vp:       deps.Viewport,
		window:   window,
		keys:     deps.Hotkeys,
		view:     view,
		deferred: clock.NewSlot(clk, deps.Post),
	}
}

// run executes fn now, or after the handler currently running.
func (d *Dispatcher) run(fn func()) {
	if d.dispatching {
		d.queue = append(d.queue, fn)
		return
	}
	d.dispatching = true
	defer func() { d.dispatching = false }()
	fn()
	for len(d.queue) > 0 {
		next := d.queue[0]
		d.queue = d.queue[1:]
		next()
	}
}

// Handle routes a pointer event. Events inside the canvas go to the canvas
// handlers; every event is then offered to the window listeners, which only
// act on events outside the canvas.
func (d *Dispatcher) Handle(ev input.PointerEvent) {
	if !ev.Outside {
		switch ev.Kind {
		case input.PointerDown:
			d.PointerDown(ev)
		case input.PointerMove:
			d.PointerMove(ev)
		case input.PointerUp:
			d.PointerUp(ev)
		case input.DoubleClick:
			d.DoubleClick(ev)
		}
	}
	d.window.Emit(ev)
}

// PointerDown handles a press on the canvas.
func (d *Dispatcher) PointerDown(ev input.PointerEvent) {
	d.run(func() { d.down(ev) })
}

// PointerMove handles pointer motion over the canvas.
func (d *Dispatcher) PointerMove(ev input.PointerEvent) {
	d.run(func() { d.move(ev) })
}

// PointerUp handles a release over the canvas.
func (d *Dispatcher) PointerUp(ev input.PointerEvent) {
	d.run(func() { d.up(ev) })
}

// DoubleClick forwards a double click to the active tool.
func (d *Dispatcher) DoubleClick(ev input.PointerEvent) {
	d.run(func() {
		canvas, img, ok := d.locate(ev)
		if !ok {
			return
		}
		d.apply(d.tools.Dispatch(tools.Event{Kind: tools.DoubleClick, Point: img, Canvas: canvas, Mods: ev.Mods}))
	})
}

// Wheel zooms around the pointer when zoom intent is signalled. It reports
// whether the viewport changed.
func (d *Dispatcher) Wheel(deltaY float64, screen geom.Point, mods input.Modifiers) bool {
	zoomed := false
	d.run(func() {
		canvas := viewport.ScreenToCanvas(screen, d.vp.Viewport())
		zoomed = d.vp.Zoom(deltaY, canvas, mods)
	})
	return zoomed
}

// KeyDown handles a key press. A tool with a draft sees it first, then the
// hotkeys.
func (d *Dispatcher) KeyDown(ev input.KeyEvent) {
	d.run(func() {
		d.lastMods = ev.Mods
		if d.tools.Drawing() && ev.Mods == 0 {
			out := d.tools.Dispatch(tools.Event{Kind: tools.KeyDown, Key: ev.Key, Mods: ev.Mods, Point: d.cursor})
			if out.Consumed {
				d.apply(out)
				return
			}
		}
		if d.keys != nil {
			d.keys.Handle(ev)
		}
	})
}

func (d *Dispatcher) locate(ev input.PointerEvent) (canvas, img geom.Point, ok bool) {
	v := d.vp.Viewport()
	canvas = viewport.ScreenToCanvas(ev.Screen, v)
	img, err := viewport.CanvasToImage(canvas, v)
	if err != nil {
		d.logger.Debug("pointer event before layout", "error", err)
		return canvas, img, false
	}
	d.cursor, d.cursorValid = img, true
	return canvas, img, true
}

func (d *Dispatcher) down(ev input.PointerEvent) {
	d.lastMods = ev.Mods
	if d.cancelDeferred() {
		d.logger.Debug("deferred click superseded")
	}
	if d.gesture != gestureNone {
		d.abortGesture()
	}
	canvas, img, ok := d.locate(ev)
	if !ok || !d.ann.Alive() {
		return
	}

	if d.shouldPan(ev) {
		d.vp.BeginPan(canvas)
		d.beginGesture(gesturePan)
		return
	}

	if hit := d.hitTest(ev, img); hit != nil {
		d.pressRegion(ev, canvas, hit)
		return
	}
	if d.relationFrom != "" {
		d.StopRelation()
		return
	}

	p := press{ev: ev, canvas: canvas, image: img}
	if ev.Buttons&input.ButtonPrimary != 0 && tools.EligibleForDeselect(d.tools.Active()) && d.sel.Len() > 0 {
		delay := d.opts.DeferDeselect
		if d.tools.Drawing() {
			delay = d.opts.DeferWhileDrawing
		}
		d.pending = &p
		d.deferred.Schedule(delay, func() { d.run(d.firePending) })
		d.addListeners()
		return
	}
	d.toolDown(p)
}

func (d *Dispatcher) shouldPan(ev input.PointerEvent) bool {
	if ev.Buttons&input.ButtonMiddle != 0 {
		return true
	}
	return ev.Mods.Has(input.Shift) && d.vp.Viewport().Scale > 1 && d.tools.Active() != tools.ZoomPan
}

// TransformDisabled reports whether transform handles are suppressed: while
// panning, with the pan tool, or with shift held while zoomed in.
func (d *Dispatcher) TransformDisabled() bool {
	return d.gesture == gesturePan ||
		d.tools.Active() == tools.ZoomPan ||
		(d.lastMods.Has(input.Shift) && d.vp.Viewport().Scale > 1)
}

func (d *Dispatcher) hitTest(ev input.PointerEvent, img geom.Point) *annotation.Region {
	if ev.Mods.SkipInteractions() || ev.Buttons&input.ButtonPrimary == 0 {
		return nil
	}
	if d.relationFrom == "" && (d.tools.Drawing() || !tools.EligibleForDeselect(d.tools.Active())) {
		return nil
	}
	tol := d.opts.HitTolerance
	if s := d.vp.Viewport().EffectiveScale(); s > 0 {
		tol /= s
	}
	return d.ann.RegionAt(img, d.view(), tol)
}

func (d *Dispatcher) pressRegion(ev input.PointerEvent, canvas geom.Point, r *annotation.Region) {
	if d.relationFrom != "" {
		from := d.relationFrom
		d.StopRelation()
		if err := d.ann.AddRelation(from, r.ID, annotation.DirectionRight); err != nil {
			d.logger.Debug("relation not added", "from", from, "to", r.ID, "error", err)
		}
		return
	}
	switch {
	case ev.Mods.Has(input.Shift):
		d.sel.Select([]string{r.ID}, selection.Toggle)
	case !r.Selected():
		d.sel.Select([]string{r.ID}, selection.Replace)
	}
	if !r.Selected() || !d.ann.Editable() || d.TransformDisabled() {
		return
	}
	snap := d.ann.Snapshot()
	if d.sel.StartDrag(canvas, d.vp.Viewport()) {
		d.dragSnap = snap
		d.beginGesture(gestureMove)
	}
}

func (d *Dispatcher) firePending() {
	p := d.pending
	d.pending = nil
	if p == nil {
		return
	}
	d.sel.Clear()
	d.logger.Debug("deferred click fired", "tool", d.tools.Active())
	d.toolDown(*p)
	if d.gesture == gestureNone {
		d.removeListeners()
	}
}

func (d *Dispatcher) cancelDeferred() bool {
	had := d.pending != nil
	d.pending = nil
	if had && d.gesture == gestureNone {
		d.removeListeners()
	}
	return d.deferred.Cancel()
}

func (d *Dispatcher) toolDown(p press) {
	out := d.tools.Dispatch(tools.Event{Kind: tools.Down, Point: p.image, Canvas: p.canvas, Mods: p.ev.Mods})
	d.apply(out)
	if out.Consumed {
		d.beginGesture(gestureDraw)
	}
}

func (d *Dispatcher) move(ev input.PointerEvent) {
	d.lastMods = ev.Mods
	canvas, img, ok := d.locate(ev)
	if !ok {
		return
	}
	if d.pending != nil && ev.Buttons&input.ButtonPrimary != 0 {
		d.deferred.Cancel()
		d.firePending()
	}
	switch d.gesture {
	case gesturePan:
		d.vp.PanTo(canvas)
	case gestureMove:
		d.sel.DragTo(canvas, d.vp.Viewport())
	default:
		d.apply(d.tools.Dispatch(tools.Event{Kind: tools.Move, Point: img, Canvas: canvas, Mods: ev.Mods}))
	}
}

func (d *Dispatcher) up(ev input.PointerEvent) {
	d.lastMods = ev.Mods
	canvas, img, ok := d.locate(ev)
	if d.pending != nil {
		p := *d.pending
		d.cancelDeferred()
		d.toolDown(p)
	}
	if !ok {
		d.abortGesture()
		return
	}
	d.finishGesture(ev, canvas, img)
}

func (d *Dispatcher) beginGesture(g gesture) {
	d.gesture = g
	d.addListeners()
}

// addListeners follows the pointer outside the canvas, for a gesture or a
// press still waiting on the deferred click.
func (d *Dispatcher) addListeners() {
	if len(d.listeners) > 0 {
		return
	}
	d.listeners = append(d.listeners,
		d.window.Add(input.PointerMove, d.windowEvent),
		d.window.Add(input.PointerUp, d.windowEvent),
	)
}

func (d *Dispatcher) windowEvent(ev input.PointerEvent) {
	if !ev.Outside {
		return
	}
	d.run(func() {
		switch ev.Kind {
		case input.PointerMove:
			d.move(ev)
		case input.PointerUp:
			d.up(ev)
		}
	})
}

func (d *Dispatcher) removeListeners() {
	for _, remove := range d.listeners {
		remove()
	}
	d.listeners = nil
}

func (d *Dispatcher) finishGesture(ev input.PointerEvent, canvas, img geom.Point) {
	switch d.gesture {
	case gesturePan:
		d.vp.EndPan()
	case gestureMove:
		if delta := d.sel.EndDrag(); delta != (geom.Point{}) {
			d.ann.History.Push(d.dragSnap)
		}
		d.dragSnap = annotation.Snapshot{}
	case gestureDraw:
		d.apply(d.tools.Dispatch(tools.Event{Kind: tools.Up, Point: img, Canvas: canvas, Mods: ev.Mods}))
	}
	d.gesture = gestureNone
	d.removeListeners()
}

// abortGesture ends a gesture without committing anything.
func (d *Dispatcher) abortGesture() {
	switch d.gesture {
	case gesturePan:
		d.vp.EndPan()
	case gestureMove:
		if delta := d.sel.EndDrag(); delta != (geom.Point{}) {
			d.ann.History.Push(d.dragSnap)
		}
	case gestureDraw:
		if d.tools.Active() != tools.Polygon && d.tools.Active() != tools.PolygonDynamic {
			d.tools.Cancel()
		}
	}
	d.gesture = gestureNone
	d.removeListeners()
}

func (d *Dispatcher) apply(out tools.Outcome) {
	if out.Pan != nil {
		d.vp.Pan(out.Pan.X, out.Pan.Y)
	}
	if out.Erase != nil {
		d.erase(*out.Erase)
	}
	if out.Commit != nil {
		d.commit(out.Commit, out.Dynamic)
	}
}

func (d *Dispatcher) commit(g annotation.Geometry, dynamic bool) {
	if !d.ann.Editable() {
		d.logger.Debug("discarded draft: annotation is read-only")
		return
	}
	opts := []annotation.CreateOption{annotation.WithItem(d.view().Item)}
	if dynamic {
		opts = append(opts, annotation.WithOrigin(annotation.OriginDynamic, 0))
	}
	snap := d.ann.Snapshot()
	r, err := d.ann.Create(g, nil, opts...)
	switch {
	case errors.Is(err, annotation.ErrNoActiveLabel):
		d.logger.Debug("discarded draft: no active label", "kind", g.Kind())
		return
	case err != nil:
		d.logger.Warn("could not commit draft", "kind", g.Kind(), "error", err)
		return
	}
	d.ann.History.Push(snap)
	d.lastCommit = r.ID
	d.logger.Info("region created", "id", r.ID, "kind", r.Kind(), "tool", d.tools.Active())
}

// erase applies an eraser stroke to the selected brush regions, or to the
// topmost brush region under the stroke when none is selected. Regions left
// empty are removed.
func (d *Dispatcher) erase(s annotation.Stroke) {
	var targets []*annotation.Region
	for _, r := range d.sel.Selected() {
		if r.Kind() == annotation.KindBrush {
			targets = append(targets, r)
		}
	}
	if len(targets) == 0 && len(s.Points) > 0 {
		if r := d.ann.RegionAt(s.Points[0], d.view(), s.Size/2); r != nil && r.Kind() == annotation.KindBrush {
			targets = append(targets, r)
		}
	}
	if len(targets) == 0 {
		return
	}
	snap := d.ann.Snapshot()
	changed := false
	for _, r := range targets {
		b := r.Geometry.(annotation.Brush).WithStroke(s)
		if b.Area() == 0 {
			changed = d.ann.Remove(r.ID) || changed
			continue
		}
		if err := d.ann.SetGeometry(r.ID, b); err != nil {
			d.logger.Debug("erase skipped", "id", r.ID, "error", err)
			continue
		}
		changed = true
	}
	if changed {
		d.ann.History.Push(snap)
	}
}

// Pending reports whether a deferred click is waiting.
func (d *Dispatcher) Pending() bool { return d.pending != nil && d.deferred.Pending() }

// Gesture names the gesture in progress: "none", "draw", "move" or "pan".
func (d *Dispatcher) Gesture() string { return d.gesture.String() }

// Cursor returns the last pointer position in image pixels.
func (d *Dispatcher) Cursor() (geom.Point, bool) { return d.cursor, d.cursorValid }

// LastCommit returns the id of the last region drawn, or "".
func (d *Dispatcher) LastCommit() string { return d.lastCommit }

// StartRelation enters relation mode: the next region pressed becomes the
// target of a relation from from.
func (d *Dispatcher) StartRelation(from string) error {
	if d.ann.Get(from) == nil {
		return annotation.ErrUnknownRegion
	}
	d.relationFrom = from
	return nil
}

// StopRelation leaves relation mode.
func (d *Dispatcher) StopRelation() { d.relationFrom = "" }

// RelationMode reports whether relation mode is active.
func (d *Dispatcher) RelationMode() bool { return d.relationFrom != "" }
