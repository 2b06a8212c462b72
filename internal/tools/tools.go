// Package tools implements the drawing tools of the image canvas and the
// Manager that holds the active one.
//
// A tool turns pointer and key events into a draft geometry. When a gesture
// finishes, the tool reports the finished geometry in its Outcome and the
// caller commits it to the store; tools never touch the store themselves.
package tools

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/ironsheep/image-annotator-mcp/internal/annotation"
	"github.com/ironsheep/image-annotator-mcp/internal/geom"
	"github.com/ironsheep/image-annotator-mcp/internal/input"
)

// ErrUnknownTool is returned when selecting a tool that does not exist.
var ErrUnknownTool = errors.New("unknown tool")

// Name identifies a tool variant.
type Name string

const (
	None                   Name = ""
	Rectangle              Name = "RectangleTool"
	RectangleDynamic       Name = "RectangleTool-dynamic"
	Rectangle3Point        Name = "Rectangle3PointTool"
	Rectangle3PointDynamic Name = "Rectangle3PointTool-dynamic"
	Ellipse                Name = "EllipseTool"
	EllipseDynamic         Name = "EllipseTool-dynamic"
	Polygon                Name = "PolygonTool"
	PolygonDynamic         Name = "PolygonTool-dynamic"
	KeyPoint               Name = "KeyPointTool"
	Brush                  Name = "BrushTool"
	Eraser                 Name = "EraserTool"
	ZoomPan                Name = "ZoomPanTool"
)

// Dynamic reports whether the tool is a preview variant whose commits are
// marked as dynamic regions.
func (n Name) Dynamic() bool { return strings.HasSuffix(string(n), "-dynamic") }

// deselectEligible lists the tools for which a click on empty canvas
// clears the selection.
var deselectEligible = []Name{
	None,
	Rectangle, RectangleDynamic,
	Rectangle3Point, Rectangle3PointDynamic,
	Ellipse, EllipseDynamic,
	Polygon, PolygonDynamic,
}

// EligibleForDeselect reports whether a click on empty canvas with tool n
// active clears the selection.
func EligibleForDeselect(n Name) bool { return slices.Contains(deselectEligible, n) }

var aliases = map[string]Name{
	"none":            None,
	"rectangle":       Rectangle,
	"rectangle3point": Rectangle3Point,
	"ellipse":         Ellipse,
	"polygon":         Polygon,
	"keypoint":        KeyPoint,
	"brush":           Brush,
	"eraser":          Eraser,
	"zoompan":         ZoomPan,
	"pan":             ZoomPan,
}

// ParseName accepts a tool name or a short alias such as "polygon".
func ParseName(s string) (Name, error) {
	if n, ok := aliases[strings.ToLower(s)]; ok {
		return n, nil
	}
	n := Name(s)
	if n == None || slices.Contains(All(), n) {
		return n, nil
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownTool, s)
}

// All lists every tool variant.
func All() []Name {
	return []Name{
		Rectangle, RectangleDynamic,
		Rectangle3Point, Rectangle3PointDynamic,
		Ellipse, EllipseDynamic,
		Polygon, PolygonDynamic,
		KeyPoint, Brush, Eraser, ZoomPan,
	}
}

// EventKind is what happened.
type EventKind int

const (
	Down EventKind = iota
	Move
	Up
	DoubleClick
	KeyDown
)

func (k EventKind) String() string {
	switch k {
	case Down:
		return "down"
	case Move:
		return "move"
	case Up:
		return "up"
	case DoubleClick:
		return "dblclick"
	case KeyDown:
		return "keydown"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one input event as a tool sees it.
type Event struct {
	Kind EventKind
	// Point is the pointer position in image pixels.
	Point geom.Point
	// Canvas is the pointer position in canvas pixels, used for distances
	// that should not depend on zoom.
	Canvas geom.Point
	Mods   input.Modifiers
	// Key is set for KeyDown events, lower case.
	Key string
}

// Outcome is what the caller should do after a tool handled an event.
type Outcome struct {
	// Commit is a finished geometry to add to the store.
	Commit annotation.Geometry
	// Dynamic marks Commit as coming from a preview tool.
	Dynamic bool
	// Erase is a finished eraser stroke to apply to brush regions.
	Erase *annotation.Stroke
	// Pan is a canvas-pixel pan delta.
	Pan *geom.Point
	// Consumed is set when the tool used the event.
	Consumed bool
}

// Tool is one drawing tool with its in-progress draft.
type Tool interface {
	Name() Name
	Handle(ev Event) Outcome
	// Draft is the in-progress geometry, or nil.
	Draft() annotation.Geometry
	// Drawing reports whether a gesture is in progress.
	Drawing() bool
	// Reset discards the draft.
	Reset()
}

// Options tunes the tools.
type Options struct {
	// MinSize is the smallest box or ellipse side committed, in image pixels.
	MinSize float64
	// CloseRadius is how near the first vertex, in canvas pixels, a click
	// must land to close a polygon.
	CloseRadius   float64
	BrushSize     float64
	KeyPointWidth float64
}

// DefaultOptions returns the stock tool settings.
func DefaultOptions() Options {
	return Options{MinSize: 2, CloseRadius: 8, BrushSize: 10, KeyPointWidth: 5}
}

// Manager holds the active tool. Switching tools discards the draft of the
// tool being left.
type Manager struct {
	opts   Options
	logger *slog.Logger
	tools  map[Name]Tool
	active Tool
}

// NewManager returns a manager with every tool built and none active.
func NewManager(opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := DefaultOptions()
	if opts.MinSize <= 0 {
		opts.MinSize = d.MinSize
	}
	if opts.CloseRadius <= 0 {
		opts.CloseRadius = d.CloseRadius
	}
	if opts.BrushSize <= 0 {
		opts.BrushSize = d.BrushSize
	}
	if opts.KeyPointWidth <= 0 {
		opts.KeyPointWidth = d.KeyPointWidth
	}
	m := &Manager{opts: opts, logger: logger, tools: make(map[Name]Tool)}
	for _, n := range All() {
		m.tools[n] = build(n, opts)
	}
	return m
}

func build(n Name, opts Options) Tool {
	switch n {
	case Rectangle, RectangleDynamic:
		return &dragTool{name: n, opts: opts, shape: boxFromDrag}
	case Ellipse, EllipseDynamic:
		return &dragTool{name: n, opts: opts, shape: ellipseFromDrag}
	case Rectangle3Point, Rectangle3PointDynamic:
		return &threePointTool{name: n, opts: opts}
	case Polygon, PolygonDynamic:
		return &polygonTool{name: n, opts: opts}
	case KeyPoint:
		return &keyPointTool{opts: opts}
	case Brush:
		return &brushTool{name: n, opts: opts}
	case Eraser:
		return &brushTool{name: n, opts: opts, erase: true}
	case ZoomPan:
		return &panTool{}
	}
	panic(fmt.Sprintf("tools: no constructor for %q", n))
}

// Options returns the tool settings.
func (m *Manager) Options() Options { return m.opts }

// Select makes n the active tool. The previous tool's draft is discarded.
// Selecting None deactivates all tools.
func (m *Manager) Select(n Name) error {
	var next Tool
	if n != None {
		t, ok := m.tools[n]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownTool, n)
		}
		next = t
	}
	if next == m.active {
		return nil
	}
	if m.active != nil {
		if m.active.Drawing() {
			m.logger.Debug("discarded draft", "tool", m.active.Name())
		}
		m.active.Reset()
	}
	m.active = next
	m.logger.Debug("tool selected", "tool", n)
	return nil
}

// Active returns the active tool's name.
func (m *Manager) Active() Name {
	if m.active == nil {
		return None
	}
	return m.active.Name()
}

// Dispatch forwards ev to the active tool.
func (m *Manager) Dispatch(ev Event) Outcome {
	if m.active == nil {
		return Outcome{}
	}
	out := m.active.Handle(ev)
	if out.Commit != nil {
		out.Dynamic = m.active.Name().Dynamic()
	}
	return out
}

// Drawing reports whether the active tool has a gesture in progress.
func (m *Manager) Drawing() bool { return m.active != nil && m.active.Drawing() }

// Draft returns the active tool's draft, or nil.
func (m *Manager) Draft() annotation.Geometry {
	if m.active == nil {
		return nil
	}
	return m.active.Draft()
}

// Cancel discards the active tool's draft.
func (m *Manager) Cancel() {
	if m.active != nil {
		m.active.Reset()
	}
}
